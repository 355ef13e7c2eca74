package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// metadataFilePrefix is the base name of the record checkpoint file.
const metadataFilePrefix = "utterance_metadata"

// MetadataPath returns the checkpoint file path for a run, suffixed with the
// target language so that multiple language runs in one output directory do
// not clobber each other (e.g. "utterance_metadata_pl_pl.json").
func MetadataPath(outputDir, targetLanguage string) string {
	suffix := strings.ToLower(strings.ReplaceAll(targetLanguage, "-", "_"))
	return filepath.Join(outputDir, metadataFilePrefix+"_"+suffix+".json")
}

// Save writes records to path as an indented JSON array. The write is
// atomic: data goes to a temp file in the same directory first and is then
// renamed over the destination, so a crash mid-write never leaves a
// truncated checkpoint behind.
func Save(records []Utterance, path string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("record: marshal checkpoint: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("record: create temp checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("record: write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("record: sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("record: close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("record: replace checkpoint %q: %w", path, err)
	}
	return nil
}

// LoadFile reads a record checkpoint previously written by [Save]. The
// decoder rejects unknown fields so that a typo in a hand-edited checkpoint
// surfaces as an error instead of silently dropping the operator's change.
func LoadFile(path string) ([]Utterance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open checkpoint %q: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var records []Utterance
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("record: decode checkpoint %q: %w", path, err)
	}
	if err := Validate(records); err != nil {
		return nil, fmt.Errorf("record: checkpoint %q: %w", path, err)
	}
	return records, nil
}

// Validate checks structural invariants of a record sequence: every record
// must have end > start, the sequence must be ordered by start time without
// overlap, and gender values must be recognised.
func Validate(records []Utterance) error {
	for i, u := range records {
		if u.End <= u.Start {
			return fmt.Errorf("record %d: end %.3f must be greater than start %.3f", i, u.End, u.Start)
		}
		if i > 0 && u.Start < records[i-1].End {
			return fmt.Errorf("record %d: start %.3f overlaps previous record ending at %.3f", i, u.Start, records[i-1].End)
		}
		if u.Gender != "" && !u.Gender.IsValid() {
			return fmt.Errorf("record %d: unknown ssml_gender %q", i, u.Gender)
		}
	}
	return nil
}
