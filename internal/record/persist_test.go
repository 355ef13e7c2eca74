package record_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/eqadir/ariel/internal/record"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := record.MetadataPath(dir, "pl-PL")

	records := baseRecords()
	records[0].Tuning = record.DefaultTuning(record.GenderFemale, record.BackendCloudTTS)
	records[0].Chunks = []string{"/out/chunk_0a.mp3"}

	if err := record.Save(records, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := record.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(records, loaded) {
		t.Errorf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", records, loaded)
	}
}

func TestMetadataPath_LanguageSuffix(t *testing.T) {
	t.Parallel()
	got := record.MetadataPath("/out", "pl-PL")
	want := filepath.Join("/out", "utterance_metadata_pl_pl.json")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()
	if _, err := record.LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing checkpoint")
	}
}

func TestValidate_RejectsBadRanges(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		records []record.Utterance
		wantErr bool
	}{
		{"valid", []record.Utterance{seg(0, 1), seg(1.5, 2)}, false},
		{"end before start", []record.Utterance{seg(2, 1)}, true},
		{"zero length", []record.Utterance{seg(1, 1)}, true},
		{"overlap", []record.Utterance{seg(0, 2), seg(1.5, 3)}, true},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := record.Validate(tt.records)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RejectsUnknownGender(t *testing.T) {
	t.Parallel()
	u := seg(0, 1)
	u.Gender = "Robot"
	if err := record.Validate([]record.Utterance{u}); err == nil {
		t.Fatal("expected error for unknown gender")
	}
}

func TestDefaultTuning(t *testing.T) {
	t.Parallel()
	female := record.DefaultTuning(record.GenderFemale, record.BackendCloudTTS)
	male := record.DefaultTuning(record.GenderMale, record.BackendCloudTTS)
	if female.Pitch >= 0 || male.Pitch >= 0 {
		t.Error("cloud TTS default pitch should shift down")
	}
	if female.Pitch <= male.Pitch {
		t.Error("female default pitch should be above male default pitch")
	}
	el := record.DefaultTuning(record.GenderMale, record.BackendElevenLabs)
	if el.Stability == 0 || el.SimilarityBoost == 0 || !el.UseSpeakerBoost {
		t.Errorf("unexpected elevenlabs defaults: %+v", el)
	}
	if el.Pitch != 0 {
		t.Error("elevenlabs tuning must not carry cloud TTS pitch")
	}
}
