package review_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eqadir/ariel/internal/record"
	"github.com/eqadir/ariel/internal/review"
)

func sampleRecords() []record.Utterance {
	return []record.Utterance{
		{Start: 0.0, End: 1.0, Path: "chunk_00.wav", Text: "hello there", SpeakerID: "speaker_01", Gender: record.GenderFemale, ForDubbing: true},
		{Start: 1.5, End: 2.5, Path: "chunk_01.wav", Text: "general advert", SpeakerID: "speaker_02", Gender: record.GenderMale, ForDubbing: true},
	}
}

// scriptedReader runs an action right before each line of input is consumed,
// simulating an operator editing the scratch file between prompts.
type scriptedReader struct {
	steps []struct {
		action func() error
		line   string
	}
	buf bytes.Buffer
}

func (r *scriptedReader) addStep(action func() error, line string) {
	r.steps = append(r.steps, struct {
		action func() error
		line   string
	}{action, line})
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if r.buf.Len() == 0 {
		if len(r.steps) == 0 {
			return 0, io.EOF
		}
		step := r.steps[0]
		r.steps = r.steps[1:]
		if step.action != nil {
			if err := step.action(); err != nil {
				return 0, err
			}
		}
		r.buf.WriteString(step.line + "\n")
	}
	return r.buf.Read(p)
}

func TestConsoleSkipReturnsUnchanged(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.json")
	var out bytes.Buffer
	gw := review.NewConsole(strings.NewReader("skip\n"), &out, path)

	records := sampleRecords()
	got, err := gw.Review(context.Background(), records)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	if got[0].Text != records[0].Text {
		t.Errorf("skip must not change records")
	}

	// The scratch file must still have been written for inspection.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("scratch file missing: %v", err)
	}
}

func TestConsoleReloadsEdits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.json")
	records := sampleRecords()

	in := &scriptedReader{}
	in.addStep(func() error {
		edited := record.CloneAll(records)
		edited[1].TranslatedText = "allgemeine Werbung"
		edited[1].ForDubbing = false
		return record.Save(edited, path)
	}, "")

	var out bytes.Buffer
	gw := review.NewConsole(in, &out, path)

	got, err := gw.Review(context.Background(), records)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got[1].TranslatedText != "allgemeine Werbung" {
		t.Errorf("TranslatedText = %q, want the edited value", got[1].TranslatedText)
	}
	if got[1].ForDubbing {
		t.Error("ForDubbing edit was not reloaded")
	}
}

func TestConsoleRepromptsOnInvalidEdit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.json")
	records := sampleRecords()

	in := &scriptedReader{}
	// First confirm: malformed JSON on disk.
	in.addStep(func() error {
		return os.WriteFile(path, []byte("{not json"), 0o644)
	}, "")
	// Second confirm: record deleted instead of flagged.
	in.addStep(func() error {
		return record.Save(records[:1], path)
	}, "")
	// Third confirm: valid edit.
	in.addStep(func() error {
		edited := record.CloneAll(records)
		edited[0].Text = "hello again"
		return record.Save(edited, path)
	}, "")

	var out bytes.Buffer
	gw := review.NewConsole(in, &out, path)

	got, err := gw.Review(context.Background(), records)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got[0].Text != "hello again" {
		t.Errorf("Text = %q, want the third edit", got[0].Text)
	}
	if !strings.Contains(out.String(), "Fix it and confirm again") {
		t.Errorf("expected a reprompt message, got output: %q", out.String())
	}
}

func TestConsoleEOFActsLikeSkip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.json")
	var out bytes.Buffer
	gw := review.NewConsole(strings.NewReader(""), &out, path)

	records := sampleRecords()
	got, err := gw.Review(context.Background(), records)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
}

func TestAutoApprovesUnchanged(t *testing.T) {
	t.Parallel()

	records := sampleRecords()
	got, err := review.Auto{}.Review(context.Background(), records)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(got) != len(records) || got[0].Text != records[0].Text {
		t.Error("Auto must return the records unchanged")
	}

	// The result must be a copy, not an alias.
	got[0].Text = "mutated"
	if records[0].Text == "mutated" {
		t.Error("Auto must clone the records")
	}
}
