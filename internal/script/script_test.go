package script_test

import (
	"errors"
	"testing"

	"github.com/eqadir/ariel/internal/script"
)

func TestJoinSplit_RoundTrip(t *testing.T) {
	t.Parallel()
	texts := []string{"Hello there.", "Buy our product!", "Visit us today."}

	joined := script.Join(texts)
	segments, err := script.Split(joined, len(texts))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segments) != len(texts) {
		t.Fatalf("expected %d segments, got %d", len(texts), len(segments))
	}
	for i := range texts {
		if segments[i] != texts[i] {
			t.Errorf("segment %d: expected %q, got %q", i, texts[i], segments[i])
		}
	}
}

func TestSplit_ToleratesRaggedWhitespace(t *testing.T) {
	t.Parallel()
	s := "<BREAK>Hallo   <BREAK>\n  Kauf unser Produkt!\t<BREAK>"
	segments, err := script.Split(s, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if segments[0] != "Hallo" || segments[1] != "Kauf unser Produkt!" {
		t.Errorf("unexpected segments: %q", segments)
	}
}

func TestSplit_CountMismatchIsFatal(t *testing.T) {
	t.Parallel()
	s := script.Join([]string{"one", "two"})

	_, err := script.Split(s, 3)
	if err == nil {
		t.Fatal("expected error on count mismatch")
	}
	if !errors.Is(err, script.ErrSegmentCountMismatch) {
		t.Errorf("expected ErrSegmentCountMismatch, got %v", err)
	}
}

func TestSplit_SentinelCountsTowardTotal(t *testing.T) {
	t.Parallel()
	s := script.Join([]string{"uno", script.Sentinel, "tres"})

	segments, err := script.Split(s, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if segments[1] != script.Sentinel {
		t.Errorf("expected sentinel at index 1, got %q", segments[1])
	}
}

func TestDropSentinels(t *testing.T) {
	t.Parallel()
	kept, dropped := script.DropSentinels([]string{"a", script.Sentinel, "c", script.Sentinel})

	if len(kept) != 2 || kept[0] != "a" || kept[1] != "c" {
		t.Errorf("unexpected kept segments: %q", kept)
	}
	if len(dropped) != 2 || dropped[0] != 1 || dropped[1] != 3 {
		t.Errorf("unexpected dropped indices: %v", dropped)
	}
}

func TestDropSentinels_NoSentinels(t *testing.T) {
	t.Parallel()
	kept, dropped := script.DropSentinels([]string{"a", "b"})
	if len(kept) != 2 || dropped != nil {
		t.Errorf("expected unchanged segments, got kept=%q dropped=%v", kept, dropped)
	}
}

func TestJoin_Empty(t *testing.T) {
	t.Parallel()
	if got := script.Join(nil); got != "" {
		t.Errorf("expected empty script, got %q", got)
	}
}
