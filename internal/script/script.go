// Package script implements the wire protocol between the record store and
// the single-shot translation collaborator.
//
// Per-record transcripts are joined into one script with a delimiter marker
// between entries, sent as a single request, and the returned script is
// split back on the same marker. The split must recover exactly as many
// segments as were sent — this positional correspondence is the most
// fragile boundary in the pipeline, so a count mismatch is a hard error and
// the whole translation result is rejected rather than padded or truncated.
//
// A returned segment equal to [Sentinel] marks a record that must not be
// dubbed at all; such records are dropped from the output sequence entirely,
// which is the only place the pipeline ever changes sequence length after
// merging.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Marker separates per-record segments inside the joined script.
const Marker = "<BREAK>"

// Sentinel is the reserved segment value signalling "do not translate this
// record"; the translation collaborator is instructed to echo it verbatim
// for content that must stay in the source language.
const Sentinel = "<DO NOT TRANSLATE>"

// ErrSegmentCountMismatch is returned by [Split] when the translated script
// does not contain exactly the expected number of segments. It is a fatal
// consistency failure: positional alignment with the record store cannot be
// recovered without operator intervention.
var ErrSegmentCountMismatch = errors.New("script: translated segment count mismatch")

// markerRe collapses whitespace around markers so that model output like
// "foo <BREAK>  bar" splits cleanly.
var markerRe = regexp.MustCompile(`\s*` + regexp.QuoteMeta(Marker) + `\s*`)

// Join concatenates texts into a single script with a marker between every
// pair of entries and one leading and trailing marker. Joining an empty
// slice yields an empty script.
func Join(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Marker)
	for _, t := range texts {
		b.WriteString(" ")
		b.WriteString(t)
		b.WriteString(" ")
		b.WriteString(Marker)
	}
	return b.String()
}

// Split divides a returned script into exactly want segments. Whitespace
// around markers and around each segment is trimmed; empty boundary
// segments produced by the leading/trailing markers are discarded before
// counting. Sentinel segments are counted — they are dropped later by
// [DropSentinels], after the count has been verified.
func Split(s string, want int) ([]string, error) {
	normalized := strings.TrimSpace(markerRe.ReplaceAllString(s, Marker))
	parts := strings.Split(normalized, Marker)
	segments := make([]string, 0, want)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		segments = append(segments, p)
	}
	if len(segments) != want {
		return nil, fmt.Errorf("%w: got %d segments, want %d", ErrSegmentCountMismatch, len(segments), want)
	}
	return segments, nil
}

// DropSentinels returns segments with every [Sentinel] entry removed,
// together with the original indices of the dropped entries in ascending
// order. Callers use the indices to remove the corresponding records from
// the store so that positional alignment holds for the survivors.
func DropSentinels(segments []string) (kept []string, dropped []int) {
	kept = make([]string, 0, len(segments))
	for i, s := range segments {
		if s == Sentinel {
			dropped = append(dropped, i)
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}
