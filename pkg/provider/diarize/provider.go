// Package diarize defines the Provider interface for speaker diarization
// backends.
//
// A diarization provider takes a vocals audio file and answers "when is
// someone speaking": an ordered list of time segments, one per detected
// utterance. Which speaker said what, and with which gender, is attributed in
// a later pipeline stage.
package diarize

import "context"

// Segment is a single detected speech region, in seconds from the start of
// the audio.
type Segment struct {
	Start float64
	End   float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Provider is the abstraction over any diarization backend.
type Provider interface {
	// Diarize analyses the audio file and returns the detected speech
	// segments ordered by start time. numSpeakers hints how many distinct
	// speakers the audio contains; zero lets the backend estimate it.
	Diarize(ctx context.Context, audioPath string, numSpeakers int) ([]Segment, error)
}
