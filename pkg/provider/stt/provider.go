// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., a local
// whisper.cpp server) and exposes a uniform interface: hand it an audio chunk
// on disk, receive the spoken text back. The pipeline calls Transcribe once
// per utterance chunk, so implementations should be cheap to invoke
// repeatedly and safe for concurrent use.
package stt

import "context"

// Request describes a single transcription call.
type Request struct {
	// AudioPath is the path of the audio file to transcribe. The file format
	// must be one the backend accepts; the pipeline always hands over WAV or
	// MP3 chunks cut from the source audio.
	AudioPath string

	// Language is the expected language of the speech (e.g., "en", "de").
	// An empty string lets the provider auto-detect, if supported.
	Language string

	// Hints is a list of vocabulary hints such as product or brand names that
	// should bias recognition. Providers without hint support ignore it.
	Hints []string
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use; the pipeline may
// transcribe several utterance chunks in parallel.
type Provider interface {
	// Transcribe submits the audio file named in req and returns the
	// recognised text. Leading and trailing whitespace is trimmed.
	//
	// Returns an error if the file cannot be read or the backend call fails;
	// the error wraps the underlying cause.
	Transcribe(ctx context.Context, req Request) (string, error)
}
