// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Google Cloud
// Text-to-Speech or ElevenLabs) and presents a uniform batch interface: hand
// it translated text plus an assigned voice and tuning parameters, receive a
// synthesized audio file on disk. Providers also expose their voice catalogue
// so the assignment step can match speakers to voices by gender.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Request describes a single synthesis call.
type Request struct {
	// Text is the text to synthesize, already translated into the target
	// language.
	Text string

	// Voice is the provider-specific voice identifier (e.g.,
	// "de-DE-Neural2-B" for Google, a voice ID for ElevenLabs).
	Voice string

	// Language is the BCP-47 tag of the target language (e.g., "de-DE").
	// Google requires it alongside the voice name; ElevenLabs ignores it.
	Language string

	// OutputPath is where the synthesized audio file is written. The provider
	// chooses the encoding (MP3 for both built-in backends) and the caller
	// owns the file afterwards.
	OutputPath string

	// Pitch adjusts the voice pitch in semitones. Zero means no adjustment.
	// Only honoured by backends with pitch control.
	Pitch float64

	// SpeakingRate is the speed multiplier; 1.0 is the natural rate.
	// A zero value is treated as 1.0.
	SpeakingRate float64

	// VolumeGainDb raises or lowers the output volume in dB.
	VolumeGainDb float64

	// Stability, SimilarityBoost, Style, and UseSpeakerBoost are
	// ElevenLabs-specific voice settings. Backends without an equivalent
	// control ignore them.
	Stability       float64
	SimilarityBoost float64
	Style           float64
	UseSpeakerBoost bool
}

// Voice is a single entry in a provider's voice catalogue.
type Voice struct {
	// Name is the voice's human-readable name, the one operators use in
	// voice preferences and checkpoint edits.
	Name string

	// ID is the backend's synthesis identifier when it differs from Name,
	// such as an ElevenLabs voice ID. Empty when Name itself is the
	// identifier.
	ID string

	// Gender is the voice gender as reported by the provider, normalised to
	// "Male", "Female", or "Neutral".
	Gender string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; the pipeline may
// synthesize several utterances in parallel.
type Provider interface {
	// Synthesize renders req.Text with the requested voice and tuning and
	// writes the result to req.OutputPath. It returns the path of the written
	// file, which may differ from req.OutputPath in extension if the backend
	// only emits a fixed encoding.
	Synthesize(ctx context.Context, req Request) (string, error)

	// ListVoices returns the provider's voice catalogue for the given
	// language (BCP-47 tag, e.g. "de-DE"). An empty language returns all
	// voices. The order is stable across calls with an unchanged catalogue.
	ListVoices(ctx context.Context, language string) ([]Voice, error)
}
