// Package googletts provides a Google Cloud Text-to-Speech backed TTS
// provider. It supports per-request pitch, speaking rate, and volume gain,
// which makes it the default backend for dubbing with gender-tuned voices.
//
// Authentication follows the standard Google Cloud credential chain
// (GOOGLE_APPLICATION_CREDENTIALS or ambient service account).
package googletts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/eqadir/ariel/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider backed by Google Cloud Text-to-Speech.
type Provider struct {
	client *texttospeech.Client
}

// New creates a new Provider using the ambient Google Cloud credentials.
// The caller must call Close when the provider is no longer needed.
func New(ctx context.Context) (*Provider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("googletts: create client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Synthesize implements tts.Provider. The output is always MP3; if
// req.OutputPath carries a different extension it is rewritten to ".mp3".
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (string, error) {
	if req.Voice == "" {
		return "", errors.New("googletts: req.Voice must not be empty")
	}
	if req.Language == "" {
		return "", errors.New("googletts: req.Language must not be empty")
	}

	rate := req.SpeakingRate
	if rate == 0 {
		rate = 1.0
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.Language,
			Name:         req.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			Pitch:         req.Pitch,
			SpeakingRate:  rate,
			VolumeGainDb:  req.VolumeGainDb,
		},
	})
	if err != nil {
		return "", fmt.Errorf("googletts: synthesize speech: %w", err)
	}

	out := req.OutputPath
	if ext := filepath.Ext(out); ext != ".mp3" {
		out = strings.TrimSuffix(out, ext) + ".mp3"
	}
	if err := os.WriteFile(out, resp.AudioContent, 0o644); err != nil {
		return "", fmt.Errorf("googletts: write audio file: %w", err)
	}
	return out, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(ctx context.Context, language string) ([]tts.Voice, error) {
	resp, err := p.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{
		LanguageCode: language,
	})
	if err != nil {
		return nil, fmt.Errorf("googletts: list voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, tts.Voice{
			Name:   v.Name,
			Gender: normalizeGender(v.SsmlGender),
		})
	}
	return voices, nil
}

// normalizeGender maps the proto enum onto the catalogue's gender strings.
func normalizeGender(g texttospeechpb.SsmlVoiceGender) string {
	switch g {
	case texttospeechpb.SsmlVoiceGender_MALE:
		return "Male"
	case texttospeechpb.SsmlVoiceGender_FEMALE:
		return "Female"
	default:
		return "Neutral"
	}
}
