// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider in unit tests to exercise the synthesis stage without a live
// TTS backend. Synthesize writes a small placeholder file so path-based
// assertions and downstream media calls have something real to point at.
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/eqadir/ariel/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the Request passed to Synthesize.
	Req tts.Request
}

// Provider is a mock implementation of tts.Provider.
// Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// Voices is returned by ListVoices regardless of language.
	Voices []tts.Voice

	// ListErr, if non-nil, is returned as the error from ListVoices.
	ListErr error

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Content is the placeholder payload written to each output file.
	// When nil a short fixed marker is written instead.
	Content []byte

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize implements tts.Provider. It writes a placeholder file to
// req.OutputPath and returns that path.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Req: req})
	err := p.Err
	content := p.Content
	p.mu.Unlock()

	if err != nil {
		return "", err
	}
	if content == nil {
		content = []byte("mock audio")
	}
	if err := os.WriteFile(req.OutputPath, content, 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(_ context.Context, _ string) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	return p.Voices, nil
}
