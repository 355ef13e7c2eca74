// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcriptions without a live
// STT backend. Responses can be keyed by audio path so a test can hand
// different text to different utterance chunks.
package mock

import (
	"context"
	"sync"

	"github.com/eqadir/ariel/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return "" and nil. Set Err to inject errors.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe when the audio path has no entry in ByPath.
	Text string

	// ByPath maps an audio path to the transcription returned for it.
	ByPath map[string]string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Req: req})
	if p.Err != nil {
		return "", p.Err
	}
	if text, ok := p.ByPath[req.AudioPath]; ok {
		return text, nil
	}
	return p.Text, nil
}
