package resilience

import (
	"context"

	"github.com/eqadir/ariel/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
//
// Note that falling back mid-run hands later utterances to a different voice
// catalogue; pair fallbacks of the same backend family (e.g. two regional
// Google endpoints) to keep assigned voice names resolvable.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders the request with the first healthy provider. If the
// primary fails, subsequent fallbacks are tried.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (string, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (string, error) {
		return p.Synthesize(ctx, req)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context, language string) ([]tts.Voice, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.Voice, error) {
		return p.ListVoices(ctx, language)
	})
}
