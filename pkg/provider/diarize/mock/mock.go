// Package mock provides a test double for the diarize.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/eqadir/ariel/pkg/provider/diarize"
)

// Compile-time interface assertion.
var _ diarize.Provider = (*Provider)(nil)

// DiarizeCall records a single invocation of Diarize.
type DiarizeCall struct {
	// AudioPath is the path passed to Diarize.
	AudioPath string
	// NumSpeakers is the speaker-count hint passed to Diarize.
	NumSpeakers int
}

// Provider is a mock implementation of diarize.Provider.
// Zero values cause Diarize to return nil, nil. Set Err to inject errors.
type Provider struct {
	mu sync.Mutex

	// Segments is returned by Diarize.
	Segments []diarize.Segment

	// Err, if non-nil, is returned as the error from Diarize.
	Err error

	// Calls records every invocation of Diarize in order.
	Calls []DiarizeCall
}

// Diarize implements diarize.Provider.
func (p *Provider) Diarize(_ context.Context, audioPath string, numSpeakers int) ([]diarize.Segment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, DiarizeCall{AudioPath: audioPath, NumSpeakers: numSpeakers})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Segments, nil
}
