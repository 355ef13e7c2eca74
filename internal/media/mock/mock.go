// Package mock provides a test double for the media.Processor interface.
//
// The mock creates small placeholder files for every operation that produces
// one, so downstream code that checks file existence keeps working. Durations
// are fed from the ByPath map.
package mock

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eqadir/ariel/internal/media"
)

// Compile-time interface assertion.
var _ media.Processor = (*Processor)(nil)

// Processor is a mock implementation of media.Processor.
// Zero values succeed; set Err to make every operation fail.
type Processor struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every operation.
	Err error

	// ByPath maps a path to the duration Duration reports for it.
	// Paths without an entry report DefaultDuration.
	ByPath map[string]float64

	// DefaultDuration is reported for paths missing from ByPath.
	DefaultDuration float64

	// CutCalls records the [start, end) spans passed to Cut, in order.
	CutCalls [][2]float64

	// StretchCalls records the target durations passed to StretchTo, in order.
	StretchCalls []float64

	// AssembleCalls records the overlay sets passed to Assemble, in order.
	AssembleCalls [][]media.Overlay

	// MuxCalls records the audio paths passed to Mux, in order.
	MuxCalls []string
}

func (p *Processor) touch(path string) error {
	return os.WriteFile(path, []byte("mock media"), 0o644)
}

// ExtractAudio implements media.Processor.
func (p *Processor) ExtractAudio(_ context.Context, videoPath, outDir string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	out := filepath.Join(outDir, base+"_audio.wav")
	return out, p.touch(out)
}

// SeparateVocals implements media.Processor.
func (p *Processor) SeparateVocals(_ context.Context, _ string, outDir string) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", "", p.Err
	}
	vocals := filepath.Join(outDir, "vocals.wav")
	background := filepath.Join(outDir, "no_vocals.wav")
	if err := p.touch(vocals); err != nil {
		return "", "", err
	}
	return vocals, background, p.touch(background)
}

// Cut implements media.Processor.
func (p *Processor) Cut(_ context.Context, _ string, start, end float64, outPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CutCalls = append(p.CutCalls, [2]float64{start, end})
	if p.Err != nil {
		return "", p.Err
	}
	return outPath, p.touch(outPath)
}

// Duration implements media.Processor.
func (p *Processor) Duration(_ context.Context, path string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return 0, p.Err
	}
	if d, ok := p.ByPath[path]; ok {
		return d, nil
	}
	return p.DefaultDuration, nil
}

// StretchTo implements media.Processor.
func (p *Processor) StretchTo(_ context.Context, _ string, target float64, outPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StretchCalls = append(p.StretchCalls, target)
	if p.Err != nil {
		return "", p.Err
	}
	return outPath, p.touch(outPath)
}

// Assemble implements media.Processor.
func (p *Processor) Assemble(_ context.Context, _ string, overlays []media.Overlay, outPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AssembleCalls = append(p.AssembleCalls, overlays)
	if p.Err != nil {
		return "", p.Err
	}
	return outPath, p.touch(outPath)
}

// Mux implements media.Processor.
func (p *Processor) Mux(_ context.Context, _, audioPath, outPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MuxCalls = append(p.MuxCalls, audioPath)
	if p.Err != nil {
		return "", p.Err
	}
	return outPath, p.touch(outPath)
}
