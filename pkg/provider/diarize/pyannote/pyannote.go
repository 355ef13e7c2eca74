// Package pyannote provides a diarization provider backed by a pyannote.audio
// HTTP server. The server wraps the pyannote speaker-diarization pipeline
// behind a small REST API: POST /diarize with the audio file and an optional
// speaker-count hint, receive the detected speech segments as JSON.
//
// Usage:
//
//	p, err := pyannote.New("http://localhost:9090")
//	segments, err := p.Diarize(ctx, "vocals.wav", 2)
package pyannote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eqadir/ariel/pkg/provider/diarize"
)

// Compile-time assertion that Provider implements diarize.Provider.
var _ diarize.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 min; full
// diarization of a long video on CPU is slow.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements diarize.Provider backed by a pyannote HTTP server.
type Provider struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a new Provider that connects to the pyannote server at
// serverURL (e.g., "http://localhost:9090"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("pyannote: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// segmentResponse is a single segment entry from the pyannote server.
type segmentResponse struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Diarize implements diarize.Provider.
func (p *Provider) Diarize(ctx context.Context, audioPath string, numSpeakers int) ([]diarize.Segment, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("pyannote: read audio file: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("pyannote: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("pyannote: write audio data: %w", err)
	}
	if numSpeakers > 0 {
		if err := mw.WriteField("num_speakers", strconv.Itoa(numSpeakers)); err != nil {
			return nil, fmt.Errorf("pyannote: write num_speakers field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("pyannote: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/diarize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("pyannote: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pyannote: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pyannote: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pyannote: read response body: %w", err)
	}

	var result struct {
		Segments []segmentResponse `json:"segments"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("pyannote: parse JSON response: %w", err)
	}

	segments := make([]diarize.Segment, 0, len(result.Segments))
	for _, s := range result.Segments {
		segments = append(segments, diarize.Segment{Start: s.Start, End: s.End})
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	return segments, nil
}
