// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. Each Synthesize call opens a
// stream-input connection, sends the full utterance text, and collects the
// audio chunks into a single MP3 file.
//
// ElevenLabs has no pitch or rate controls; tuning is expressed through the
// voice_settings object (stability, similarity boost, style, speaker boost).
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/eqadir/ariel/pkg/provider/tts"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"

	defaultModel     = "eleven_multilingual_v2"
	defaultOutputFmt = "mp3_44100_128"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- WebSocket message types ----

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// boiMessage is the initial "begin of input" handshake payload.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// textMessage is the JSON payload sent for the utterance text.
type textMessage struct {
	Text string `json:"text"`
}

// audioResponse is the JSON message received over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio chunk
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// Synthesize implements tts.Provider. It streams req.Text through the
// stream-input WebSocket and writes the collected audio to req.OutputPath.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (string, error) {
	if req.Voice == "" {
		return "", errors.New("elevenlabs: req.Voice must not be empty")
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, req.Voice, p.model, p.outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// BOI authenticates the stream and fixes the voice settings.
	boi := boiMessage{
		Text: " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       req.Stability,
			SimilarityBoost: req.SimilarityBoost,
			Style:           req.Style,
			UseSpeakerBoost: req.UseSpeakerBoost,
		},
		XiAPIKey: p.apiKey,
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return "", fmt.Errorf("elevenlabs: send BOI: %w", err)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: req.Text + " "}); err != nil {
		return "", fmt.Errorf("elevenlabs: send text: %w", err)
	}
	// Empty text signals end of input and triggers the final flush.
	if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return "", fmt.Errorf("elevenlabs: send EOS: %w", err)
	}

	var audio []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// The server closes the socket once the final chunk is sent.
			if len(audio) > 0 && ctx.Err() == nil {
				break
			}
			return "", fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return "", fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			audio = append(audio, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}
	if len(audio) == 0 {
		return "", errors.New("elevenlabs: no audio received")
	}

	out := req.OutputPath
	if ext := filepath.Ext(out); ext != ".mp3" {
		out = strings.TrimSuffix(out, ext) + ".mp3"
	}
	if err := os.WriteFile(out, audio, 0o644); err != nil {
		return "", fmt.Errorf("elevenlabs: write audio file: %w", err)
	}
	return out, nil
}

// writeJSON marshals v and sends it as a single text message.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID string            `json:"voice_id"`
	Name    string            `json:"name"`
	Labels  map[string]string `json:"labels"`
}

// ListVoices implements tts.Provider. ElevenLabs voices are not organised by
// language, so the language argument is ignored and the full catalogue for
// the configured API key is returned.
func (p *Provider) ListVoices(ctx context.Context, _ string) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return parseVoices(vr), nil
}

// parseVoices maps the ElevenLabs catalogue onto tts.Voice values. The
// display name is what operators match voice preferences against; the voice
// ID is what Synthesize needs, so both are carried.
func parseVoices(vr voicesResponse) []tts.Voice {
	voices := make([]tts.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, tts.Voice{
			Name:   v.Name,
			ID:     v.VoiceID,
			Gender: normalizeGender(v.Labels["gender"]),
		})
	}
	return voices
}

// normalizeGender maps the free-form label onto the catalogue's gender strings.
func normalizeGender(label string) string {
	switch strings.ToLower(label) {
	case "male":
		return "Male"
	case "female":
		return "Female"
	default:
		return "Neutral"
	}
}
