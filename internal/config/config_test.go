package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/eqadir/ariel/internal/config"
	"github.com/eqadir/ariel/pkg/provider/diarize"
	"github.com/eqadir/ariel/pkg/provider/llm"
	"github.com/eqadir/ariel/pkg/provider/stt"
	"github.com/eqadir/ariel/pkg/provider/tts"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
job:
  input: ads/spot.mp4
  output_dir: out
  source_language: en-US
  target_language: de-DE
  advertiser: Acme
  description: Hand-polished widgets for the discerning household.
  num_speakers: 2
  merge_threshold: 0.001
  preferred_voices:
    - Journey
    - Studio
    - Neural2
  review: console

providers:
  diarization:
    name: pyannote
    base_url: http://localhost:8001
  stt:
    name: whisper
    base_url: http://localhost:8080
    model: large-v3
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
  tts:
    name: google

media:
  ffmpeg_path: /usr/bin/ffmpeg

logging:
  level: info
  file:
    path: out/ariel.log
    max_size_mb: 50
    max_backups: 3

metrics:
  listen_addr: ":9090"
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Job.Input != "ads/spot.mp4" {
		t.Errorf("job.input: got %q, want %q", cfg.Job.Input, "ads/spot.mp4")
	}
	if cfg.Job.SourceLanguage != "en-US" || cfg.Job.TargetLanguage != "de-DE" {
		t.Errorf("language pair: got %q / %q", cfg.Job.SourceLanguage, cfg.Job.TargetLanguage)
	}
	if cfg.Job.NumSpeakers != 2 {
		t.Errorf("job.num_speakers: got %d, want 2", cfg.Job.NumSpeakers)
	}
	if cfg.Job.MergeThreshold != 0.001 {
		t.Errorf("job.merge_threshold: got %v, want 0.001", cfg.Job.MergeThreshold)
	}
	if len(cfg.Job.PreferredVoices) != 3 || cfg.Job.PreferredVoices[0] != "Journey" {
		t.Errorf("job.preferred_voices: got %v", cfg.Job.PreferredVoices)
	}
	if cfg.Job.Review != config.ReviewConsole {
		t.Errorf("job.review: got %q, want console", cfg.Job.Review)
	}
	if cfg.Providers.Diarization.BaseURL != "http://localhost:8001" {
		t.Errorf("providers.diarization.base_url: got %q", cfg.Providers.Diarization.BaseURL)
	}
	if cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("providers.llm.model: got %q", cfg.Providers.LLM.Model)
	}
	if cfg.Media.FFmpegPath != "/usr/bin/ffmpeg" {
		t.Errorf("media.ffmpeg_path: got %q", cfg.Media.FFmpegPath)
	}
	if cfg.Logging.Level != config.LogInfo {
		t.Errorf("logging.level: got %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.File == nil || cfg.Logging.File.Path != "out/ariel.log" {
		t.Errorf("logging.file: got %+v", cfg.Logging.File)
	}
	if cfg.Metrics.ListenAddr != ":9090" {
		t.Errorf("metrics.listen_addr: got %q", cfg.Metrics.ListenAddr)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	yaml := `
job:
  input: a.mp4
  output_dirr: out
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected an error for an unknown field, got nil")
	}
}

// ── validation ────────────────────────────────────────────────────────────────

func validConfig() *config.Config {
	return &config.Config{
		Job: config.JobConfig{
			Input:          "ads/spot.mp4",
			OutputDir:      "out",
			SourceLanguage: "en-US",
			TargetLanguage: "de-DE",
		},
		Providers: config.ProvidersConfig{
			Diarization: config.ProviderEntry{Name: "pyannote", BaseURL: "http://localhost:8001"},
			STT:         config.ProviderEntry{Name: "whisper", BaseURL: "http://localhost:8080"},
			LLM:         config.ProviderEntry{Name: "openai", APIKey: "sk-test"},
			TTS:         config.ProviderEntry{Name: "google"},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := config.Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingInput(t *testing.T) {
	cfg := validConfig()
	cfg.Job.Input = ""
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "job.input") {
		t.Fatalf("expected a job.input error, got: %v", err)
	}
}

func TestValidate_InvalidReviewMode(t *testing.T) {
	cfg := validConfig()
	cfg.Job.Review = "email"
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "job.review") {
		t.Fatalf("expected a job.review error, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected a logging.level error, got: %v", err)
	}
}

func TestValidate_PyannoteRequiresBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Providers.Diarization.BaseURL = ""
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "providers.diarization.base_url") {
		t.Fatalf("expected a diarization base_url error, got: %v", err)
	}
}

func TestValidate_ElevenLabsRequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Providers.TTS = config.ProviderEntry{Name: "elevenlabs"}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "providers.tts.api_key") {
		t.Fatalf("expected a tts api_key error, got: %v", err)
	}
}

func TestValidate_NegativeMergeThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Job.MergeThreshold = -0.5
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "job.merge_threshold") {
		t.Fatalf("expected a merge_threshold error, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &config.Config{}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected errors for an empty config, got nil")
	}
	for _, want := range []string{"job.input", "job.output_dir", "providers.llm", "providers.tts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

// ── registry ──────────────────────────────────────────────────────────────────

func TestRegistry_UnknownDiarize(t *testing.T) {
	r := config.NewRegistry()
	_, err := r.CreateDiarize(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownSTT(t *testing.T) {
	r := config.NewRegistry()
	_, err := r.CreateSTT(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownLLM(t *testing.T) {
	r := config.NewRegistry()
	_, err := r.CreateLLM(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownTTS(t *testing.T) {
	r := config.NewRegistry()
	_, err := r.CreateTTS(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

type fakeLLM struct{}

func (fakeLLM) Complete(context.Context, llm.Request) (string, error) { return "", nil }

type fakeSTT struct{}

func (fakeSTT) Transcribe(context.Context, stt.Request) (string, error) { return "", nil }

type fakeTTS struct{}

func (fakeTTS) Synthesize(context.Context, tts.Request) (string, error) { return "", nil }
func (fakeTTS) ListVoices(context.Context, string) ([]tts.Voice, error) { return nil, nil }

type fakeDiarize struct{}

func (fakeDiarize) Diarize(context.Context, string, int) ([]diarize.Segment, error) {
	return nil, nil
}

func TestRegistry_RegisteredFactories(t *testing.T) {
	r := config.NewRegistry()
	r.RegisterDiarize("pyannote", func(config.ProviderEntry) (diarize.Provider, error) { return fakeDiarize{}, nil })
	r.RegisterSTT("whisper", func(config.ProviderEntry) (stt.Provider, error) { return fakeSTT{}, nil })
	r.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) { return fakeLLM{}, nil })
	r.RegisterTTS("google", func(config.ProviderEntry) (tts.Provider, error) { return fakeTTS{}, nil })

	if _, err := r.CreateDiarize(config.ProviderEntry{Name: "pyannote"}); err != nil {
		t.Errorf("CreateDiarize: %v", err)
	}
	if _, err := r.CreateSTT(config.ProviderEntry{Name: "whisper"}); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := r.CreateLLM(config.ProviderEntry{Name: "openai"}); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}
	if _, err := r.CreateTTS(config.ProviderEntry{Name: "google"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	r := config.NewRegistry()
	boom := errors.New("bad credentials")
	r.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })

	_, err := r.CreateLLM(config.ProviderEntry{Name: "openai"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the factory error, got: %v", err)
	}
}
