package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"diarization": {"pyannote"},
	"stt":         {"whisper"},
	"llm":         {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":         {"google", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Job
	if cfg.Job.Input == "" {
		errs = append(errs, errors.New("job.input is required"))
	}
	if cfg.Job.OutputDir == "" {
		errs = append(errs, errors.New("job.output_dir is required"))
	}
	if cfg.Job.SourceLanguage == "" {
		errs = append(errs, errors.New("job.source_language is required"))
	}
	if cfg.Job.TargetLanguage == "" {
		errs = append(errs, errors.New("job.target_language is required"))
	}
	if cfg.Job.NumSpeakers < 0 {
		errs = append(errs, fmt.Errorf("job.num_speakers %d must not be negative", cfg.Job.NumSpeakers))
	}
	if cfg.Job.MergeThreshold < 0 {
		errs = append(errs, fmt.Errorf("job.merge_threshold %.3f must not be negative", cfg.Job.MergeThreshold))
	}
	if cfg.Job.TranslateAttempts < 0 {
		errs = append(errs, fmt.Errorf("job.translate_attempts %d must not be negative", cfg.Job.TranslateAttempts))
	}
	if cfg.Job.Review != "" && !cfg.Job.Review.IsValid() {
		errs = append(errs, fmt.Errorf("job.review %q is invalid; valid values: console, auto", cfg.Job.Review))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("diarization", cfg.Providers.Diarization.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Every collaborator is required for a run.
	if cfg.Providers.Diarization.Name == "" {
		errs = append(errs, errors.New("providers.diarization is required"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts is required"))
	}

	// Self-hosted servers need an address.
	if cfg.Providers.Diarization.Name == "pyannote" && cfg.Providers.Diarization.BaseURL == "" {
		errs = append(errs, errors.New("providers.diarization.base_url is required for the pyannote server"))
	}
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.BaseURL == "" {
		errs = append(errs, errors.New("providers.stt.base_url is required for the whisper server"))
	}
	if cfg.Providers.TTS.Name == "elevenlabs" && cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required for elevenlabs"))
	}

	// Logging
	if cfg.Logging.Level != "" && !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if cfg.Logging.File != nil && cfg.Logging.File.Path == "" {
		errs = append(errs, errors.New("logging.file.path is required when file logging is configured"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
