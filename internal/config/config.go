// Package config provides the configuration schema, loader, and provider registry
// for the Ariel ad dubbing pipeline.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ReviewMode selects how utterance metadata is confirmed before synthesis
// results are assembled into the final output.
type ReviewMode string

const (
	// ReviewConsole pauses the run and lets an operator edit the metadata
	// checkpoint file, confirming on the terminal.
	ReviewConsole ReviewMode = "console"

	// ReviewAuto approves the generated metadata without operator input.
	ReviewAuto ReviewMode = "auto"
)

// IsValid reports whether m is a recognised review mode.
func (m ReviewMode) IsValid() bool {
	return m == ReviewConsole || m == ReviewAuto
}

// Config is the root configuration structure for Ariel.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Job       JobConfig       `yaml:"job"`
	Providers ProvidersConfig `yaml:"providers"`
	Media     MediaConfig     `yaml:"media"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// JobConfig describes one dubbing job: the input, the language pair, and the
// knobs steering the pipeline stages.
type JobConfig struct {
	// Input is the advertisement to dub, video (.mp4) or audio (.wav/.mp3/.flac).
	Input string `yaml:"input"`

	// OutputDir receives the cut chunks, the metadata checkpoint, and the
	// final dubbed output.
	OutputDir string `yaml:"output_dir"`

	// SourceLanguage and TargetLanguage are BCP-47 tags (e.g. "en-US", "de-DE").
	SourceLanguage string `yaml:"source_language"`
	TargetLanguage string `yaml:"target_language"`

	// Advertiser is the brand name, used as a transcription hint and
	// translation context.
	Advertiser string `yaml:"advertiser"`

	// Description gives the translator additional product context.
	Description string `yaml:"description"`

	// NumSpeakers hints the diarizer. Zero lets it estimate.
	NumSpeakers int `yaml:"num_speakers"`

	// MergeThreshold is the diarization gap in seconds below which adjacent
	// segments of one speaker turn merge. Zero selects the default.
	MergeThreshold float64 `yaml:"merge_threshold"`

	// PreferredVoices ranks voice name fragments for speaker assignment,
	// highest priority first (e.g. ["Journey", "Studio", "Neural2"]).
	PreferredVoices []string `yaml:"preferred_voices"`

	// TranslationInstructions is appended to the translation prompt.
	TranslationInstructions string `yaml:"translation_instructions"`

	// TranslateAttempts bounds translation retries. Zero selects the default.
	TranslateAttempts int `yaml:"translate_attempts"`

	// Review selects how the generated metadata is confirmed. Empty means
	// console.
	Review ReviewMode `yaml:"review"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline collaborator. Each entry selects a named provider registered in
// the [Registry].
type ProvidersConfig struct {
	Diarization ProviderEntry `yaml:"diarization"`
	STT         ProviderEntry `yaml:"stt"`
	LLM         ProviderEntry `yaml:"llm"`
	TTS         ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. For the
	// self-hosted whisper and pyannote servers it is the server address and
	// is required.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "eleven_multilingual_v2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Fallbacks lists additional providers of the same kind, tried in order
	// when this one fails or its circuit breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// MediaConfig holds paths to the external media tools. Empty fields resolve
// from PATH.
type MediaConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	DemucsPath  string `yaml:"demucs_path"`
}

// LoggingConfig controls log verbosity and optional file output.
type LoggingConfig struct {
	// Level controls verbosity. Empty means info.
	Level LogLevel `yaml:"level"`

	// File enables rotated file logging in addition to stderr. When nil,
	// logs go to stderr only.
	File *LogFileConfig `yaml:"file"`
}

// LogFileConfig configures rotated log file output.
type LogFileConfig struct {
	// Path is the log file location.
	Path string `yaml:"path"`

	// MaxSizeMB is the size in megabytes at which the file rotates.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays is the maximum age of a rotated file in days.
	MaxAgeDays int `yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `yaml:"compress"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// ListenAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}
