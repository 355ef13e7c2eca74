// Command ariel dubs an advertisement into a target language.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eqadir/ariel/internal/config"
	"github.com/eqadir/ariel/internal/dub"
	"github.com/eqadir/ariel/internal/health"
	"github.com/eqadir/ariel/internal/media"
	"github.com/eqadir/ariel/internal/observe"
	"github.com/eqadir/ariel/internal/record"
	"github.com/eqadir/ariel/internal/resilience"
	"github.com/eqadir/ariel/internal/review"
	"github.com/eqadir/ariel/pkg/provider/diarize"
	"github.com/eqadir/ariel/pkg/provider/diarize/pyannote"
	"github.com/eqadir/ariel/pkg/provider/llm"
	"github.com/eqadir/ariel/pkg/provider/llm/anyllm"
	oai "github.com/eqadir/ariel/pkg/provider/llm/openai"
	"github.com/eqadir/ariel/pkg/provider/stt"
	"github.com/eqadir/ariel/pkg/provider/stt/whisper"
	"github.com/eqadir/ariel/pkg/provider/tts"
	"github.com/eqadir/ariel/pkg/provider/tts/elevenlabs"
	"github.com/eqadir/ariel/pkg/provider/tts/googletts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	resumePath := flag.String("resume", "", "resume from an utterance metadata checkpoint instead of a fresh run")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ariel: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ariel: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, closeLog := newLogger(cfg.Logging)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("ariel starting",
		"config", *configPath,
		"input", cfg.Job.Input,
		"source", cfg.Job.SourceLanguage,
		"target", cfg.Job.TargetLanguage,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "ariel"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if cfg.Metrics.ListenAddr != "" {
		go serveMetrics(cfg.Metrics.ListenAddr, cfg)
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	deps, cleanup, err := buildDeps(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer cleanup()

	// ── Dub ───────────────────────────────────────────────────────────────────
	dubber, err := dub.New(jobConfig(cfg), deps)
	if err != nil {
		slog.Error("invalid job", "err", err)
		return 1
	}

	var result *dub.Result
	if *resumePath != "" {
		records, err := record.LoadFile(*resumePath)
		if err != nil {
			slog.Error("failed to load checkpoint", "path", *resumePath, "err", err)
			return 1
		}
		slog.Info("resuming from checkpoint", "path", *resumePath, "utterances", len(records))
		result, err = dubber.DubWithUtterances(ctx, records)
		if err != nil {
			return reportRunError(err)
		}
	} else {
		result, err = dubber.Run(ctx)
		if err != nil {
			return reportRunError(err)
		}
	}

	fmt.Printf("dubbed output: %s\n", result.OutputPath)
	fmt.Printf("utterance metadata: %s\n", result.MetadataPath)
	return 0
}

func reportRunError(err error) int {
	if errors.Is(err, context.Canceled) {
		slog.Info("run cancelled")
		return 130
	}
	var collab *dub.CollaboratorError
	if errors.As(err, &collab) {
		slog.Error("collaborator failure", "collaborator", collab.Name, "err", collab.Err)
		return 1
	}
	slog.Error("run failed", "err", err)
	return 1
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── Diarization ───────────────────────────────────────────────────────────

	reg.RegisterDiarize("pyannote", func(entry config.ProviderEntry) (diarize.Provider, error) {
		return pyannote.New(entry.BaseURL)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai uses the native SDK; the rest go through any-llm. They all share
	// the same pattern: optional APIKey + optional BaseURL.

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oai.Option
		if entry.BaseURL != "" {
			opts = append(opts, oai.WithBaseURL(entry.BaseURL))
		}
		return oai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		return googletts.New(ctx)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// buildDeps instantiates all collaborators named in cfg and returns them as
// the [dub.Deps] the pipeline consumes, plus a cleanup function releasing
// provider connections.
func buildDeps(cfg *config.Config, reg *config.Registry) (dub.Deps, func(), error) {
	var deps dub.Deps
	cleanup := func() {}

	diarizer, err := reg.CreateDiarize(cfg.Providers.Diarization)
	if err != nil {
		return deps, cleanup, fmt.Errorf("create diarization provider %q: %w", cfg.Providers.Diarization.Name, err)
	}
	transcriber, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return deps, cleanup, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	translator, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return deps, cleanup, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	synthesizer, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return deps, cleanup, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}

	if entries := cfg.Providers.STT.Fallbacks; len(entries) > 0 {
		group := resilience.NewSTTFallback(transcriber, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		for _, entry := range entries {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				return deps, cleanup, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, p)
		}
		transcriber = group
	}
	if entries := cfg.Providers.LLM.Fallbacks; len(entries) > 0 {
		group := resilience.NewLLMFallback(translator, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		for _, entry := range entries {
			p, err := reg.CreateLLM(entry)
			if err != nil {
				return deps, cleanup, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, p)
		}
		translator = group
	}
	if entries := cfg.Providers.TTS.Fallbacks; len(entries) > 0 {
		group := resilience.NewTTSFallback(synthesizer, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		for _, entry := range entries {
			p, err := reg.CreateTTS(entry)
			if err != nil {
				return deps, cleanup, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, p)
		}
		synthesizer = group
	}
	if closer, ok := synthesizer.(io.Closer); ok {
		cleanup = func() {
			if err := closer.Close(); err != nil {
				slog.Warn("tts provider close error", "err", err)
			}
		}
	}

	var mediaOpts []media.FFmpegOption
	if cfg.Media.FFmpegPath != "" {
		mediaOpts = append(mediaOpts, media.WithFFmpegPath(cfg.Media.FFmpegPath))
	}
	if cfg.Media.FFprobePath != "" {
		mediaOpts = append(mediaOpts, media.WithFFprobePath(cfg.Media.FFprobePath))
	}
	if cfg.Media.DemucsPath != "" {
		mediaOpts = append(mediaOpts, media.WithDemucsPath(cfg.Media.DemucsPath))
	}

	deps = dub.Deps{
		Diarizer:    diarizer,
		Transcriber: transcriber,
		Translator:  translator,
		Synthesizer: synthesizer,
		Media:       media.NewFFmpeg(mediaOpts...),
		Review:      newReviewGateway(cfg),
	}
	return deps, cleanup, nil
}

// newReviewGateway selects the review mode. Console review edits the
// checkpoint file next to the final metadata.
func newReviewGateway(cfg *config.Config) review.Gateway {
	if cfg.Job.Review == config.ReviewAuto {
		return review.Auto{}
	}
	return review.NewConsole(os.Stdin, os.Stdout,
		record.MetadataPath(cfg.Job.OutputDir, cfg.Job.TargetLanguage))
}

// jobConfig maps the YAML job block onto the pipeline configuration.
func jobConfig(cfg *config.Config) dub.Config {
	backend := record.BackendCloudTTS
	if cfg.Providers.TTS.Name == "elevenlabs" {
		backend = record.BackendElevenLabs
	}
	return dub.Config{
		InputPath:               cfg.Job.Input,
		OutputDir:               cfg.Job.OutputDir,
		SourceLanguage:          cfg.Job.SourceLanguage,
		TargetLanguage:          cfg.Job.TargetLanguage,
		Advertiser:              cfg.Job.Advertiser,
		Description:             cfg.Job.Description,
		NumSpeakers:             cfg.Job.NumSpeakers,
		MergeThreshold:          cfg.Job.MergeThreshold,
		PreferredVoices:         cfg.Job.PreferredVoices,
		Backend:                 backend,
		TranslationInstructions: cfg.Job.TranslationInstructions,
		TranslateAttempts:       cfg.Job.TranslateAttempts,
	}
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

// serveMetrics exposes /metrics plus liveness and readiness probes for the
// self-hosted collaborator servers.
func serveMetrics(addr string, cfg *config.Config) {
	var checkers []health.Checker
	if url := cfg.Providers.Diarization.BaseURL; url != "" {
		checkers = append(checkers, health.HTTPChecker("diarization", url))
	}
	if url := cfg.Providers.STT.BaseURL; url != "" {
		checkers = append(checkers, health.HTTPChecker("stt", url))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint error", "err", err)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. With file logging configured, records
// go to both stderr and a size-rotated file.
func newLogger(cfg config.LoggingConfig) (*slog.Logger, func()) {
	var lvl slog.Level
	switch cfg.Level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.File != nil {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		w = io.MultiWriter(os.Stderr, rotated)
		closeLog = func() { rotated.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closeLog
}
