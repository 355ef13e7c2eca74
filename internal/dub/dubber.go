// Package dub orchestrates the ad-dubbing pipeline: diarization, utterance
// merging, per-utterance audio cuts, transcription, speaker labeling,
// translation, voice assignment, and synthesis, followed by an operator
// review loop that selectively recomputes only what each edit invalidated.
//
// The Dubber owns the utterance record store, the per-run voice assignment
// table, and the collaborator providers for the duration of one run. Stages
// run strictly in order; within the per-record stages (cut, synthesize)
// records are processed concurrently but results always land at their
// original index.
package dub

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eqadir/ariel/internal/media"
	"github.com/eqadir/ariel/internal/observe"
	"github.com/eqadir/ariel/internal/record"
	"github.com/eqadir/ariel/internal/review"
	"github.com/eqadir/ariel/internal/voice"
	"github.com/eqadir/ariel/pkg/provider/diarize"
	"github.com/eqadir/ariel/pkg/provider/llm"
	"github.com/eqadir/ariel/pkg/provider/stt"
	"github.com/eqadir/ariel/pkg/provider/tts"
)

const (
	// minStretchSeconds is the duration floor below which synthesized audio
	// is never time-stretched; stretch ratios on near-zero clips are
	// pathological.
	minStretchSeconds = 1.0

	// stretchTolerance is the duration mismatch (seconds) below which a
	// synthesized clip is used as-is.
	stretchTolerance = 0.1

	// stageConcurrency bounds parallel collaborator calls within one
	// per-record stage.
	stageConcurrency = 4

	// defaultMergeThreshold is the gap (seconds) below which adjacent
	// diarized segments merge into one utterance.
	defaultMergeThreshold = 0.001

	// defaultTranslateAttempts bounds retries of the translation call at the
	// collaborator boundary. The core itself never retries.
	defaultTranslateAttempts = 5
)

// Config holds the per-run dubbing parameters.
type Config struct {
	// InputPath is the source advertisement, video (.mp4) or audio
	// (.wav/.mp3/.flac).
	InputPath string

	// OutputDir receives the cut chunks, the metadata checkpoint, and the
	// final dubbed output.
	OutputDir string

	// SourceLanguage and TargetLanguage are BCP-47 tags (e.g. "en-US",
	// "de-DE").
	SourceLanguage string
	TargetLanguage string

	// Advertiser and Description give the collaborators domain context:
	// brand names as transcription hints, product context for translation.
	Advertiser  string
	Description string

	// NumSpeakers hints the diarizer; zero lets it estimate.
	NumSpeakers int

	// MergeThreshold is the diarization gap (seconds) below which adjacent
	// segments merge. Zero selects the default.
	MergeThreshold float64

	// PreferredVoices ranks voice name fragments for assignment, highest
	// priority first. Empty means any catalogue voice of matching gender.
	PreferredVoices []string

	// Backend selects the synthesis tuning profile.
	Backend record.Backend

	// TranslationInstructions is appended to the translation prompt.
	TranslationInstructions string

	// TranslateAttempts bounds translation retries. Zero selects the
	// default.
	TranslateAttempts int
}

func (c *Config) validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("%w: input path is required", ErrBadConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", ErrBadConfig)
	}
	if c.SourceLanguage == "" || c.TargetLanguage == "" {
		return fmt.Errorf("%w: source and target languages are required", ErrBadConfig)
	}
	if c.Backend == "" {
		c.Backend = record.BackendCloudTTS
	}
	if !c.Backend.IsValid() {
		return fmt.Errorf("%w: unknown synthesis backend %q", ErrBadConfig, c.Backend)
	}
	if c.MergeThreshold == 0 {
		c.MergeThreshold = defaultMergeThreshold
	}
	if c.TranslateAttempts < 0 {
		return fmt.Errorf("%w: translate attempts must not be negative", ErrBadConfig)
	}
	if c.TranslateAttempts == 0 {
		c.TranslateAttempts = defaultTranslateAttempts
	}
	if _, err := media.Classify(c.InputPath); err != nil {
		return fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	return nil
}

// Deps are the collaborator boundaries the Dubber drives.
type Deps struct {
	Diarizer    diarize.Provider
	Transcriber stt.Provider
	Translator  llm.Provider
	Synthesizer tts.Provider
	Media       media.Processor
	Review      review.Gateway

	// Logger defaults to slog.Default; Metrics to observe.DefaultMetrics.
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

func (d *Deps) validate() error {
	switch {
	case d.Diarizer == nil:
		return fmt.Errorf("%w: diarizer is required", ErrBadConfig)
	case d.Transcriber == nil:
		return fmt.Errorf("%w: transcriber is required", ErrBadConfig)
	case d.Translator == nil:
		return fmt.Errorf("%w: translator is required", ErrBadConfig)
	case d.Synthesizer == nil:
		return fmt.Errorf("%w: synthesizer is required", ErrBadConfig)
	case d.Media == nil:
		return fmt.Errorf("%w: media processor is required", ErrBadConfig)
	}
	return nil
}

// Dubber runs one dubbing job. It is not safe for concurrent use: the record
// store and the voice table belong to a single run.
type Dubber struct {
	cfg  Config
	deps Deps

	log     *slog.Logger
	metrics *observe.Metrics

	chunksDir string
	vocals    string
	table     *voice.Table

	// voiceIDs maps catalogue display names to backend synthesis
	// identifiers for providers whose two differ, such as ElevenLabs.
	voiceIDs map[string]string
}

// Result is the outcome of a completed run.
type Result struct {
	// OutputPath is the final dubbed file.
	OutputPath string
	// MetadataPath is the utterance checkpoint written alongside it.
	MetadataPath string
	// Records is the final record store.
	Records []record.Utterance
}

// New creates a Dubber after validating the configuration and dependencies.
func New(cfg Config, deps Deps) (*Dubber, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Review == nil {
		deps.Review = review.Auto{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Dubber{
		cfg:       cfg,
		deps:      deps,
		log:       log.With(slog.String("component", "dubber")),
		metrics:   metrics,
		chunksDir: filepath.Join(cfg.OutputDir, "chunks"),
	}, nil
}

// metadataPath is the operator-editable checkpoint for this run.
func (d *Dubber) metadataPath() string {
	return record.MetadataPath(d.cfg.OutputDir, d.cfg.TargetLanguage)
}

// Run executes the whole pipeline: preprocessing, the five enrichment
// stages, the review/reconcile loop, and postprocessing into the final
// dubbed file.
func (d *Dubber) Run(ctx context.Context) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "dub.run")
	defer span.End()
	d.log = observe.Logger(ctx, d.log)

	kind, background, vocals, err := d.preprocess(ctx)
	if err != nil {
		return nil, err
	}

	records, err := d.GenerateUtterances(ctx, vocals)
	if err != nil {
		return nil, err
	}
	if err := record.Save(records, d.metadataPath()); err != nil {
		return nil, fmt.Errorf("dub: save checkpoint: %w", err)
	}

	confirmed, err := d.reviewLoop(ctx, records)
	if err != nil {
		return nil, err
	}

	out, err := d.postprocess(ctx, kind, confirmed, background)
	if err != nil {
		return nil, err
	}
	if err := record.Save(confirmed, d.metadataPath()); err != nil {
		return nil, fmt.Errorf("dub: save final checkpoint: %w", err)
	}

	d.log.Info("dubbing complete",
		slog.String("output", out),
		slog.Int("utterances", len(confirmed)))
	return &Result{OutputPath: out, MetadataPath: d.metadataPath(), Records: confirmed}, nil
}

// DubWithUtterances resumes a run from an approved utterance checkpoint:
// preprocessing is repeated, records missing synthesis output are rendered,
// and the final output is assembled. Stages 1-3 never re-run; the checkpoint
// is trusted as reviewed.
func (d *Dubber) DubWithUtterances(ctx context.Context, records []record.Utterance) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "dub.resume")
	defer span.End()
	d.log = observe.Logger(ctx, d.log)

	if err := record.Validate(records); err != nil {
		return nil, &ConsistencyError{Err: err}
	}

	kind, background, _, err := d.preprocess(ctx)
	if err != nil {
		return nil, err
	}

	records = record.CloneAll(records)
	if err := d.assignVoices(ctx, records); err != nil {
		return nil, err
	}
	for i := range records {
		if !records[i].ForDubbing || records[i].DubbedPath != "" {
			continue
		}
		if err := d.synthesizeRecord(ctx, &records[i], i); err != nil {
			return nil, err
		}
	}

	out, err := d.postprocess(ctx, kind, records, background)
	if err != nil {
		return nil, err
	}
	if err := record.Save(records, d.metadataPath()); err != nil {
		return nil, fmt.Errorf("dub: save final checkpoint: %w", err)
	}
	return &Result{OutputPath: out, MetadataPath: d.metadataPath(), Records: records}, nil
}

// preprocess classifies the input, prepares the workspace, extracts the
// audio track for video inputs, and separates vocals from background.
func (d *Dubber) preprocess(ctx context.Context) (media.Kind, string, string, error) {
	kind, err := media.Classify(d.cfg.InputPath)
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if err := os.MkdirAll(d.chunksDir, 0o755); err != nil {
		return 0, "", "", fmt.Errorf("dub: create workspace: %w", err)
	}

	audio := d.cfg.InputPath
	if kind == media.KindVideo {
		audio, err = d.deps.Media.ExtractAudio(ctx, d.cfg.InputPath, d.cfg.OutputDir)
		if err != nil {
			return 0, "", "", collabErr("media", err)
		}
	}

	start := time.Now()
	vocals, background, err := d.deps.Media.SeparateVocals(ctx, audio, d.cfg.OutputDir)
	d.metrics.RecordCollaborator(ctx, "separator", err)
	if err != nil {
		return 0, "", "", collabErr("media", err)
	}
	d.log.Info("separated vocals",
		slog.String("vocals", vocals),
		slog.Duration("took", time.Since(start)))
	return kind, background, vocals, nil
}

// GenerateUtterances runs the five enrichment stages over the vocals track
// and returns the populated record store. This is the state the operator
// reviews.
func (d *Dubber) GenerateUtterances(ctx context.Context, vocalsPath string) ([]record.Utterance, error) {
	segments, err := d.diarizeStage(ctx, vocalsPath)
	if err != nil {
		return nil, err
	}

	records := make([]record.Utterance, 0, len(segments))
	for _, s := range segments {
		records = append(records, record.Utterance{
			Start:      s.Start,
			End:        s.End,
			ForDubbing: true,
		})
	}
	merged := record.Merge(records, d.cfg.MergeThreshold)
	d.log.Info("merged diarized segments",
		slog.Int("raw", len(records)),
		slog.Int("merged", len(merged)))
	d.metrics.RecordsInStore.Add(ctx, int64(len(merged)))

	if err := d.cutStage(ctx, merged, vocalsPath); err != nil {
		return nil, err
	}
	if err := d.transcribeStage(ctx, merged); err != nil {
		return nil, err
	}
	if err := d.labelSpeakers(ctx, merged); err != nil {
		return nil, err
	}
	merged, err = d.translateStage(ctx, merged)
	if err != nil {
		return nil, err
	}
	if err := d.assignVoices(ctx, merged); err != nil {
		return nil, err
	}
	if err := d.synthesizeStage(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// reviewLoop alternates operator review with minimal reconciliation until a
// pass comes back without edits.
func (d *Dubber) reviewLoop(ctx context.Context, records []record.Utterance) ([]record.Utterance, error) {
	confirmed := records
	for {
		d.metrics.ReviewIterations.Add(ctx, 1)
		edited, err := d.deps.Review.Review(ctx, confirmed)
		if err != nil {
			return nil, fmt.Errorf("dub: review: %w", err)
		}
		patches, err := record.Diff(confirmed, edited)
		if err != nil {
			return nil, &ConsistencyError{Err: err}
		}
		if len(patches) == 0 {
			return confirmed, nil
		}
		d.log.Info("applying review edits", slog.Int("patches", len(patches)))

		confirmed, _, err = d.Reconcile(ctx, confirmed, edited, patches)
		if err != nil {
			return nil, err
		}
		if err := record.Save(confirmed, d.metadataPath()); err != nil {
			return nil, fmt.Errorf("dub: save checkpoint: %w", err)
		}
	}
}

// postprocess lays the dubbed clips over the background track and, for video
// inputs, muxes the assembled audio back under the original video stream.
// Records flagged for_dubbing=false contribute their original clip audio.
func (d *Dubber) postprocess(ctx context.Context, kind media.Kind, records []record.Utterance, background string) (string, error) {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "postprocess", time.Since(start)) }()

	overlays := make([]media.Overlay, 0, len(records))
	for _, u := range records {
		clip := u.Path
		if u.ForDubbing && u.DubbedPath != "" {
			clip = u.DubbedPath
		}
		if clip == "" {
			continue
		}
		overlays = append(overlays, media.Overlay{Path: clip, Start: u.Start})
	}

	base := strings.TrimSuffix(filepath.Base(d.cfg.InputPath), filepath.Ext(d.cfg.InputPath))
	lang := strings.ToLower(strings.ReplaceAll(d.cfg.TargetLanguage, "-", "_"))

	assembled := filepath.Join(d.cfg.OutputDir, fmt.Sprintf("%s_dubbed_%s.wav", base, lang))
	if _, err := d.deps.Media.Assemble(ctx, background, overlays, assembled); err != nil {
		return "", collabErr("media", err)
	}
	if kind != media.KindVideo {
		return assembled, nil
	}

	out := filepath.Join(d.cfg.OutputDir, fmt.Sprintf("%s_dubbed_%s.mp4", base, lang))
	if _, err := d.deps.Media.Mux(ctx, d.cfg.InputPath, assembled, out); err != nil {
		return "", collabErr("media", err)
	}
	return out, nil
}

// ---- helpers shared by stages and the reconciler ----

// chunkPath names the cut clip for a time range. The range is part of the
// name so a time edit forces a fresh cut instead of overwriting the old clip.
func (d *Dubber) chunkPath(start, end float64) string {
	return filepath.Join(d.chunksDir, fmt.Sprintf("chunk_%.3f_%.3f.wav", start, end))
}

// dubbedPath names a synthesis output. The random suffix makes every
// synthesis produce a fresh path, which is how the reconciler's callers
// detect which records actually changed.
func (d *Dubber) dubbedPath(index int) string {
	return filepath.Join(d.chunksDir, fmt.Sprintf("dubbed_chunk_%d_%s.mp3", index, uuid.NewString()[:8]))
}

// shortLang reduces a BCP-47 tag to its primary subtag ("en-US" -> "en").
func shortLang(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}

// needsStretch reports whether a synthesized clip of duration have should be
// re-timed to fit a slot of duration want.
func needsStretch(have, want float64) bool {
	if have < minStretchSeconds || want < minStretchSeconds {
		return false
	}
	return math.Abs(have-want) > stretchTolerance
}

// stageGroup returns an errgroup bounded to the per-stage concurrency limit.
func stageGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(stageConcurrency)
	return g, ctx
}
