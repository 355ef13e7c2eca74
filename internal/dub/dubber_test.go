package dub_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/eqadir/ariel/internal/dub"
	mediamock "github.com/eqadir/ariel/internal/media/mock"
	"github.com/eqadir/ariel/internal/record"
	"github.com/eqadir/ariel/internal/script"
	"github.com/eqadir/ariel/pkg/provider/diarize"
	diarizemock "github.com/eqadir/ariel/pkg/provider/diarize/mock"
	"github.com/eqadir/ariel/pkg/provider/llm"
	llmmock "github.com/eqadir/ariel/pkg/provider/llm/mock"
	sttmock "github.com/eqadir/ariel/pkg/provider/stt/mock"
	"github.com/eqadir/ariel/pkg/provider/tts"
	ttsmock "github.com/eqadir/ariel/pkg/provider/tts/mock"
)

// scriptedGateway edits the records on its first pass and approves every
// later pass unchanged.
type scriptedGateway struct {
	calls int
	edit  func([]record.Utterance) []record.Utterance
}

func (g *scriptedGateway) Review(_ context.Context, records []record.Utterance) ([]record.Utterance, error) {
	g.calls++
	out := record.CloneAll(records)
	if g.calls == 1 && g.edit != nil {
		out = g.edit(out)
	}
	return out, nil
}

// testLLM answers both LLM roles the pipeline uses: speaker labeling
// responses are derived from the numbered utterance list, translations echo
// each segment with a "DE:" prefix so tests can recognise fresh output.
func testLLM(t *testing.T) *llmmock.Provider {
	t.Helper()
	return &llmmock.Provider{
		CompleteFunc: func(_ context.Context, req llm.Request) (string, error) {
			if strings.Contains(req.System, "attribute speakers") {
				return labelResponse(req.Prompt), nil
			}
			return echoTranslate(t, req.Prompt)
		},
	}
}

// labelResponse labels every numbered utterance as speaker_01, Female.
func labelResponse(prompt string) string {
	var sb strings.Builder
	for _, line := range strings.Split(prompt, "\n") {
		var n int
		if _, err := fmt.Sscanf(line, "%d.", &n); err == nil {
			fmt.Fprintf(&sb, "%d: speaker_01, Female\n", n)
		}
	}
	return sb.String()
}

// echoTranslate parses the joined script out of the prompt and returns it
// with every segment prefixed. Segments containing "leave out" become the
// do-not-translate sentinel.
func echoTranslate(t *testing.T, prompt string) (string, error) {
	t.Helper()
	idx := strings.Index(prompt, script.Marker)
	if idx < 0 {
		return "", errors.New("no script in prompt")
	}
	joined := prompt[idx:]
	want := strings.Count(joined, script.Marker) - 1
	segments, err := script.Split(joined, want)
	if err != nil {
		t.Fatalf("echoTranslate: %v", err)
	}
	out := make([]string, len(segments))
	for i, s := range segments {
		if strings.Contains(s, "leave out") {
			out[i] = script.Sentinel
			continue
		}
		out[i] = "DE: " + s
	}
	return script.Join(out), nil
}

type testEnv struct {
	dubber   *dub.Dubber
	diarizer *diarizemock.Provider
	stt      *sttmock.Provider
	llm      *llmmock.Provider
	tts      *ttsmock.Provider
	media    *mediamock.Processor
	gateway  *scriptedGateway
	outDir   string
}

func newTestEnv(t *testing.T, segments []diarize.Segment) *testEnv {
	t.Helper()

	env := &testEnv{
		diarizer: &diarizemock.Provider{Segments: segments},
		stt:      &sttmock.Provider{Text: "hello from the ad"},
		llm:      testLLM(t),
		tts: &ttsmock.Provider{Voices: []tts.Voice{
			{Name: "de-DE-Neural2-A", Gender: "Female"},
			{Name: "de-DE-Neural2-B", Gender: "Male"},
			{Name: "de-DE-Neural2-C", Gender: "Female"},
		}},
		media:   &mediamock.Processor{DefaultDuration: 2.0},
		gateway: &scriptedGateway{},
		outDir:  t.TempDir(),
	}

	d, err := dub.New(dub.Config{
		InputPath:      "testdata/ad.mp4",
		OutputDir:      env.outDir,
		SourceLanguage: "en-US",
		TargetLanguage: "de-DE",
		Advertiser:     "Acme",
		MergeThreshold: 0.2,
	}, dub.Deps{
		Diarizer:    env.diarizer,
		Transcriber: env.stt,
		Translator:  env.llm,
		Synthesizer: env.tts,
		Media:       env.media,
		Review:      env.gateway,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.dubber = d
	return env
}

func TestRunMergesStagesAndDubs(t *testing.T) {
	t.Parallel()

	// Gaps of 0.1 s are below the 0.2 s threshold: all three segments merge
	// into one utterance spanning [0, 3].
	env := newTestEnv(t, []diarize.Segment{
		{Start: 0, End: 1}, {Start: 1.1, End: 2}, {Start: 2.1, End: 3},
	})

	res, err := env.dubber.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1 merged utterance", len(res.Records))
	}

	u := res.Records[0]
	if u.Start != 0 || u.End != 3 {
		t.Errorf("merged span = [%v, %v], want [0, 3]", u.Start, u.End)
	}
	if u.Text == "" || u.TranslatedText == "" {
		t.Errorf("utterance not enriched: %+v", u)
	}
	if !strings.HasPrefix(u.TranslatedText, "DE: ") {
		t.Errorf("TranslatedText = %q, want translated output", u.TranslatedText)
	}
	if u.SpeakerID != "speaker_01" || u.Gender != record.GenderFemale {
		t.Errorf("speaker labeling: got %q/%q", u.SpeakerID, u.Gender)
	}
	if u.AssignedVoice == "" {
		t.Error("no voice assigned")
	}
	if u.DubbedPath == "" {
		t.Error("no dubbed audio")
	}
	if u.Tuning.Pitch != -5.0 {
		t.Errorf("female cloud tuning pitch = %v, want -5.0", u.Tuning.Pitch)
	}

	if !strings.HasSuffix(res.OutputPath, ".mp4") {
		t.Errorf("video input must produce video output, got %q", res.OutputPath)
	}
	if _, err := os.Stat(res.MetadataPath); err != nil {
		t.Errorf("metadata checkpoint missing: %v", err)
	}
	if !strings.HasSuffix(res.MetadataPath, "utterance_metadata_de_de.json") {
		t.Errorf("unexpected checkpoint name %q", res.MetadataPath)
	}
}

func TestRunTextEditRecomputesMinimally(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{
		{Start: 0, End: 1}, {Start: 2, End: 3}, {Start: 4, End: 5},
	})
	env.gateway.edit = func(records []record.Utterance) []record.Utterance {
		records[1].Text = "corrected transcript"
		return records
	}

	res, err := env.dubber.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}

	// Transcription must not rerun for a text edit: one call per record from
	// the initial pass only.
	if got := len(env.stt.Calls); got != 3 {
		t.Errorf("transcriber calls = %d, want 3 (no re-transcription)", got)
	}
	// One cut per record, none re-cut.
	if got := len(env.media.CutCalls); got != 3 {
		t.Errorf("cut calls = %d, want 3", got)
	}
	// The edited record was re-synthesised, the others were not: three
	// initial syntheses plus exactly one more.
	if got := len(env.tts.Calls); got != 4 {
		t.Errorf("synthesizer calls = %d, want 4", got)
	}
	if res.Records[1].TranslatedText != "DE: corrected transcript" {
		t.Errorf("edited record translation = %q", res.Records[1].TranslatedText)
	}
}

func TestRunTimeEditReentersFromCut(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{
		{Start: 0, End: 1}, {Start: 2, End: 3},
	})
	env.gateway.edit = func(records []record.Utterance) []record.Utterance {
		records[0].End = 1.4
		return records
	}

	res, err := env.dubber.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Records[0].End != 1.4 {
		t.Errorf("End = %v, want 1.4", res.Records[0].End)
	}
	// Two initial cuts plus the re-cut of the edited record.
	if got := len(env.media.CutCalls); got != 3 {
		t.Errorf("cut calls = %d, want 3", got)
	}
	// Two initial transcriptions plus one re-transcription.
	if got := len(env.stt.Calls); got != 3 {
		t.Errorf("transcriber calls = %d, want 3", got)
	}
	// The re-cut clip path carries the new time range.
	if !strings.Contains(res.Records[0].Path, "1.400") {
		t.Errorf("clip path %q not regenerated for the new range", res.Records[0].Path)
	}
}

func TestRunTranslationEditSkipsTranslator(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{
		{Start: 0, End: 1}, {Start: 2, End: 3},
	})
	env.gateway.edit = func(records []record.Utterance) []record.Utterance {
		records[0].TranslatedText = "Hallo, handpoliert"
		return records
	}

	res, err := env.dubber.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Records[0].TranslatedText != "Hallo, handpoliert" {
		t.Errorf("operator wording lost: %q", res.Records[0].TranslatedText)
	}

	// A direct rewording touches synthesis only: the single translation call
	// from the initial pass is all the translator ever sees.
	translations := 0
	for _, c := range env.llm.Calls {
		if !strings.Contains(c.Req.System, "attribute speakers") {
			translations++
		}
	}
	if translations != 1 {
		t.Errorf("translator calls = %d, want 1", translations)
	}
	// Two initial syntheses plus the reworded record.
	if got := len(env.tts.Calls); got != 3 {
		t.Errorf("synthesizer calls = %d, want 3", got)
	}
	if env.tts.Calls[2].Req.Text != "Hallo, handpoliert" {
		t.Errorf("resynthesized %q, want the operator wording", env.tts.Calls[2].Req.Text)
	}
}

func TestRunGenderEditRedraftsVoice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{{Start: 0, End: 2}})
	env.gateway.edit = func(records []record.Utterance) []record.Utterance {
		records[0].Gender = record.GenderMale
		return records
	}

	res, err := env.dubber.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	u := res.Records[0]
	if u.AssignedVoice != "de-DE-Neural2-B" {
		t.Errorf("voice = %q, want a male voice after the gender edit", u.AssignedVoice)
	}
	if u.Tuning.Pitch != -10.0 {
		t.Errorf("pitch = %v, want the male cloud default -10.0", u.Tuning.Pitch)
	}
}

func TestRunNamedCataloguePrefersDisplayNameSynthesizesByID(t *testing.T) {
	t.Parallel()

	// Catalogues like ElevenLabs carry human-readable names next to opaque
	// voice IDs. Preferences match the names; synthesis uses the IDs.
	env := newTestEnv(t, []diarize.Segment{{Start: 0, End: 2}})
	env.tts.Voices = []tts.Voice{
		{Name: "Josh", ID: "TxGEqnHWrfWFTfGW9XjX", Gender: "Male"},
		{Name: "Rachel", ID: "21m00Tcm4TlvDq8ikWAM", Gender: "Female"},
	}

	d, err := dub.New(dub.Config{
		InputPath:       "testdata/ad.mp4",
		OutputDir:       env.outDir,
		SourceLanguage:  "en-US",
		TargetLanguage:  "de-DE",
		Backend:         record.BackendElevenLabs,
		PreferredVoices: []string{"Rachel"},
		MergeThreshold:  0.2,
	}, dub.Deps{
		Diarizer:    env.diarizer,
		Transcriber: env.stt,
		Translator:  env.llm,
		Synthesizer: env.tts,
		Media:       env.media,
		Review:      env.gateway,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Records[0].AssignedVoice; got != "Rachel" {
		t.Errorf("AssignedVoice = %q, want the display name Rachel", got)
	}
	if len(env.tts.Calls) == 0 {
		t.Fatal("no synthesis call recorded")
	}
	last := env.tts.Calls[len(env.tts.Calls)-1]
	if last.Req.Voice != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("synthesis voice = %q, want the voice ID behind Rachel", last.Req.Voice)
	}
}

func TestRunDubbingToggleClearsSynthesis(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{
		{Start: 0, End: 1}, {Start: 2, End: 3},
	})
	env.gateway.edit = func(records []record.Utterance) []record.Utterance {
		records[0].ForDubbing = false
		return records
	}

	res, err := env.dubber.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Records[0].DubbedPath != "" {
		t.Error("record excluded from dubbing still has a dubbed path")
	}
	if res.Records[1].DubbedPath == "" {
		t.Error("untouched record lost its dubbed path")
	}

	// The excluded record's original clip must still reach assembly.
	last := env.media.AssembleCalls[len(env.media.AssembleCalls)-1]
	if len(last) != 2 {
		t.Fatalf("assembled %d overlays, want 2", len(last))
	}
	if last[0].Path != res.Records[0].Path {
		t.Errorf("overlay 0 = %q, want the original clip %q", last[0].Path, res.Records[0].Path)
	}
}

func TestRunSentinelDropsRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{
		{Start: 0, End: 1}, {Start: 2, End: 3}, {Start: 4, End: 5},
	})
	// Per-record transcripts keyed by chunk path; the middle one triggers the
	// sentinel in echoTranslate.
	env.stt.ByPath = map[string]string{
		chunkName(env.outDir, 0, 1): "keep me one",
		chunkName(env.outDir, 2, 3): "please leave out this line",
		chunkName(env.outDir, 4, 5): "keep me two",
	}

	res, err := env.dubber.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2 after sentinel drop", len(res.Records))
	}
	if res.Records[0].Text != "keep me one" || res.Records[1].Text != "keep me two" {
		t.Errorf("wrong records dropped: %q, %q", res.Records[0].Text, res.Records[1].Text)
	}
}

func chunkName(outDir string, start, end float64) string {
	return fmt.Sprintf("%s/chunks/chunk_%.3f_%.3f.wav", outDir, start, end)
}

func TestTranslationCountMismatchIsFatal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{
		{Start: 0, End: 1}, {Start: 2, End: 3},
	})
	translations := 0
	env.llm.CompleteFunc = func(_ context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.System, "attribute speakers") {
			return labelResponse(req.Prompt), nil
		}
		translations++
		// Always one segment short.
		return script.Join([]string{"nur eins"}), nil
	}

	_, err := env.dubber.Run(context.Background())
	var consistency *dub.ConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("err = %v, want ConsistencyError", err)
	}
	if !errors.Is(err, script.ErrSegmentCountMismatch) {
		t.Errorf("err = %v, want wrapped ErrSegmentCountMismatch", err)
	}
	// The collaborator call is retried a bounded number of times.
	if translations != 5 {
		t.Errorf("translation attempts = %d, want 5", translations)
	}
}

func TestTranslatorOutageIsCollaboratorError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{{Start: 0, End: 1}})
	env.llm.CompleteFunc = func(_ context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.System, "attribute speakers") {
			return labelResponse(req.Prompt), nil
		}
		return "", errors.New("backend unavailable")
	}

	_, err := env.dubber.Run(context.Background())
	var collab *dub.CollaboratorError
	if !errors.As(err, &collab) {
		t.Fatalf("err = %v, want CollaboratorError", err)
	}
	if collab.Name != "translator" {
		t.Errorf("collaborator = %q, want translator", collab.Name)
	}
}

func TestSameLanguageSkipsTranslator(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []diarize.Segment{{Start: 0, End: 2}})

	d, err := dub.New(dub.Config{
		InputPath:      "testdata/ad.mp4",
		OutputDir:      env.outDir,
		SourceLanguage: "en-US",
		TargetLanguage: "en-GB",
		MergeThreshold: 0.2,
	}, dub.Deps{
		Diarizer:    env.diarizer,
		Transcriber: env.stt,
		Translator:  env.llm,
		Synthesizer: env.tts,
		Media:       env.media,
		Review:      &scriptedGateway{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Records[0].TranslatedText; got != res.Records[0].Text {
		t.Errorf("same-language translation = %q, want transcript copy %q", got, res.Records[0].Text)
	}
}

func TestDubWithUtterancesSynthesizesOnlyMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	records := []record.Utterance{
		{
			Start: 0, End: 1.5, ForDubbing: true,
			Path: "chunks/chunk_0.000_1.500.wav",
			Text: "first line", TranslatedText: "erste Zeile",
			SpeakerID: "speaker_01", Gender: record.GenderFemale,
			AssignedVoice: "de-DE-Neural2-A",
			DubbedPath:    "chunks/dubbed_chunk_0_aaaaaaaa.mp3",
		},
		{
			Start: 2, End: 3.5, ForDubbing: true,
			Path: "chunks/chunk_2.000_3.500.wav",
			Text: "second line", TranslatedText: "zweite Zeile",
			SpeakerID: "speaker_02", Gender: record.GenderMale,
		},
	}

	res, err := env.dubber.DubWithUtterances(context.Background(), records)
	if err != nil {
		t.Fatalf("DubWithUtterances: %v", err)
	}

	// The checkpoint is trusted as reviewed: no diarization, transcription
	// or translation happens on resume.
	if len(env.diarizer.Calls) != 0 {
		t.Errorf("diarizer called %d times on resume", len(env.diarizer.Calls))
	}
	if len(env.stt.Calls) != 0 {
		t.Errorf("transcriber called %d times on resume", len(env.stt.Calls))
	}

	// Only the record without synthesis output is rendered.
	if got := len(env.tts.Calls); got != 1 {
		t.Fatalf("synthesizer calls = %d, want 1", got)
	}
	if env.tts.Calls[0].Req.Text != "zweite Zeile" {
		t.Errorf("synthesized %q, want the record missing output", env.tts.Calls[0].Req.Text)
	}
	if res.Records[0].DubbedPath != records[0].DubbedPath {
		t.Error("existing dubbed path was regenerated")
	}
	if res.Records[1].DubbedPath == "" {
		t.Error("missing dubbed path was not filled in")
	}
	// The checkpoint binding survives; the second speaker drafts a male voice.
	if res.Records[0].AssignedVoice != "de-DE-Neural2-A" {
		t.Errorf("record 0 voice = %q, want checkpoint binding kept", res.Records[0].AssignedVoice)
	}
	if res.Records[1].AssignedVoice != "de-DE-Neural2-B" {
		t.Errorf("record 1 voice = %q, want the male catalogue voice", res.Records[1].AssignedVoice)
	}
}

func TestRunLoggerCarriesTraceContext(t *testing.T) {
	// Swaps the global tracer provider; must not run in parallel.
	tp := sdktrace.NewTracerProvider()
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})

	env := newTestEnv(t, []diarize.Segment{{Start: 0, End: 1}})
	var buf bytes.Buffer
	d, err := dub.New(dub.Config{
		InputPath:      "testdata/ad.mp4",
		OutputDir:      env.outDir,
		SourceLanguage: "en-US",
		TargetLanguage: "de-DE",
		MergeThreshold: 0.2,
	}, dub.Deps{
		Diarizer:    env.diarizer,
		Transcriber: env.stt,
		Translator:  env.llm,
		Synthesizer: env.tts,
		Media:       env.media,
		Review:      env.gateway,
		Logger:      slog.New(slog.NewTextHandler(&buf, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	logged := buf.String()
	if !strings.Contains(logged, "trace_id=") {
		t.Errorf("run logs missing trace_id, got: %s", logged)
	}
	if !strings.Contains(logged, "span_id=") {
		t.Errorf("run logs missing span_id, got: %s", logged)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	deps := dub.Deps{
		Diarizer:    &diarizemock.Provider{},
		Transcriber: &sttmock.Provider{},
		Translator:  &llmmock.Provider{},
		Synthesizer: &ttsmock.Provider{},
		Media:       &mediamock.Processor{},
	}

	tests := []struct {
		name string
		cfg  dub.Config
	}{
		{"missing input", dub.Config{OutputDir: "o", SourceLanguage: "en", TargetLanguage: "de"}},
		{"missing languages", dub.Config{InputPath: "a.mp4", OutputDir: "o"}},
		{"unsupported format", dub.Config{InputPath: "a.mkv", OutputDir: "o", SourceLanguage: "en", TargetLanguage: "de"}},
		{"unknown backend", dub.Config{InputPath: "a.mp4", OutputDir: "o", SourceLanguage: "en", TargetLanguage: "de", Backend: "wavenet"}},
		{"negative translate attempts", dub.Config{InputPath: "a.mp4", OutputDir: "o", SourceLanguage: "en", TargetLanguage: "de", TranslateAttempts: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := dub.New(tt.cfg, deps); !errors.Is(err, dub.ErrBadConfig) {
				t.Errorf("New error = %v, want ErrBadConfig", err)
			}
		})
	}
}

func TestNewRejectsMissingDeps(t *testing.T) {
	t.Parallel()

	cfg := dub.Config{InputPath: "a.mp4", OutputDir: "o", SourceLanguage: "en", TargetLanguage: "de"}
	_, err := dub.New(cfg, dub.Deps{})
	if !errors.Is(err, dub.ErrBadConfig) {
		t.Errorf("New error = %v, want ErrBadConfig", err)
	}
}
