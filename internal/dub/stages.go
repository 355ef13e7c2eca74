package dub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eqadir/ariel/internal/record"
	"github.com/eqadir/ariel/internal/script"
	"github.com/eqadir/ariel/internal/voice"
	"github.com/eqadir/ariel/pkg/provider/diarize"
	"github.com/eqadir/ariel/pkg/provider/llm"
	"github.com/eqadir/ariel/pkg/provider/stt"
	"github.com/eqadir/ariel/pkg/provider/tts"
)

// diarizeStage detects speech segments on the vocals track.
func (d *Dubber) diarizeStage(ctx context.Context, vocalsPath string) ([]diarize.Segment, error) {
	start := time.Now()
	segments, err := d.deps.Diarizer.Diarize(ctx, vocalsPath, d.cfg.NumSpeakers)
	d.metrics.RecordCollaborator(ctx, "diarizer", err)
	d.metrics.RecordStage(ctx, "diarize", time.Since(start))
	if err != nil {
		return nil, collabErr("diarizer", err)
	}
	if len(segments) == 0 {
		return nil, &CollaboratorError{Name: "diarizer", Err: errors.New("no speech detected")}
	}
	d.vocals = vocalsPath
	return segments, nil
}

// cutStage cuts one clip per record from the vocals track. Cuts run
// concurrently; each result lands at its record's index.
func (d *Dubber) cutStage(ctx context.Context, records []record.Utterance, vocalsPath string) error {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "cut", time.Since(start)) }()

	g, ctx := stageGroup(ctx)
	for i := range records {
		g.Go(func() error {
			return d.cutRecord(ctx, &records[i], vocalsPath)
		})
	}
	return g.Wait()
}

func (d *Dubber) cutRecord(ctx context.Context, u *record.Utterance, vocalsPath string) error {
	path, err := d.deps.Media.Cut(ctx, vocalsPath, u.Start, u.End, d.chunkPath(u.Start, u.End))
	if err != nil {
		return collabErr("media", err)
	}
	u.Path = path
	return nil
}

// transcribeStage fills Text for every record.
func (d *Dubber) transcribeStage(ctx context.Context, records []record.Utterance) error {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "transcribe", time.Since(start)) }()

	g, ctx := stageGroup(ctx)
	for i := range records {
		g.Go(func() error {
			return d.transcribeRecord(ctx, &records[i])
		})
	}
	return g.Wait()
}

func (d *Dubber) transcribeRecord(ctx context.Context, u *record.Utterance) error {
	var hints []string
	if d.cfg.Advertiser != "" {
		hints = append(hints, d.cfg.Advertiser)
	}
	text, err := d.deps.Transcriber.Transcribe(ctx, stt.Request{
		AudioPath: u.Path,
		Language:  shortLang(d.cfg.SourceLanguage),
		Hints:     hints,
	})
	d.metrics.RecordCollaborator(ctx, "transcriber", err)
	if err != nil {
		return collabErr("transcriber", err)
	}
	u.Text = text
	return nil
}

// speakerLineRe matches one line of the labeling response:
//
//	1: speaker_01, Female
var speakerLineRe = regexp.MustCompile(`(?m)^\s*(\d+)\s*[:.]\s*([A-Za-z0-9_-]+)\s*[,|]\s*(Male|Female|Neutral)\s*$`)

// labelSpeakers attributes a speaker id and gender to every record in a
// single LLM call over the full transcript.
func (d *Dubber) labelSpeakers(ctx context.Context, records []record.Utterance) error {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "label_speakers", time.Since(start)) }()

	var sb strings.Builder
	for i, u := range records {
		fmt.Fprintf(&sb, "%d. [%.2fs-%.2fs] %s\n", i+1, u.Start, u.End, u.Text)
	}

	speakerHint := "an unknown number of"
	if d.cfg.NumSpeakers > 0 {
		speakerHint = strconv.Itoa(d.cfg.NumSpeakers)
	}
	req := llm.Request{
		System: "You attribute speakers in advertisement transcripts. " +
			"Answer with exactly one line per utterance in the form " +
			"\"<number>: <speaker_id>, <Male|Female|Neutral>\" and nothing else. " +
			"Use speaker ids of the form speaker_01, speaker_02, ... and reuse the " +
			"same id whenever the same person speaks.",
		Prompt: fmt.Sprintf(
			"The following %d utterances were spoken by %s speakers in an advertisement%s. "+
				"Label each utterance with its speaker and the speaker's voice gender.\n\n%s",
			len(records), speakerHint, advertiserSuffix(d.cfg.Advertiser), sb.String()),
	}

	resp, err := d.deps.Translator.Complete(ctx, req)
	d.metrics.RecordCollaborator(ctx, "speaker_labeler", err)
	if err != nil {
		return collabErr("speaker_labeler", err)
	}

	labels := map[int][2]string{}
	for _, m := range speakerLineRe.FindAllStringSubmatch(resp, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(records) {
			continue
		}
		labels[n-1] = [2]string{m[2], m[3]}
	}
	if len(labels) != len(records) {
		return &CollaboratorError{
			Name: "speaker_labeler",
			Err:  fmt.Errorf("labeled %d of %d utterances", len(labels), len(records)),
		}
	}
	for i := range records {
		records[i].SpeakerID = labels[i][0]
		records[i].Gender = record.Gender(labels[i][1])
	}
	return nil
}

func advertiserSuffix(advertiser string) string {
	if advertiser == "" {
		return ""
	}
	return " for " + advertiser
}

// translateStage translates the whole transcript in one collaborator call
// using the script serialization protocol. Same-language runs copy the
// transcript without an LLM call. Records whose translation comes back as
// the do-not-translate sentinel are dropped from the store entirely.
//
// The collaborator call is retried a bounded number of times; a count
// mismatch surviving all attempts is fatal.
func (d *Dubber) translateStage(ctx context.Context, records []record.Utterance) ([]record.Utterance, error) {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "translate", time.Since(start)) }()

	if shortLang(d.cfg.SourceLanguage) == shortLang(d.cfg.TargetLanguage) {
		for i := range records {
			records[i].TranslatedText = records[i].Text
		}
		return records, nil
	}

	texts := make([]string, len(records))
	for i, u := range records {
		texts[i] = u.Text
	}
	joined := script.Join(texts)

	segments, err := d.translateScript(ctx, joined, len(records))
	if err != nil {
		return nil, err
	}

	kept, dropped := script.DropSentinels(segments)
	if len(dropped) > 0 {
		d.log.Info("dropped do-not-translate records", slog.Any("indices", dropped))
		d.metrics.RecordsInStore.Add(ctx, -int64(len(dropped)))
	}

	droppedSet := make(map[int]bool, len(dropped))
	for _, idx := range dropped {
		droppedSet[idx] = true
	}
	out := make([]record.Utterance, 0, len(kept))
	k := 0
	for i, u := range records {
		if droppedSet[i] {
			continue
		}
		u.TranslatedText = kept[k]
		k++
		out = append(out, u)
	}
	return out, nil
}

// translateScript submits one joined script and splits the response back
// into exactly want segments, retrying the collaborator on failure.
func (d *Dubber) translateScript(ctx context.Context, joined string, want int) ([]string, error) {
	req := llm.Request{
		System: "You are a professional translator for advertisement scripts. " +
			"Translate naturally for dubbing: match the speech register and keep each " +
			"segment speakable in roughly the original duration. The input segments are " +
			"separated by the literal marker " + script.Marker + "; reproduce every marker " +
			"unchanged and translate only the text between markers. If a segment must not " +
			"be translated, output exactly " + script.Sentinel + " for it. Output nothing " +
			"except the translated script.",
		Prompt: translatePrompt(d.cfg, joined),
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.TranslateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := d.deps.Translator.Complete(ctx, req)
		d.metrics.RecordCollaborator(ctx, "translator", err)
		if err != nil {
			lastErr = err
			d.log.Warn("translation attempt failed",
				slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		}
		segments, err := script.Split(resp, want)
		if err != nil {
			lastErr = err
			d.log.Warn("translation split failed",
				slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		}
		return segments, nil
	}

	if errors.Is(lastErr, script.ErrSegmentCountMismatch) {
		return nil, &ConsistencyError{Err: lastErr}
	}
	return nil, collabErr("translator", lastErr)
}

func translatePrompt(cfg Config, joined string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following advertisement script from %s to %s.",
		cfg.SourceLanguage, cfg.TargetLanguage)
	if cfg.Advertiser != "" {
		fmt.Fprintf(&sb, " The advertiser is %s.", cfg.Advertiser)
	}
	if cfg.Description != "" {
		fmt.Fprintf(&sb, " Context: %s.", cfg.Description)
	}
	if cfg.TranslationInstructions != "" {
		fmt.Fprintf(&sb, " Specific instructions: %s.", cfg.TranslationInstructions)
	}
	sb.WriteString("\n\n")
	sb.WriteString(joined)
	return sb.String()
}

// assignVoices binds every speaker to a synthesis voice and derives the
// per-record tuning. Bindings already present on the records (from a resumed
// checkpoint or operator edits) are kept and only missing speakers are
// drafted from the remaining pool.
func (d *Dubber) assignVoices(ctx context.Context, records []record.Utterance) error {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "assign_voice", time.Since(start)) }()

	catalog, err := d.voiceCatalog(ctx)
	if err != nil {
		return err
	}

	existing := map[string]voice.Assignment{}
	for _, u := range records {
		if u.SpeakerID != "" && u.AssignedVoice != "" {
			existing[u.SpeakerID] = voice.Assignment{
				Voice:  u.AssignedVoice,
				Gender: u.Gender,
				State:  voice.Assigned,
			}
		}
	}

	var unbound []voice.Speaker
	for _, sp := range voice.Speakers(records) {
		if _, ok := existing[sp.ID]; !ok {
			unbound = append(unbound, sp)
		}
	}

	d.table = voice.NewTable(existing, d.cfg.PreferredVoices, catalog)
	fresh := voice.Assign(unbound, d.cfg.PreferredVoices, catalogMinusClaimed(catalog, existing), voice.Options{})
	for id, a := range fresh {
		if a.State != voice.Assigned {
			return fmt.Errorf("dub: assign voices: no %s voice available for speaker %q", a.Gender, id)
		}
		existing[id] = a
		d.table.Bind(id, a)
	}

	for i := range records {
		u := &records[i]
		a, ok := existing[u.SpeakerID]
		if !ok {
			return fmt.Errorf("dub: assign voices: record %d has unlabeled speaker", i)
		}
		u.AssignedVoice = a.Voice
		u.Tuning = record.DefaultTuning(u.Gender, d.cfg.Backend)
	}
	return nil
}

// voiceCatalog fetches the provider catalogue for the target language.
func (d *Dubber) voiceCatalog(ctx context.Context) ([]voice.Voice, error) {
	voices, err := d.deps.Synthesizer.ListVoices(ctx, d.cfg.TargetLanguage)
	d.metrics.RecordCollaborator(ctx, "voice_catalog", err)
	if err != nil {
		return nil, collabErr("voice_catalog", err)
	}
	catalog := make([]voice.Voice, 0, len(voices))
	d.voiceIDs = make(map[string]string)
	for _, v := range voices {
		if v.ID != "" {
			d.voiceIDs[v.Name] = v.ID
		}
		catalog = append(catalog, voice.Voice{Name: v.Name, Gender: record.Gender(v.Gender)})
	}
	return catalog, nil
}

// synthesisVoice maps an assigned voice to the identifier the backend wants.
// Names absent from the catalogue map, including operator-entered raw IDs,
// pass through unchanged.
func (d *Dubber) synthesisVoice(name string) string {
	if id, ok := d.voiceIDs[name]; ok {
		return id
	}
	return name
}

// catalogMinusClaimed filters out voices already bound by existing
// assignments so the greedy pass cannot hand them out twice.
func catalogMinusClaimed(catalog []voice.Voice, existing map[string]voice.Assignment) []voice.Voice {
	claimed := make(map[string]bool, len(existing))
	for _, a := range existing {
		if a.Voice != "" {
			claimed[a.Voice] = true
		}
	}
	out := make([]voice.Voice, 0, len(catalog))
	for _, v := range catalog {
		if !claimed[v.Name] {
			out = append(out, v)
		}
	}
	return out
}

// synthesizeStage renders every for_dubbing record. Synthesis runs
// concurrently; each result lands at its record's index.
func (d *Dubber) synthesizeStage(ctx context.Context, records []record.Utterance) error {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "synthesize", time.Since(start)) }()

	g, ctx := stageGroup(ctx)
	for i := range records {
		if !records[i].ForDubbing {
			continue
		}
		g.Go(func() error {
			return d.synthesizeRecord(ctx, &records[i], i)
		})
	}
	return g.Wait()
}

// synthesizeRecord renders one record and, when the synthesized duration
// does not fit the utterance's time slot, time-stretches the clip. Clips at
// or below the stretch floor are used as-is.
func (d *Dubber) synthesizeRecord(ctx context.Context, u *record.Utterance, index int) error {
	if u.AssignedVoice == "" {
		return &ConsistencyError{
			Err: fmt.Errorf("record %d is for dubbing but has no assigned voice", index),
		}
	}

	out, err := d.deps.Synthesizer.Synthesize(ctx, tts.Request{
		Text:            u.TranslatedText,
		Voice:           d.synthesisVoice(u.AssignedVoice),
		Language:        d.cfg.TargetLanguage,
		OutputPath:      d.dubbedPath(index),
		Pitch:           u.Tuning.Pitch,
		SpeakingRate:    u.Tuning.Speed,
		VolumeGainDb:    u.Tuning.VolumeGainDB,
		Stability:       u.Tuning.Stability,
		SimilarityBoost: u.Tuning.SimilarityBoost,
		Style:           u.Tuning.Style,
		UseSpeakerBoost: u.Tuning.UseSpeakerBoost,
	})
	d.metrics.RecordCollaborator(ctx, "synthesizer", err)
	if err != nil {
		return collabErr("synthesizer", err)
	}

	have, err := d.deps.Media.Duration(ctx, out)
	if err != nil {
		return collabErr("media", err)
	}
	if want := u.Duration(); needsStretch(have, want) {
		fitted := strings.TrimSuffix(out, ".mp3") + "_fit.mp3"
		if out, err = d.deps.Media.StretchTo(ctx, out, want, fitted); err != nil {
			return collabErr("media", err)
		}
	}

	u.DubbedPath = out
	d.metrics.UtterancesDubbed.Add(ctx, 1)
	return nil
}
