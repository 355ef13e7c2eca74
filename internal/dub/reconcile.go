package dub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eqadir/ariel/internal/record"
	"github.com/eqadir/ariel/internal/script"
)

// Reconcile re-runs exactly the stages each patch marks, in pipeline order,
// and splices the recomputed records back at their original indices. Records
// without a patch are carried over from confirmed untouched, with no
// collaborator calls. The returned index list names the records whose
// synthesized output actually changed, detected by dubbed-path comparison.
func (d *Dubber) Reconcile(ctx context.Context, confirmed, edited []record.Utterance, patches []record.Patch) ([]record.Utterance, []int, error) {
	start := time.Now()
	defer func() { d.metrics.RecordStage(ctx, "reconcile", time.Since(start)) }()

	if len(confirmed) != len(edited) {
		return nil, nil, &ConsistencyError{
			Err: fmt.Errorf("edited sequence has %d records, confirmed has %d", len(edited), len(confirmed)),
		}
	}
	if err := d.ensureTable(ctx, edited); err != nil {
		return nil, nil, err
	}

	result := record.CloneAll(confirmed)
	var changed []int
	for _, p := range patches {
		if p.Index < 0 || p.Index >= len(result) {
			return nil, nil, &ConsistencyError{Err: fmt.Errorf("patch index %d out of range", p.Index)}
		}
		u := edited[p.Index].Clone()
		if err := d.reconcileRecord(ctx, &u, confirmed[p.Index], p); err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", p.Index, err)
		}
		if u.DubbedPath != confirmed[p.Index].DubbedPath {
			changed = append(changed, p.Index)
		}
		result[p.Index] = u
	}
	return result, changed, nil
}

// reconcileRecord re-enters one record into the pipeline at the lowest
// invalidated stage and carries it through the remaining marked stages.
func (d *Dubber) reconcileRecord(ctx context.Context, u *record.Utterance, prev record.Utterance, p record.Patch) error {
	if p.DubbingToggled && !u.ForDubbing {
		// Dropped from the dub: the original clip passes through.
		u.DubbedPath = ""
	}
	for _, st := range p.Stages.Stages() {
		switch st {
		case record.StageCut:
			if d.vocals == "" {
				return &ConsistencyError{Err: errors.New("time edit needs the vocals track of the original run")}
			}
			if err := d.cutRecord(ctx, u, d.vocals); err != nil {
				return err
			}
		case record.StageTranscribe:
			if err := d.transcribeRecord(ctx, u); err != nil {
				return err
			}
		case record.StageTranslate:
			if err := d.translateRecord(ctx, u); err != nil {
				return err
			}
		case record.StageAssignVoice:
			if err := d.resolveVoice(u, prev); err != nil {
				return err
			}
		case record.StageSynthesize:
			if !u.ForDubbing {
				// Dropped from the dub: the original clip passes through.
				u.DubbedPath = ""
				continue
			}
			if err := d.synthesizeRecord(ctx, u, p.Index); err != nil {
				return err
			}
		}
	}
	return nil
}

// translateRecord re-translates a single record through the script protocol.
// A sentinel response here cannot shrink the sequence the way the full
// translation stage does, so it clears the record's dubbing flag instead.
func (d *Dubber) translateRecord(ctx context.Context, u *record.Utterance) error {
	if shortLang(d.cfg.SourceLanguage) == shortLang(d.cfg.TargetLanguage) {
		u.TranslatedText = u.Text
		return nil
	}
	segments, err := d.translateScript(ctx, script.Join([]string{u.Text}), 1)
	if err != nil {
		return err
	}
	if segments[0] == script.Sentinel {
		u.TranslatedText = ""
		u.ForDubbing = false
		return nil
	}
	u.TranslatedText = segments[0]
	return nil
}

// resolveVoice re-derives the record's voice binding from the assignment
// table. A voice the operator set directly on the record wins and rebinds
// the speaker; otherwise the table's existing binding or a fresh draft is
// used.
func (d *Dubber) resolveVoice(u *record.Utterance, prev record.Utterance) error {
	direct := ""
	if u.AssignedVoice != "" && u.AssignedVoice != prev.AssignedVoice {
		direct = u.AssignedVoice
	}
	a, err := d.table.Resolve(u.SpeakerID, u.Gender, direct)
	if err != nil {
		return err
	}
	u.AssignedVoice = a.Voice
	u.Tuning = record.DefaultTuning(u.Gender, d.cfg.Backend)
	return nil
}

// ensureTable lazily rebuilds the voice table from the records' current
// bindings, for runs resumed from a checkpoint where the original matching
// pass never ran in this process.
func (d *Dubber) ensureTable(ctx context.Context, records []record.Utterance) error {
	if d.table != nil {
		return nil
	}
	return d.assignVoices(ctx, record.CloneAll(records))
}
