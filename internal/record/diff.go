package record

import "fmt"

// Stage identifies one enrichment stage of the dubbing pipeline, in fixed
// execution order. Lower values run earlier.
type Stage int

const (
	StageCut Stage = iota
	StageTranscribe
	StageTranslate
	StageAssignVoice
	StageSynthesize
	numStages
)

// String returns the stage name used in logs and error messages.
func (s Stage) String() string {
	switch s {
	case StageCut:
		return "cut"
	case StageTranscribe:
		return "transcribe"
	case StageTranslate:
		return "translate"
	case StageAssignVoice:
		return "assign_voice"
	case StageSynthesize:
		return "synthesize"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageSet is a set of pipeline stages, stored as a bitmask.
type StageSet uint8

// NewStageSet builds a set from the given stages.
func NewStageSet(stages ...Stage) StageSet {
	var s StageSet
	for _, st := range stages {
		s |= 1 << uint(st)
	}
	return s
}

// Has reports whether st is in the set.
func (s StageSet) Has(st Stage) bool {
	return s&(1<<uint(st)) != 0
}

// IsEmpty reports whether the set contains no stages.
func (s StageSet) IsEmpty() bool { return s == 0 }

// Lowest returns the earliest stage in the set. It panics on an empty set;
// callers check IsEmpty first.
func (s StageSet) Lowest() Stage {
	for st := StageCut; st < numStages; st++ {
		if s.Has(st) {
			return st
		}
	}
	panic("record: Lowest on empty StageSet")
}

// Stages returns the members of the set in pipeline order.
func (s StageSet) Stages() []Stage {
	var out []Stage
	for st := StageCut; st < numStages; st++ {
		if s.Has(st) {
			out = append(out, st)
		}
	}
	return out
}

// Patch describes one edited record: its position, which fields the operator
// changed, and which pipeline stages the record must re-enter as a result.
type Patch struct {
	// Index is the record's position in both sequences.
	Index int

	// TimeChanged is set when start or end moved. The record re-enters the
	// pipeline from the cut stage: its clip, transcript, translation, voice
	// and synthesis are all stale.
	TimeChanged bool

	// TextChanged is set when the source transcript changed without a time
	// edit. Only translation and synthesis are stale.
	TextChanged bool

	// TranslationChanged is set when the operator reworded the translated
	// text directly. Only synthesis is stale.
	TranslationChanged bool

	// SpeakerChanged is set when any of the speaker identity triple
	// (speaker id, assigned voice, gender) changed. The voice binding is
	// re-resolved from the assignment table and the record re-synthesised.
	SpeakerChanged bool

	// DubbingToggled is set when for_dubbing flipped.
	DubbingToggled bool

	// Stages is the set of stages the record must re-enter, derived from
	// the flags above.
	Stages StageSet
}

// Diff compares the last-confirmed sequence against an operator-edited copy
// and returns one patch per index where they differ.
//
// Records are compared positionally: an edit preserves the original
// utterance's temporal slot, so index alignment is the identity. The two
// sequences must therefore have identical length — the review loop never
// inserts, deletes or reorders records, only mutates fields in place.
// Records with no differences produce no patch and must be carried through
// untouched by the caller.
func Diff(original, edited []Utterance) ([]Patch, error) {
	if len(original) != len(edited) {
		return nil, fmt.Errorf("record: edited sequence has %d records, original has %d; records cannot be added or removed during review", len(edited), len(original))
	}
	var patches []Patch
	for i := range original {
		p := diffRecord(i, original[i], edited[i])
		if !p.Stages.IsEmpty() || p.DubbingToggled {
			patches = append(patches, p)
		}
	}
	return patches, nil
}

func diffRecord(index int, o, e Utterance) Patch {
	p := Patch{Index: index}

	if o.Start != e.Start || o.End != e.End {
		p.TimeChanged = true
	}
	if o.Text != e.Text {
		p.TextChanged = true
	}
	if o.TranslatedText != e.TranslatedText {
		p.TranslationChanged = true
	}
	if o.SpeakerID != e.SpeakerID || o.AssignedVoice != e.AssignedVoice || o.Gender != e.Gender {
		p.SpeakerChanged = true
	}
	if o.ForDubbing != e.ForDubbing {
		p.DubbingToggled = true
	}

	switch {
	case p.TimeChanged:
		// A moved time range invalidates everything derived from the clip.
		p.Stages = NewStageSet(StageCut, StageTranscribe, StageTranslate, StageAssignVoice, StageSynthesize)
	default:
		if p.TextChanged {
			p.Stages |= NewStageSet(StageTranslate, StageSynthesize)
		}
		if p.TranslationChanged && !p.TextChanged {
			p.Stages |= NewStageSet(StageSynthesize)
		}
		if p.SpeakerChanged {
			p.Stages |= NewStageSet(StageAssignVoice, StageSynthesize)
		}
		if p.DubbingToggled && e.ForDubbing {
			// Re-enabled for dubbing: it needs a synthesis result again.
			p.Stages |= NewStageSet(StageSynthesize)
		}
	}
	return p
}
