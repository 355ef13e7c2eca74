// Package voice assigns synthesis voices to speakers.
//
// Assignment is a greedy bipartite matching: speakers are visited in stable
// input order and each one takes the first catalog voice that matches its
// gender, honours the caller's preference ranking, and has not been claimed
// by an earlier speaker. A voice, once bound, is never shared within a run.
// Given the same catalog order and preference list the result is fully
// deterministic.
//
// The per-run [Table] keeps the resulting speaker→voice bindings so that
// operator edits can be resolved incrementally: reusing a known speaker id
// looks the binding up instead of re-running the whole matching pass, which
// would risk reshuffling voices already bound to untouched speakers.
package voice

import (
	"fmt"
	"strings"

	"github.com/eqadir/ariel/internal/record"
)

// Voice is one entry of a synthesis backend's catalog.
type Voice struct {
	// Name is the backend's voice identifier (e.g. "pl-PL-Wavenet-A").
	Name string

	// Gender is the voice's reported SSML gender.
	Gender record.Gender
}

// Speaker is one distinct speaker extracted from the record store, in first
// appearance order.
type Speaker struct {
	ID     string
	Gender record.Gender
}

// State describes the outcome of matching one speaker.
type State int

const (
	// Unassigned means the catalog holds no unclaimed voice of the
	// speaker's gender and the caller is expected to fall back to a
	// default of its choosing.
	Unassigned State = iota

	// Assigned means a voice from the catalog was bound to the speaker.
	Assigned

	// ExplicitNone means no voice could be bound and the caller opted in
	// to recording that outcome explicitly rather than leaving the
	// speaker unresolved.
	ExplicitNone
)

// Assignment is the tri-state result of matching one speaker. Voice is only
// meaningful when State is Assigned.
type Assignment struct {
	Voice  string
	Gender record.Gender
	State  State
}

// Options tunes the matching pass.
type Options struct {
	// ExplicitNoneOnMiss records an ExplicitNone assignment for speakers
	// no catalog voice could be bound to instead of leaving them
	// Unassigned.
	ExplicitNoneOnMiss bool
}

// Assign matches each speaker to a voice from catalog.
//
// For every preferred name fragment, in the caller's priority order, the
// candidate group is the subset of catalog voices whose name contains the
// fragment, in catalog order. Each speaker scans the groups in priority
// order, then the full catalog, and takes the first gender-matching voice
// not yet claimed. Preferences bias the matching; they never make it fail.
func Assign(speakers []Speaker, prefs []string, catalog []Voice, opts Options) map[string]Assignment {
	groups := groupByPreference(prefs, catalog)

	claimed := make(map[string]bool, len(speakers))
	out := make(map[string]Assignment, len(speakers))
	for _, sp := range speakers {
		if _, done := out[sp.ID]; done {
			continue
		}
		bound := false
		for _, group := range groups {
			for _, v := range group {
				if v.Gender != sp.Gender || claimed[v.Name] {
					continue
				}
				claimed[v.Name] = true
				out[sp.ID] = Assignment{Voice: v.Name, Gender: sp.Gender, State: Assigned}
				bound = true
				break
			}
			if bound {
				break
			}
		}
		if !bound {
			state := Unassigned
			if opts.ExplicitNoneOnMiss {
				state = ExplicitNone
			}
			out[sp.ID] = Assignment{Gender: sp.Gender, State: state}
		}
	}
	return out
}

// groupByPreference builds the ordered candidate groups. Fragments that
// match nothing produce empty groups, which the matching loop skips. The
// full catalog is appended as the last group, so a preference list that
// matches no catalog name still yields gender-matched voices in catalog
// order instead of leaving speakers unassigned.
func groupByPreference(prefs []string, catalog []Voice) [][]Voice {
	if len(prefs) == 0 {
		return [][]Voice{catalog}
	}
	groups := make([][]Voice, 0, len(prefs)+1)
	for _, fragment := range prefs {
		var group []Voice
		for _, v := range catalog {
			if strings.Contains(v.Name, fragment) {
				group = append(group, v)
			}
		}
		groups = append(groups, group)
	}
	return append(groups, catalog)
}

// Speakers extracts the distinct speakers from records in first appearance
// order. A later record with the same speaker id but a different gender
// does not alter the gender recorded at first appearance.
func Speakers(records []record.Utterance) []Speaker {
	seen := make(map[string]bool)
	var out []Speaker
	for _, u := range records {
		if u.SpeakerID == "" || seen[u.SpeakerID] {
			continue
		}
		seen[u.SpeakerID] = true
		out = append(out, Speaker{ID: u.SpeakerID, Gender: u.Gender})
	}
	return out
}

// Table is the per-run mutable assignment state: which voice each speaker
// is bound to and which voices are taken per gender. It exists so that
// review edits can be resolved without disturbing existing bindings.
type Table struct {
	byID    map[string]Assignment
	claimed map[string]bool
	catalog []Voice
	prefs   []string
}

// NewTable builds a table from an initial matching result over the given
// catalog and preference list.
func NewTable(initial map[string]Assignment, prefs []string, catalog []Voice) *Table {
	t := &Table{
		byID:    make(map[string]Assignment, len(initial)),
		claimed: make(map[string]bool),
		catalog: catalog,
		prefs:   prefs,
	}
	for id, a := range initial {
		t.byID[id] = a
		if a.State == Assigned {
			t.claimed[a.Voice] = true
		}
	}
	return t
}

// Bind records an assignment for a speaker and claims its voice. An
// existing binding for the same speaker is released first.
func (t *Table) Bind(speakerID string, a Assignment) {
	if prev, ok := t.byID[speakerID]; ok && prev.State == Assigned {
		delete(t.claimed, prev.Voice)
	}
	t.byID[speakerID] = a
	if a.State == Assigned {
		t.claimed[a.Voice] = true
	}
}

// Lookup returns the current binding for a speaker id.
func (t *Table) Lookup(speakerID string) (Assignment, bool) {
	a, ok := t.byID[speakerID]
	return a, ok
}

// Resolve determines the correct (voice, gender) pair for an edited record
// without re-running the full matching pass.
//
// Precedence: a directly assigned voice on the record wins and is recorded
// as this speaker's binding; otherwise a known speaker id reuses its
// existing binding; otherwise the speaker is new and is drafted from the
// remaining unclaimed pool using the run's preference order.
func (t *Table) Resolve(speakerID string, gender record.Gender, directVoice string) (Assignment, error) {
	if speakerID == "" {
		return Assignment{}, fmt.Errorf("voice: record has no speaker id")
	}
	if directVoice != "" {
		a := Assignment{Voice: directVoice, Gender: gender, State: Assigned}
		if prev, ok := t.byID[speakerID]; ok && prev.State == Assigned && prev.Voice != directVoice {
			delete(t.claimed, prev.Voice)
		}
		t.byID[speakerID] = a
		t.claimed[directVoice] = true
		return a, nil
	}
	if a, ok := t.byID[speakerID]; ok {
		if a.State == Assigned && a.Gender != gender {
			// Gender no longer matches the bound voice; draft a new one.
			delete(t.claimed, a.Voice)
			delete(t.byID, speakerID)
		} else {
			return a, nil
		}
	}
	return t.draft(speakerID, gender)
}

// draft assigns a brand-new speaker from the unclaimed remainder of the
// catalog, honouring the run's preference order.
func (t *Table) draft(speakerID string, gender record.Gender) (Assignment, error) {
	for _, group := range groupByPreference(t.prefs, t.catalog) {
		for _, v := range group {
			if v.Gender != gender || t.claimed[v.Name] {
				continue
			}
			a := Assignment{Voice: v.Name, Gender: gender, State: Assigned}
			t.byID[speakerID] = a
			t.claimed[v.Name] = true
			return a, nil
		}
	}
	return Assignment{}, fmt.Errorf("voice: no unclaimed %s voice left for new speaker %q", gender, speakerID)
}
