package dub

import (
	"errors"
	"fmt"
)

// The pipeline distinguishes three failure classes. Configuration problems
// fail fast before any stage runs. Collaborator failures come from the
// external model backends and carry the collaborator name. Consistency
// failures mean the pipeline's positional alignment would be corrupted and
// are never auto-corrected.

// ErrBadConfig marks configuration problems detected before the first stage.
var ErrBadConfig = errors.New("dub: invalid configuration")

// CollaboratorError wraps a failure from an external collaborator backend.
type CollaboratorError struct {
	// Name identifies the collaborator: "diarizer", "transcriber",
	// "translator", "synthesizer", "voice_catalog", or "media".
	Name string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("dub: collaborator %s: %v", e.Name, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// collabErr wraps err as a CollaboratorError unless it is nil.
func collabErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Name: name, Err: err}
}

// ConsistencyError wraps a violation of the record store's alignment
// invariants, such as a translated-segment count mismatch. These are always
// fatal for the run.
type ConsistencyError struct {
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("dub: consistency: %v", e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
