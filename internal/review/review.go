// Package review implements the human review loop of the dubbing pipeline.
//
// After every enrichment pass the utterance records are handed to a Gateway,
// which returns a possibly edited copy. The pipeline diffs the two versions,
// recomputes only what the edits invalidated, and presents again. The loop
// terminates when a review pass comes back without edits.
package review

import (
	"context"

	"github.com/eqadir/ariel/internal/record"
)

// Gateway presents utterance records for review and returns the edited set.
//
// Implementations must return records index-aligned with the input: the same
// number of records in the same order. Removing an utterance from the dub is
// expressed by clearing its for_dubbing flag, not by deleting the record.
type Gateway interface {
	Review(ctx context.Context, records []record.Utterance) ([]record.Utterance, error)
}

// Auto is a Gateway that approves every pass unchanged. It is used for
// unattended runs and as the terminal gateway in tests.
type Auto struct{}

// Review implements Gateway.
func (Auto) Review(_ context.Context, records []record.Utterance) ([]record.Utterance, error) {
	return record.CloneAll(records), nil
}
