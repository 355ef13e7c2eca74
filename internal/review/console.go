package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/eqadir/ariel/internal/record"
)

// Compile-time interface assertion.
var _ Gateway = (*Console)(nil)

// Console is a Gateway for interactive terminal sessions. It saves the
// records to a scratch JSON file, asks the operator to edit that file with
// whatever editor they like, and reloads it once they confirm. Invalid edits
// (malformed JSON, overlapping spans, a changed record count) are reported
// and the operator is asked to fix the file and confirm again.
type Console struct {
	// In is the operator's input stream, usually os.Stdin.
	In io.Reader
	// Out is where prompts are written, usually os.Stdout.
	Out io.Writer
	// Path is the scratch file presented for editing.
	Path string
}

// NewConsole creates a Console gateway editing the file at path.
func NewConsole(in io.Reader, out io.Writer, path string) *Console {
	return &Console{In: in, Out: out, Path: path}
}

// Review implements Gateway.
func (c *Console) Review(ctx context.Context, records []record.Utterance) ([]record.Utterance, error) {
	if err := record.Save(records, c.Path); err != nil {
		return nil, fmt.Errorf("review: save records for editing: %w", err)
	}

	fmt.Fprintf(c.Out, "Review the utterance metadata in %s.\n", c.Path)
	fmt.Fprintln(c.Out, "Edit timings, transcripts, translations, speakers, or voices as needed.")
	fmt.Fprintln(c.Out, "To drop an utterance from the dub, set its \"for_dubbing\" field to false.")

	scanner := bufio.NewScanner(c.In)
	for {
		fmt.Fprint(c.Out, "Press ENTER when done (or type \"skip\" to continue unchanged): ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("review: read operator input: %w", err)
			}
			// Input closed: treat like skip so unattended pipes terminate.
			return record.CloneAll(records), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "skip") {
			return record.CloneAll(records), nil
		}

		edited, err := record.LoadFile(c.Path)
		if err != nil {
			fmt.Fprintf(c.Out, "Cannot use the edited file: %v\nFix it and confirm again.\n", err)
			continue
		}
		if len(edited) != len(records) {
			fmt.Fprintf(c.Out, "The file must keep all %d records (got %d); set \"for_dubbing\" to false instead of deleting.\nFix it and confirm again.\n",
				len(records), len(edited))
			continue
		}
		return edited, nil
	}
}
