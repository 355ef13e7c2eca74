package record

// Merge collapses adjacent records whose gap is below threshold into one.
//
// The scan is a single forward pass: a record is merged into the previous
// kept record when its start is strictly less than threshold seconds after
// that record's end (a gap exactly equal to the threshold does not merge).
// Merging is transitive — a chain of close segments collapses into a single
// record spanning the whole chain, because each absorbed segment extends the
// kept record's end before the next gap is measured. Once the scan has moved
// past a record, nothing can be merged into it retroactively.
//
// Auxiliary fields present at merge time are combined, not overwritten:
// text and translated text are concatenated in order with a single space,
// and clip references are appended to the kept record's Chunks list.
//
// Merge runs once, before the pipeline. The input is not modified; the
// result is always a fresh slice. Merging an already-merged sequence with
// the same threshold yields the same sequence.
func Merge(records []Utterance, threshold float64) []Utterance {
	merged := make([]Utterance, 0, len(records))
	i := 0
	for i < len(records) {
		current := records[i].Clone()
		next := i + 1
		for next < len(records) && records[next].Start-current.End < threshold {
			absorbed := records[next]
			current.End = absorbed.End
			current.Text = joinNonEmpty(current.Text, absorbed.Text)
			current.TranslatedText = joinNonEmpty(current.TranslatedText, absorbed.TranslatedText)
			if absorbed.Path != "" {
				current.Chunks = append(current.Chunks, absorbed.Path)
			}
			current.Chunks = append(current.Chunks, absorbed.Chunks...)
			next++
		}
		merged = append(merged, current)
		i = next
	}
	return merged
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
