package transcript

import "errors"

// ErrDrained is returned by Drain once the sequence has been handed off.
var ErrDrained = errors.New("transcript already drained")

// Finality marks whether a transcript message is settled.
type Finality string

const (
	FinalityFinal   Finality = "final"
	FinalityInterim Finality = "interim"
)

// Accumulator is the append-only utterance log for one call attempt.
// It is owned by a single session goroutine and is not safe for concurrent use.
type Accumulator struct {
	entries []Entry
	drained bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append records entry when finality is final. Interim, blank, and
// post-drain entries are discarded; the return value reports whether entry
// was kept.
func (a *Accumulator) Append(entry Entry, finality Finality) bool {
	if a.drained || finality != FinalityFinal {
		return false
	}
	entry.Text = cleanText(entry.Text)
	if entry.Text == "" {
		return false
	}
	a.entries = append(a.entries, entry)
	return true
}

// Latest returns the text of the most recent entry, or "".
func (a *Accumulator) Latest() string {
	if len(a.entries) == 0 {
		return ""
	}
	return a.entries[len(a.entries)-1].Text
}

// Len reports the number of kept entries.
func (a *Accumulator) Len() int {
	return len(a.entries)
}

// Entries returns a copy of the kept entries without draining.
func (a *Accumulator) Entries() []Entry {
	return append([]Entry(nil), a.entries...)
}

// Drain hands off the full ordered sequence and exhausts the accumulator.
func (a *Accumulator) Drain() ([]Entry, error) {
	if a.drained {
		return nil, ErrDrained
	}
	a.drained = true
	out := a.entries
	a.entries = nil
	if out == nil {
		out = []Entry{}
	}
	return out, nil
}

// Drained reports whether Drain has been called.
func (a *Accumulator) Drained() bool {
	return a.drained
}
