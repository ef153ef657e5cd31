package diferenco

import "context"

// Algorithm selects which sequence-diff implementation backs a merge or
// unified diff.
type Algorithm int

const (
	// Unspecified lets the caller fall back to a default algorithm.
	Unspecified Algorithm = iota
	// Histogram is the default: fast, and in the common case produces
	// the lowest-noise hunks of the four.
	Histogram
	// Myers is the classic minimal-edit-script algorithm.
	Myers
	// ONP is Wu et al.'s O(NP) sequence comparison algorithm.
	ONP
	// Patience favors unique matching lines, which tends to produce
	// more readable hunks for source files with repeated boilerplate.
	Patience
)

// diffInternal dispatches to the requested sequence-diff algorithm,
// normalizing every result to the []Change shape the merge and unified-diff
// code builds on.
func diffInternal[E comparable](ctx context.Context, o, a []E, algo Algorithm) ([]Change, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	switch algo {
	case Myers:
		return MyersDiff(o, a), nil
	case ONP:
		return OnpDiff(o, a), nil
	case Patience:
		return dfioToChanges(PatienceDiff(o, a)), nil
	default:
		return HistogramDiff(o, a), nil
	}
}

// dfioToChanges converts PatienceDiff's run-length Equal/Insert/Delete
// sequence into positional Change records.
func dfioToChanges[E comparable](ops []Dfio[E]) []Change {
	var changes []Change
	p1, p2 := 0, 0
	for _, op := range ops {
		switch op.T {
		case Equal:
			n := len(op.E)
			p1 += n
			p2 += n
		case Delete:
			changes = append(changes, Change{P1: p1, P2: p2, Del: len(op.E)})
			p1 += len(op.E)
		case Insert:
			changes = append(changes, Change{P1: p1, P2: p2, Ins: len(op.E)})
			p2 += len(op.E)
		}
	}
	return changes
}
