package diferenco

// MergeRegion is the exported view of a mergeRegion: a contiguous range in
// the common ancestor where one or both sides of a three-way diff recorded
// a change.
type MergeRegion struct {
	Start, End                  int
	IsConflict                  bool
	SourceChanges, TargetChanges []Change
}

// FindMergeRegions groups two independently-computed edit scripts (source
// vs base, target vs base) into merge regions, flagging a region as a
// conflict when both sides touched overlapping ranges of the base.
func FindMergeRegions(sourceChanges, targetChanges []Change, sink *Sink, sourceIdx, targetIdx []int) []MergeRegion {
	internal := findMergeRegions(sourceChanges, targetChanges, sink, sourceIdx, targetIdx)
	out := make([]MergeRegion, len(internal))
	for i, r := range internal {
		out[i] = MergeRegion{
			Start:         r.start,
			End:           r.end,
			IsConflict:    r.isConflict,
			SourceChanges: r.changesA,
			TargetChanges: r.changesB,
		}
	}
	return out
}

// CalculateRange maps a merge region's span in the ancestor back onto the
// corresponding span in one side's line index.
func CalculateRange(changes []Change, idx []int, regionStart, regionEnd int) (lhs, rhs int) {
	return calculateRange(changes, idx, regionStart, regionEnd)
}
