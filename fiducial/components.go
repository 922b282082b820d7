package fiducial

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/component"
)

// extractComponents runs spec.md §4.6 steps 3-5 over a binarized image:
// row-wise run extraction (package component's ExtractRuns), 2-D
// assembly via union-find (Assemble), and size/solidity/hollow filtering
// (Filter).
func extractComponents(binary gocv.Mat, params Params) []component.Segment {
	isForeground := func(v uint8) bool { return v != 0 }
	runs := component.ExtractRuns(binary, isForeground, params.MaxSkipDistance, params.MinComponentWidth)
	assembled := component.Assemble(runs)
	return component.Filter(assembled, params.Filter)
}

// distinctComponentIDs returns the sorted set of component ids present in
// segments.
func distinctComponentIDs(segments []component.Segment) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, s := range segments {
		if !seen[s.ID] {
			seen[s.ID] = true
			ids = append(ids, s.ID)
		}
	}
	return ids
}
