package component

// FilterParams tunes the component-filtering pass of spec.md §4.6 step 5.
type FilterParams struct {
	MinPixelCount int
	MaxPixelCount int
	// Solidity thresholds are pixel-count / bounding-box-area ratios,
	// expressed in Q23.8 fixed point per spec.md §4.6.
	MinSolidity Q23_8
	MaxSolidity Q23_8
	RequireHollow bool
}

// Filter applies, in order, the too-small/too-large, too-solid/too-sparse
// and must-be-hollow tests, dropping every component that fails any one
// of them, and compresses the surviving ids.
func Filter(segments []Segment, params FilterParams) []Segment {
	ids := distinctIDs(segments)
	keep := make(map[int]bool, len(ids))

	for _, id := range ids {
		count := PixelCount(segments, id)
		if count < params.MinPixelCount || (params.MaxPixelCount > 0 && count > params.MaxPixelCount) {
			continue
		}

		minX, minY, maxX, maxY, found := BoundingBox(segments, id)
		if !found {
			continue
		}
		area := (maxX - minX + 1) * (maxY - minY + 1)
		if area <= 0 {
			continue
		}
		solidity := NewQ23_8(float64(count) / float64(area))
		if solidity < params.MinSolidity || (params.MaxSolidity > 0 && solidity > params.MaxSolidity) {
			continue
		}

		if params.RequireHollow && !IsHollow(segments, id) {
			continue
		}

		keep[id] = true
	}

	var out []Segment
	for _, s := range segments {
		if keep[s.ID] {
			out = append(out, s)
		}
	}
	return CompressIDs(out)
}

func distinctIDs(segments []Segment) []int {
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
