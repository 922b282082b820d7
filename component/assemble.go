package component

import "gocv.io/x/gocv"

// ExtractRuns scans img row by row, merging runs of the foreground
// predicate with up to maxSkipDistance tolerance (a short gap of
// background pixels does not break a run), and emits one unlinked segment
// (ID = -1) per surviving run of width >= minWidth.
func ExtractRuns(img gocv.Mat, isForeground func(v uint8) bool, maxSkipDistance, minWidth int) []Segment {
	var segments []Segment
	width, height := img.Cols(), img.Rows()

	for y := 0; y < height; y++ {
		runStart := -1
		lastFg := -1
		for x := 0; x < width; x++ {
			fg := isForeground(img.GetUCharAt(y, x))
			if fg {
				if runStart == -1 {
					runStart = x
				}
				lastFg = x
			} else if runStart != -1 && x-lastFg > maxSkipDistance {
				if lastFg-runStart+1 >= minWidth {
					segments = append(segments, Segment{XStart: runStart, XEnd: lastFg, Y: y, ID: -1})
				}
				runStart = -1
			}
		}
		if runStart != -1 && lastFg-runStart+1 >= minWidth {
			segments = append(segments, Segment{XStart: runStart, XEnd: lastFg, Y: y, ID: -1})
		}
	}
	return segments
}

// unionFind is the standard path-compressed, union-by-rank disjoint-set
// structure used to link row runs into 2-D components.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

// Assemble links row runs that overlap in x on adjacent rows into
// components via union-find, then rewrites each segment's ID to the
// compressed (0-based, contiguous) id of the component it landed in.
// segments must be sorted by Y ascending (ExtractRuns produces that
// order).
func Assemble(segments []Segment) []Segment {
	uf := newUnionFind(len(segments))

	rowStart := 0
	for i := 1; i <= len(segments); i++ {
		if i == len(segments) || segments[i].Y != segments[rowStart].Y {
			if rowStart > 0 && segments[rowStart-1].Y == segments[rowStart].Y-1 {
				// Link against the previous row's runs (segments are
				// append-ordered by row, so the previous row's runs sit
				// immediately before rowStart). A group separated by an
				// empty row is not adjacent and is not linked.
				prevEnd := rowStart
				prevStart := prevEnd
				for prevStart > 0 && segments[prevStart-1].Y == segments[rowStart-1].Y {
					prevStart--
				}
				for j := rowStart; j < i; j++ {
					for k := prevStart; k < prevEnd; k++ {
						if segments[j].Overlaps(segments[k]) {
							uf.union(j, k)
						}
					}
				}
			}
			rowStart = i
		}
	}

	return CompressIDs(relabel(segments, uf))
}

func relabel(segments []Segment, uf *unionFind) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		s.ID = uf.find(i)
		out[i] = s
	}
	return out
}

// CompressIDs renumbers the ids present in segments to a contiguous
// 0..n-1 range, preserving relative order of first appearance.
func CompressIDs(segments []Segment) []Segment {
	remap := make(map[int]int)
	next := 0
	out := make([]Segment, len(segments))
	for i, s := range segments {
		id, ok := remap[s.ID]
		if !ok {
			id = next
			remap[s.ID] = id
			next++
		}
		s.ID = id
		out[i] = s
	}
	return out
}
