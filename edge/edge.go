// Package edge extracts signed horizontal/vertical edge-crossing points
// from a grayscale image — the sparse representation the edge-based
// tracker (package edgetracker) matches frame to frame instead of raw
// pixels. Grounded on coretech/vision/include/anki/vision/robot/
// binaryTracker.h's edge-detection helpers and the EdgeLists/IndexLimits
// data model of spec.md §3.
package edge

import "gocv.io/x/gocv"

// Point16 is a 16-bit-integer image coordinate, matching the point
// precision the original edge lists are stored at.
type Point16 struct {
	X, Y int16
}

// Mode selects how edges are detected from the source image.
type Mode int

const (
	// Grayvalue binarizes against a single threshold and emits a
	// dark<->light transition wherever the preceding run is long enough.
	Grayvalue Mode = iota
	// Derivative computes a first difference with a comb half-width and
	// emits local extrema above a response threshold.
	Derivative
)

// Params tunes both extraction modes.
type Params struct {
	Mode                 Mode
	Threshold            uint8   // grayvalue mode
	CombHalfWidth         int     // derivative mode
	CombResponseThreshold float64 // derivative mode
	MinComponentWidth    int     // grayvalue mode: minimum run length before a transition counts
	EveryNLines          int     // row/column stride; 1 = every line
	MaxDetectionsPerType int     // cap per category; 0 = unbounded
}

func (p Params) stride() int {
	if p.EveryNLines < 1 {
		return 1
	}
	return p.EveryNLines
}

func (p Params) cap() int {
	if p.MaxDetectionsPerType <= 0 {
		return int(^uint(0) >> 1)
	}
	return p.MaxDetectionsPerType
}

// EdgeLists holds the four sorted edge-point sequences extracted from one
// image: xDecreasing/xIncreasing sorted ascending in y then x, and
// yDecreasing/yIncreasing sorted ascending in x then y.
type EdgeLists struct {
	XDecreasing []Point16
	XIncreasing []Point16
	YDecreasing []Point16
	YIncreasing []Point16

	ImageWidth  int
	ImageHeight int
}

func newEdgeLists(img gocv.Mat) *EdgeLists {
	return &EdgeLists{
		ImageWidth:  img.Cols(),
		ImageHeight: img.Rows(),
	}
}

// appendIfRoom appends p to list unless list already holds cap points, in
// which case p is dropped and list is returned unchanged.
func appendIfRoom(list []Point16, p Point16, cap int) []Point16 {
	if len(list) >= cap {
		return list
	}
	return append(list, p)
}
