// Package dtree implements the packed binary decision tree used to
// decode a fiducial marker's identity from grayscale pixel probes,
// grounded on decisionTree_vision.h's FiducialMarkerDecisionTree and
// spec.md §4.6 step 10 / §3's decision-tree wire format.
package dtree

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

// Node is one packed decision-tree record: a probe center and either a
// left-child index (internal node) or a label (leaf, flagged by the high
// bit of Label). Field names and sizes mirror
// decisionTree_vision.h's Node struct exactly.
type Node struct {
	ProbeXCenter   int16
	ProbeYCenter   int16
	LeftChildIndex uint16
	Label          uint16
}

const leafFlag = uint16(0x8000)

// IsLeaf reports whether the high bit of Label marks this node a leaf.
func (n Node) IsLeaf() bool { return n.Label&leafFlag != 0 }

// LeafValue returns the label with the leaf flag bit cleared.
func (n Node) LeafValue() uint16 { return n.Label &^ leafFlag }

// Tree is a fiducial-marker decision tree: a packed node array plus the
// shared probe-offset arrays every node averages before comparing against
// threshold, and the out-of-band coordinate fractional-bit count and
// maximum depth the wire format doesn't itself carry.
type Tree struct {
	Nodes              []Node
	ProbeXOffsets      []int16
	ProbeYOffsets      []int16
	FractionalBits     int
	MaxDepth           int
}

// New validates and constructs a Tree from its packed node array and
// probe-offset tables.
func New(nodes []Node, probeXOffsets, probeYOffsets []int16, fractionalBits, maxDepth int) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, status.New(status.FailInvalidParameters, "New: empty node array")
	}
	if len(probeXOffsets) == 0 || len(probeXOffsets) != len(probeYOffsets) {
		return nil, status.New(status.FailInvalidSize, "New: probeXOffsets/probeYOffsets must be equal-length and non-empty")
	}
	if maxDepth <= 0 {
		return nil, status.New(status.FailInvalidParameters, "New: maxDepth must be positive")
	}
	return &Tree{
		Nodes:          nodes,
		ProbeXOffsets:  probeXOffsets,
		ProbeYOffsets:  probeYOffsets,
		FractionalBits: fractionalBits,
		MaxDepth:       maxDepth,
	}, nil
}

// fractionalScale converts a fixed-point probe coordinate to floating
// point marker-frame units.
func (t *Tree) fractionalScale() float64 {
	scale := 1.0
	for i := 0; i < t.FractionalBits; i++ {
		scale *= 2
	}
	return scale
}

// ProbeAverage transforms each of the node's probe-offset points by
// transformation into image pixel coordinates, bilinearly samples image
// at each, and returns their mean — decisionTree_vision.h's Classify
// comment: "the sum of all probes" compared to a threshold, here
// averaged so the threshold's scale doesn't depend on probe count.
// Exported so callers decoding a full marker (package fiducial) can
// reuse the exact probe-sampling machinery Classify walks with, e.g. to
// check contrast at the root node before trusting a decode.
func (t *Tree) ProbeAverage(image gocv.Mat, transformation *transform.PlanarTransformation, node Node) (float64, error) {
	n := len(t.ProbeXOffsets)
	scale := t.fractionalScale()

	xIn := make([]float64, n)
	yIn := make([]float64, n)
	for i := range t.ProbeXOffsets {
		xIn[i] = float64(node.ProbeXCenter) + float64(t.ProbeXOffsets[i])
		yIn[i] = float64(node.ProbeYCenter) + float64(t.ProbeYOffsets[i])
		xIn[i] /= scale
		yIn[i] /= scale
	}
	xOut := make([]float64, n)
	yOut := make([]float64, n)
	if err := transformation.TransformPoints(xIn, yIn, 1, false, false, xOut, yOut); err != nil {
		return 0, err
	}

	rows, cols := image.Rows(), image.Cols()
	sum := 0.0
	sampled := 0
	for i := 0; i < n; i++ {
		v, ok := bilinearSample(image, rows, cols, xOut[i], yOut[i])
		if !ok {
			continue
		}
		sum += v
		sampled++
	}
	if sampled == 0 {
		return 0, status.New(status.Fail, "probeAverage: all probes fell outside the image")
	}
	return sum / float64(sampled), nil
}

func bilinearSample(img gocv.Mat, rows, cols int, x, y float64) (float64, bool) {
	if x < 0 || y < 0 || x > float64(cols-1) || y > float64(rows-1) {
		return 0, false
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= cols {
		x1 = cols - 1
	}
	if y1 >= rows {
		y1 = rows - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)
	v00 := float64(img.GetUCharAt(y0, x0))
	v01 := float64(img.GetUCharAt(y0, x1))
	v10 := float64(img.GetUCharAt(y1, x0))
	v11 := float64(img.GetUCharAt(y1, x1))
	top := v00*(1-fx) + v01*fx
	bottom := v10*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy, true
}

// Classify walks the tree from the root, warping each node's probe
// offsets through transformation into image coordinates, averaging the
// sampled grayvalues, and branching left (white) or right (black)
// against grayvalueThreshold until a leaf is reached. Mirrors
// decisionTree_vision.h's Classify: "if the sum of all probes is greater
// than grayvalueThreshold, then that point is considered white."
func (t *Tree) Classify(image gocv.Mat, transformation *transform.PlanarTransformation, grayvalueThreshold uint8) (label int, err error) {
	idx := 0
	for depth := 0; depth <= t.MaxDepth; depth++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, status.New(status.Fail, "Classify: node index %d out of range", idx)
		}
		node := t.Nodes[idx]
		if node.IsLeaf() {
			return int(node.LeafValue()), nil
		}

		avg, err := t.ProbeAverage(image, transformation, node)
		if err != nil {
			return 0, err
		}

		if avg > float64(grayvalueThreshold) {
			idx = int(node.LeftChildIndex)
		} else {
			idx = int(node.LeftChildIndex) + 1
		}
	}
	return 0, status.New(status.Fail, "Classify: exceeded maximum depth %d without reaching a leaf", t.MaxDepth)
}
