// Package fiducial implements the 11-step pipeline that turns a raw
// grayscale frame into a list of (quadrilateral, markerType, homography)
// fiducial-marker detections: pyramid downsampling, adaptive
// binarization, row-wise run extraction, 2-D component assembly and
// filtering (package component), boundary tracing and corner extraction,
// quad validation and refinement, marker decoding (package dtree), and
// homography computation (package transform). Grounded on spec.md §4.6;
// no fiducialDetection.cpp/.h was retrieved, so each step is built from
// the spec's step-by-step description plus the teacher's gocv/gonum
// idiom for the sub-operations that have a direct analog elsewhere in
// this module.
package fiducial

import (
	"github.com/anki-vision/planartrack/component"
	"github.com/anki-vision/planartrack/dtree"
	"github.com/anki-vision/planartrack/geom"
)

// CornerMode selects step 7's corner-extraction strategy.
type CornerMode int

const (
	LaplacianPeaks CornerMode = iota
	LineFits
)

// Params bundles every tunable the pipeline's steps name.
type Params struct {
	NumPyramidLevels int

	AdaptiveThresholdBlockSize int
	ScaleImageThresholdMultiplier float64

	MaxSkipDistance   int
	MinComponentWidth int

	Filter component.FilterParams

	CornerMode            CornerMode
	MinLaplacianPeakRatio float64

	MinQuadArea             float64
	QuadSymmetryThreshold   float64
	MinDistanceFromImageEdge float64

	QuadRefinementIterations        int
	NumRefinementSamples            int
	QuadRefinementMinCornerChange   float64
	QuadRefinementMaxCornerChange   float64

	DecodeMinContrastRatio float64
	DecodeGrayThreshold    uint8
}

// Detection is one decoded fiducial marker: its quad in image
// coordinates, decoded marker identity, and the homography mapping the
// canonical unit square onto the quad.
type Detection struct {
	Quad        geom.Quadrilateral
	MarkerType  int
	Homography  []float64
	PyramidLevel int
}

// Decoder couples the detection pipeline to the decision tree used for
// step 10's marker identity decode.
type Decoder struct {
	Tree *dtree.Tree
}
