// Package sampledtracker implements the sampled variant of the template
// tracker: instead of iterating the full pyramid meshgrid every frame
// (package lkpyramid), it preselects the highest-gradient-magnitude
// template points once at Init time and reuses only those during tracking.
// Grounded on lucasKanade_SampledProjective.cpp/
// lucasKanade_SampledPlanar6dof.cpp and spec.md §4.5.
package sampledtracker

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

// TemplateSample is one preselected high-gradient template point: its
// zero-centered template coordinate, grayvalue and spatial gradients —
// the exact fields spec.md §4 names for TemplateSample.
type TemplateSample struct {
	X, Y   float64
	Gray   float64
	GradX  float64
	GradY  float64
}

// sampleLevel holds one pyramid level's preselected samples.
type sampleLevel struct {
	scale   float64
	samples []TemplateSample
}

// Params tunes tracking and sample selection.
type Params struct {
	NumLevels             int
	BaseSampleCount       int // sample count at the finest level; halves per coarser level
	SelectionBins         int // ApproximateSelect's threshold-sweep resolution
	MaxIterationsPerLevel int
	ConvergenceTolerance  float64
}

const numPreviousQuadsToCompare = 2

// Tracker is a sampled Lucas-Kanade tracker. pose is nil for the ordinary
// homography-space variant built by New, and set for the planar-6dof
// variant built by NewPlanar6DoF, which drives the same levels/
// transformation fields through a 6-parameter pose-space refine instead
// of Update's usual inverse-compositional homography delta.
type Tracker struct {
	arenaRef       *arena.Arena
	levels         []sampleLevel
	transformation *transform.PlanarTransformation
	params         Params
	savedCorners   []geom.Quadrilateral
	isValid        bool
	pose           *pose6DoF
}

// New builds the template pyramid and, at each level, preselects the
// BaseSampleCount>>level points of highest squared-gradient magnitude via
// ApproximateSelect.
func New(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral, transformType transform.TransformType, params Params) (*Tracker, error) {
	if a == nil {
		return nil, status.New(status.FailInvalidParameters, "New: nil arena")
	}
	if params.NumLevels < 1 {
		params.NumLevels = 1
	}
	if params.BaseSampleCount < 1 {
		params.BaseSampleCount = 200
	}
	if params.SelectionBins < 1 {
		params.SelectionBins = 64
	}

	transformation, err := transform.New(a, transformType, templateQuad)
	if err != nil {
		return nil, err
	}

	levels, err := buildSampleLevels(templateImage, templateQuad, transformation, params)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		arenaRef:       a,
		levels:         levels,
		transformation: transformation,
		params:         params,
		isValid:        true,
	}, nil
}

// IsValid reports whether the tracker constructed successfully and has
// not since lost track.
func (t *Tracker) IsValid() bool { return t != nil && t.isValid }

// Transformation returns a value-copy snapshot of the current transform.
func (t *Tracker) Transformation() transform.PlanarTransformation { return *t.transformation }

// NumSamples returns the number of preselected samples at the finest
// level, the tracker's working set size for verification.
func (t *Tracker) NumSamples() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0].samples)
}
