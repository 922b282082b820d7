// Package lkpyramid implements the dense pyramid tracker: classic
// inverse-compositional Lucas-Kanade over a Gaussian image pyramid, with
// translation/affine ("fast") and full 8-DoF projective update modes.
// Grounded on the original_source lucasKanade_Affine.cpp/
// lucasKanade_General.cpp/lucasKanade_Fast.cpp family and spec.md §4.4,
// using gocv for the pyramid/gradient primitives the way camera_motion.go
// builds its optical-flow pipeline on gocv.
package lkpyramid

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

// samplePoint is one template point tracked through the pyramid: its
// zero-centered template coordinate, grayvalue and spatial gradients.
// The inverse-compositional formulation means these never change across
// iterations — only the warp does.
type samplePoint struct {
	xc, yc   float64
	gray     float64
	gx, gy   float64
}

// Level holds one pyramid level's template samples and the scale factor
// (2^level) that converts its coordinates to base-image resolution.
type Level struct {
	scale   float64
	samples []samplePoint
	rows    int
	cols    int
}

// Params tunes tracking.
type Params struct {
	NumLevels             int
	MaxIterationsPerLevel int
	ConvergenceTolerance  float64
	SampleStride          int // subsample the template mesh every N pixels; 1 = dense
}

const numPreviousQuadsToCompare = 2

// Tracker is a dense pyramid Lucas-Kanade tracker.
type Tracker struct {
	arenaRef      *arena.Arena
	levels        []Level
	transformation *transform.PlanarTransformation
	params        Params
	savedCorners  []geom.Quadrilateral // most-recent-last, capped at numPreviousQuadsToCompare
	isValid       bool
}

// New builds the template pyramid from templateImage sampled under an
// identity transformation centered on templateQuad, one level per
// params.NumLevels, and returns a Tracker ready for Update.
func New(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral, transformType transform.TransformType, params Params) (*Tracker, error) {
	if a == nil {
		return nil, status.New(status.FailInvalidParameters, "New: nil arena")
	}
	if params.NumLevels < 1 {
		params.NumLevels = 1
	}
	if params.SampleStride < 1 {
		params.SampleStride = 1
	}

	transformation, err := transform.New(a, transformType, templateQuad)
	if err != nil {
		return nil, err
	}

	levels, err := buildPyramid(templateImage, templateQuad, transformation, params)
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

// buildPyramid downsamples templateImage by repeated gocv.PyrDown, and at
// each level computes Sobel gradients and selects a sparse mesh of sample
// points inside the (correspondingly scaled) template quad.
func buildPyramid(templateImage gocv.Mat, templateQuad geom.Quadrilateral, transformation *transform.PlanarTransformation, params Params) ([]Level, error) {
	levels := make([]Level, params.NumLevels)

	current := templateImage.Clone()
	defer current.Close()

	for l := 0; l < params.NumLevels; l++ {
		scale := float64(int(1) << uint(l))

		var working gocv.Mat
		if l == 0 {
			working = current.Clone()
		} else {
			working = gocv.NewMat()
			gocv.PyrDown(current, &working, gocv.NewPoint(0, 0), gocv.BorderDefault)
			current.Close()
			current = working.Clone()
		}

		gradX := gocv.NewMat()
		gradY := gocv.NewMat()
		gocv.Sobel(working, &gradX, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
		gocv.Sobel(working, &gradY, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

		center := transformation.CenterOffset(1)
		minC, maxC := templateQuad.BoundingBox()
		rows, cols := working.Rows(), working.Cols()

		var samples []samplePoint
		for y := int(minC.Y / scale); y <= int(maxC.Y/scale); y += params.SampleStride {
			if y < 0 || y >= rows {
				continue
			}
			for x := int(minC.X / scale); x <= int(maxC.X/scale); x += params.SampleStride {
				if x < 0 || x >= cols {
					continue
				}
				samples = append(samples, samplePoint{
					xc:   float64(x)*scale - center.X,
					yc:   float64(y)*scale - center.Y,
					gray: float64(working.GetUCharAt(y, x)),
					gx:   float64(gradX.GetFloatAt(y, x)),
					gy:   float64(gradY.GetFloatAt(y, x)),
				})
			}
		}
		gradX.Close()
		gradY.Close()

		levels[params.NumLevels-1-l] = Level{scale: scale, samples: samples, rows: rows, cols: cols}
		if l != 0 {
			working.Close()
		}
	}
	return levels, nil
}

// IsValid reports whether the tracker constructed successfully and has
// not since lost track.
func (t *Tracker) IsValid() bool { return t != nil && t.isValid }

// Transformation returns a value-copy snapshot of the current transform.
func (t *Tracker) Transformation() transform.PlanarTransformation { return *t.transformation }
