package lkpyramid

import (
	"log"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

// UpdateParams has no fields and is not used by Update: the degrees of
// freedom each level solves for come from Update's updateType argument,
// after a translation-only warm-up step (lucasKanade_Fast.cpp's
// translation-then-affine graduation).
type UpdateParams struct{}

// jacobianRow returns the inverse-compositional Jacobian of the warped
// image coordinate with respect to the transformation's free parameters,
// evaluated at template point (xc, yc) with template gradient (gx, gy).
// The homography form (8 params) is the general case; affine drops the
// last two columns, translation keeps only the constant columns. This is
// the standard Baker-Matthews inverse-compositional Jacobian, grounded on
// lucasKanade_General.cpp's accumulation loop.
func jacobianRow(paramCount int, xc, yc, gx, gy float64) []float64 {
	switch paramCount {
	case 2:
		return []float64{gx, gy}
	case 6:
		return []float64{xc * gx, yc * gx, gx, xc * gy, yc * gy, gy}
	case 8:
		return []float64{
			xc * gx, yc * gx, gx,
			xc * gy, yc * gy, gy,
			-xc * (xc*gx + yc*gy), -yc * (xc*gx + yc*gy),
		}
	default:
		return nil
	}
}

// iterativelyRefineTrack runs one Gauss-Newton step at the given level
// against nextImg, accumulating AtA/Atb over every template sample point
// whose warped location lands inside nextImg, then composing the solved
// delta into the transformation. It reports the correspondence count so
// the caller can detect a lost track (spec.md §4.4: abort with a warning
// below 16 points).
func (t *Tracker) iterativelyRefineTrack(level Level, nextImg gocv.Mat, updateType transform.TransformType) (numPoints int, err error) {
	paramCount := updateType.ParamCount()
	AtA := mat.NewSymDense(paramCount, nil)
	Atb := mat.NewVecDense(paramCount, nil)

	rows, cols := nextImg.Rows(), nextImg.Cols()
	center := t.transformation.CenterOffset(level.scale)

	xIn := make([]float64, 1)
	yIn := make([]float64, 1)
	xOut := make([]float64, 1)
	yOut := make([]float64, 1)

	for _, s := range level.samples {
		xIn[0] = s.xc/level.scale + center.X
		yIn[0] = s.yc/level.scale + center.Y
		if err := t.transformation.TransformPoints(xIn, yIn, level.scale, false, false, xOut, yOut); err != nil {
			continue
		}
		wx, wy := xOut[0], yOut[0]
		if wx < 0 || wy < 0 || wx >= float64(cols-1) || wy >= float64(rows-1) {
			continue
		}

		newGray, ok := bilinearSample(nextImg, wx, wy)
		if !ok {
			continue
		}
		diff := newGray - s.gray

		// s.xc/s.yc are zero-centered at base resolution; the gradients
		// were sampled at this level's resolution, so the Jacobian's
		// spatial coordinate must be too.
		row := jacobianRow(paramCount, s.xc/level.scale, s.yc/level.scale, s.gx, s.gy)
		for r := 0; r < paramCount; r++ {
			Atb.SetVec(r, Atb.AtVec(r)+row[r]*diff)
			for c := r; c < paramCount; c++ {
				AtA.SetSym(r, c, AtA.At(r, c)+row[r]*row[c])
			}
		}
		numPoints++
	}

	if numPoints < 16 {
		return numPoints, nil
	}

	var chol mat.Cholesky
	if !chol.Factorize(AtA) {
		log.Printf("lkpyramid: Cholesky breakdown in refine, leaving homography unchanged")
		return numPoints, nil
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, Atb); err != nil {
		log.Printf("lkpyramid: Cholesky solve failed, leaving homography unchanged")
		return numPoints, nil
	}
	delta := make([]float64, paramCount)
	for i := range delta {
		delta[i] = x.AtVec(i)
	}
	return numPoints, t.transformation.Update(delta, level.scale, updateType)
}

// bilinearSample reads img at floating-point coordinate (x, y) via
// bilinear interpolation over the four neighboring pixels.
func bilinearSample(img gocv.Mat, x, y float64) (float64, bool) {
	x0, y0 := int(x), int(y)
	if x0 < 0 || y0 < 0 || x0+1 >= img.Cols() || y0+1 >= img.Rows() {
		return 0, false
	}
	fx, fy := x-float64(x0), y-float64(y0)
	p00 := float64(img.GetUCharAt(y0, x0))
	p10 := float64(img.GetUCharAt(y0, x0+1))
	p01 := float64(img.GetUCharAt(y0+1, x0))
	p11 := float64(img.GetUCharAt(y0+1, x0+1))
	top := p00*(1-fx) + p10*fx
	bot := p01*(1-fx) + p11*fx
	return top*(1-fy) + bot*fy, true
}

// cornerDisplacement is the mean corner-to-corner distance between two
// quads, the convergence metric spec.md §4.4 describes against
// NUM_PREVIOUS_QUADS_TO_COMPARE saved quads.
func cornerDisplacement(a, b geom.Quadrilateral) float64 {
	sum := 0.0
	for i := range a.Corners {
		sum += a.Corners[i].Dist(b.Corners[i])
	}
	return sum / float64(len(a.Corners))
}

// Update tracks the template into nextImage, refining coarse-to-fine
// across the pyramid built at New time, iterating each level up to
// MaxIterationsPerLevel times or until the tracked quad stops moving
// (compared against the last numPreviousQuadsToCompare saved quads).
func (t *Tracker) Update(nextImage gocv.Mat, updateType transform.TransformType) error {
	if !t.isValid {
		return status.New(status.FailInvalidObject, "Update: invalid tracker")
	}

	current := nextImage.Clone()
	defer current.Close()

	pyramid := make([]gocv.Mat, len(t.levels))
	for i := range t.levels {
		if i == 0 {
			pyramid[i] = current.Clone()
			continue
		}
		down := gocv.NewMat()
		gocv.PyrDown(pyramid[i-1], &down, gocv.NewPoint(0, 0), gocv.BorderDefault)
		pyramid[i] = down
	}
	defer func() {
		for _, m := range pyramid {
			m.Close()
		}
	}()

	maxIter := t.params.MaxIterationsPerLevel
	if maxIter < 1 {
		maxIter = 10
	}
	tol := t.params.ConvergenceTolerance
	if tol <= 0 {
		tol = 0.1
	}
	t.savedCorners = t.savedCorners[:0]

	for levelIdx := len(t.levels) - 1; levelIdx >= 0; levelIdx-- {
		level := t.levels[levelIdx]
		img := pyramid[len(t.levels)-1-levelIdx]

		// Warm up with a single translation-only step before promoting to
		// the richer updateType, per spec.md §4.4: a coarse level's
		// gradient surface rarely supports a stable affine/projective
		// solve until the gross offset has been absorbed.
		if numPoints, err := t.iterativelyRefineTrack(level, img, transform.Translation); err != nil {
			return err
		} else if numPoints < 16 {
			t.isValid = false
			log.Printf("lkpyramid: track lost at level scale %g during translation warm-up, only %d correspondences", level.scale, numPoints)
			return nil
		}

		for iter := 0; iter < maxIter; iter++ {
			numPoints, err := t.iterativelyRefineTrack(level, img, updateType)
			if err != nil {
				return err
			}
			if numPoints < 16 {
				t.isValid = false
				log.Printf("lkpyramid: track lost at level scale %g, only %d correspondences", level.scale, numPoints)
				return nil
			}

			corners, err := t.transformation.TransformedCorners()
			if err != nil {
				return err
			}
			if t.hasConverged(corners, tol) {
				t.pushSavedCorners(corners)
				break
			}
			t.pushSavedCorners(corners)
		}
	}
	return nil
}

// hasConverged reports whether the minimum displacement from corners to
// any of the last numPreviousQuadsToCompare saved quads has dropped below
// tol — spec.md §4.4 step 6 declares convergence on the minimum, not the
// maximum, since a quad oscillating between two saved positions one
// iteration apart is still converged even if its displacement from an
// older saved quad remains large.
func (t *Tracker) hasConverged(corners geom.Quadrilateral, tol float64) bool {
	if len(t.savedCorners) == 0 {
		return false
	}
	minDisplacement := math.Inf(1)
	for _, prev := range t.savedCorners {
		if d := cornerDisplacement(corners, prev); d < minDisplacement {
			minDisplacement = d
		}
	}
	return minDisplacement < tol
}

func (t *Tracker) pushSavedCorners(corners geom.Quadrilateral) {
	t.savedCorners = append(t.savedCorners, corners)
	if len(t.savedCorners) > numPreviousQuadsToCompare {
		t.savedCorners = t.savedCorners[len(t.savedCorners)-numPreviousQuadsToCompare:]
	}
}
