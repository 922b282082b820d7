package sampledtracker

import "gocv.io/x/gocv"

// VerifyParams tunes Verify's photometric agreement check.
type VerifyParams struct {
	// MaxPixelDifference is the per-pixel |Δ| threshold a sample must
	// fall under to count toward numSimilarPixels.
	MaxPixelDifference float64
}

// Verify samples the finest level's preselected points under the current
// transformation against image and reports meanAbsoluteDifference (the
// mean |Δ| over every in-bounds sample) and numSimilarPixels (the count
// within params.MaxPixelDifference) as independent counters, matching
// lkpyramid's photometric check. numSamples is the denominator.
func (t *Tracker) Verify(image gocv.Mat, params VerifyParams) (meanAbsoluteDifference float64, numSimilarPixels int, numSamples int, err error) {
	if len(t.levels) == 0 {
		return 0, 0, 0, nil
	}
	level := t.levels[0]
	if len(level.samples) == 0 {
		return 0, 0, 0, nil
	}

	threshold := params.MaxPixelDifference
	if threshold <= 0 {
		threshold = 40
	}

	center := t.transformation.CenterOffset(level.scale)
	xIn := make([]float64, 1)
	yIn := make([]float64, 1)
	xOut := make([]float64, 1)
	yOut := make([]float64, 1)

	var sumAbsDiff float64
	for _, s := range level.samples {
		xIn[0] = s.X/level.scale + center.X
		yIn[0] = s.Y/level.scale + center.Y
		if err := t.transformation.TransformPoints(xIn, yIn, level.scale, false, false, xOut, yOut); err != nil {
			continue
		}
		gray, ok := bilinearSample(image, xOut[0], yOut[0])
		if !ok {
			continue
		}
		d := abs(gray - s.Gray)
		sumAbsDiff += d
		numSamples++
		if d <= threshold {
			numSimilarPixels++
		}
	}
	if numSamples == 0 {
		return 0, 0, 0, nil
	}
	return sumAbsDiff / float64(numSamples), numSimilarPixels, numSamples, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
