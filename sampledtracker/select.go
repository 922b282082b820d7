package sampledtracker

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/transform"
)

// approximateSelect sweeps a threshold from 0 to the maximum value in
// magnitudes in numBins increments, stopping at the first threshold whose
// above-threshold count is at most numToSelect, and returns the indexes
// above it. This mirrors LucasKanadeTracker_SampledPlanar6dof's
// ApproximateSelect: an O(bins * n) approximate top-K that never sorts
// the full vector, trading selection precision for the fixed-memory,
// single-pass-per-bin profile the original embedded implementation needs.
func approximateSelect(magnitudes []float64, numBins, numToSelect int) []int {
	if len(magnitudes) == 0 || numToSelect <= 0 {
		return nil
	}
	maxMag := magnitudes[0]
	for _, m := range magnitudes {
		if m > maxMag {
			maxMag = m
		}
	}
	if maxMag <= 0 {
		return nil
	}
	increment := maxMag / float64(numBins)

	foundThreshold := -1.0
	for threshold := 0.0; threshold < maxMag; threshold += increment {
		numAbove := 0
		for _, m := range magnitudes {
			if m > threshold {
				numAbove++
			}
		}
		if numAbove <= numToSelect {
			foundThreshold = threshold
			break
		}
	}
	if foundThreshold < 0 {
		return nil
	}

	indexes := make([]int, 0, numToSelect)
	for i, m := range magnitudes {
		if m > foundThreshold {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// buildSampleLevels constructs the pyramid the same way lkpyramid.New
// does (repeated gocv.PyrDown, Sobel gradients per level), then at each
// level preselects BaseSampleCount>>level points by squared gradient
// magnitude — spec.md §4.5's "per-pyramid-level count halves with level".
func buildSampleLevels(templateImage gocv.Mat, templateQuad geom.Quadrilateral, transformation *transform.PlanarTransformation, params Params) ([]sampleLevel, error) {
	levels := make([]sampleLevel, params.NumLevels)

	current := templateImage.Clone()
	defer current.Close()

	minC, maxC := templateQuad.BoundingBox()

	for l := 0; l < params.NumLevels; l++ {
		scale := float64(int(1) << uint(l))

		var working gocv.Mat
		if l == 0 {
			working = current.Clone()
		} else {
			down := gocv.NewMat()
			gocv.PyrDown(current, &down, gocv.NewPoint(0, 0), gocv.BorderDefault)
			current.Close()
			current = down.Clone()
			working = down
		}

		gradX := gocv.NewMat()
		gradY := gocv.NewMat()
		gocv.Sobel(working, &gradX, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
		gocv.Sobel(working, &gradY, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

		center := transformation.CenterOffset(1)
		rows, cols := working.Rows(), working.Cols()

		var candidates []TemplateSample
		var magnitudes []float64
		for y := int(minC.Y / scale); y <= int(maxC.Y/scale); y++ {
			if y < 0 || y >= rows {
				continue
			}
			for x := int(minC.X / scale); x <= int(maxC.X/scale); x++ {
				if x < 0 || x >= cols {
					continue
				}
				gx := float64(gradX.GetFloatAt(y, x))
				gy := float64(gradY.GetFloatAt(y, x))
				candidates = append(candidates, TemplateSample{
					X:     float64(x)*scale - center.X,
					Y:     float64(y)*scale - center.Y,
					Gray:  float64(working.GetUCharAt(y, x)),
					GradX: gx,
					GradY: gy,
				})
				magnitudes = append(magnitudes, gx*gx+gy*gy)
			}
		}
		gradX.Close()
		gradY.Close()
		if l != 0 {
			working.Close()
		}

		wantCount := params.BaseSampleCount >> uint(l)
		if wantCount < 16 {
			wantCount = 16
		}
		chosen := approximateSelect(magnitudes, params.SelectionBins, wantCount)

		samples := make([]TemplateSample, len(chosen))
		for i, idx := range chosen {
			samples[i] = candidates[idx]
		}
		levels[params.NumLevels-1-l] = sampleLevel{scale: scale, samples: samples}
	}
	return levels, nil
}
