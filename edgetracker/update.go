package edgetracker

import (
	"log"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/edge"
	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

func warpPoints(t *transform.PlanarTransformation, points []edge.Point16) (x, y []float64, err error) {
	n := len(points)
	xIn := make([]float64, n)
	yIn := make([]float64, n)
	for i, p := range points {
		xIn[i] = float64(p.X)
		yIn[i] = float64(p.Y)
	}
	x = make([]float64, n)
	y = make([]float64, n)
	err = t.TransformPoints(xIn, yIn, 1, false, false, x, y)
	return
}

// Update runs one frame of tracking: edge detection on nextImage, index
// limits construction, one translation-refine pass, one projective-refine
// pass via params.Strategy, and returns the three verification counters
// spec.md §4.3 step 5 and §7 name: the matched-edge-point count, the mean
// absolute photometric difference over the template's sampled interior,
// and the count of interior samples within params.MaxPixelDifference.
// Per spec.md §7, numerical failure and track loss (fewer than 16
// in-bounds correspondences) are non-fatal: they're logged and leave the
// transformation unchanged, returning (possibly zero) counters with a
// nil error.
func (t *Tracker) Update(nextImage gocv.Mat, params UpdateParams) (numMatches int, meanAbsoluteDifference float64, numSimilarPixels int, err error) {
	if !t.IsValid() {
		return 0, 0, 0, status.New(status.FailInvalidObject, "Update: invalid tracker")
	}

	ep := params.EdgeParams
	ep.Mode = edge.Grayvalue
	ep.Threshold = t.lastGrayThreshold
	nextEdges := edge.Extract(nextImage, ep)
	limits := edge.BuildAllIndexLimits(nextEdges)

	if err := t.refineTranslation(nextEdges, limits, params.MatchingMaxTranslationDistance); err != nil {
		return 0, 0, 0, err
	}

	switch params.Strategy {
	case List:
		err = t.refineProjectiveList(nextEdges, limits, params.MatchingMaxProjectiveDistance)
	case RANSAC:
		err = t.refineProjectiveRANSAC(nextEdges, limits, params)
	default:
		err = t.refineProjectiveDirect(nextEdges, limits, params.MatchingMaxProjectiveDistance)
	}
	if err != nil {
		return 0, 0, 0, err
	}

	corners, cErr := t.transformation.TransformedCorners()
	if cErr == nil {
		hist := edge.NewIntegerCounts(nextImage, corners)
		blackV := hist.Percentile(10)
		whiteV := hist.Percentile(90)
		t.lastGrayThreshold = uint8((int(blackV) + int(whiteV)) / 2)
	}
	t.lastUsedThreshold = ep.Threshold

	numMatches, err = t.verify(nextEdges, limits, params.VerificationMaxTranslationDistance)
	if err != nil {
		return 0, 0, 0, err
	}
	meanAbsoluteDifference, numSimilarPixels = t.verifyPhotometric(nextImage, params.MaxPixelDifference)
	return numMatches, meanAbsoluteDifference, numSimilarPixels, nil
}

func (t *Tracker) allCorrespondences(nextEdges *edge.EdgeLists, limits *edge.AllIndexLimits, maxDist int) []correspondence {
	var all []correspondence

	if wx, wy, err := warpPoints(t.transformation, t.templateEdges.XIncreasing); err == nil {
		all = append(all, matchHorizontal(wx, wy, nextEdges.XIncreasing, limits.XIncreasing, float64(maxDist), nextEdges.ImageHeight)...)
	}
	if wx, wy, err := warpPoints(t.transformation, t.templateEdges.XDecreasing); err == nil {
		all = append(all, matchHorizontal(wx, wy, nextEdges.XDecreasing, limits.XDecreasing, float64(maxDist), nextEdges.ImageHeight)...)
	}
	if wx, wy, err := warpPoints(t.transformation, t.templateEdges.YIncreasing); err == nil {
		all = append(all, matchVertical(wx, wy, nextEdges.YIncreasing, limits.YIncreasing, float64(maxDist), nextEdges.ImageWidth)...)
	}
	if wx, wy, err := warpPoints(t.transformation, t.templateEdges.YDecreasing); err == nil {
		all = append(all, matchVertical(wx, wy, nextEdges.YDecreasing, limits.YDecreasing, float64(maxDist), nextEdges.ImageWidth)...)
	}
	return all
}

// refineTranslation accumulates the signed offset of every matched
// correspondence across all four edge categories and applies their mean
// as a single translation update — one iteration, per spec.md §4.3 step 3.
func (t *Tracker) refineTranslation(nextEdges *edge.EdgeLists, limits *edge.AllIndexLimits, maxDist int) error {
	corrs := t.allCorrespondences(nextEdges, limits, maxDist)
	if len(corrs) < 16 {
		log.Printf("edgetracker: track lost, only %d translation correspondences (need 16)", len(corrs))
		return nil
	}
	var sumDX, sumDY float64
	for _, c := range corrs {
		sumDX += c.matchedX - c.warpedX
		sumDY += c.matchedY - c.warpedY
	}
	n := float64(len(corrs))
	dx, dy := sumDX/n, sumDY/n
	// transformations.h documents TRANSFORM_TRANSLATION's update vector as
	// [-dx, -dy].
	return t.transformation.Update([]float64{-dx, -dy}, 1, transform.Translation)
}

// verify counts, for every template point, whether a new-image point of
// matching category lies within maxDist of its current projection.
func (t *Tracker) verify(nextEdges *edge.EdgeLists, limits *edge.AllIndexLimits, maxDist int) (int, error) {
	corrs := t.allCorrespondences(nextEdges, limits, maxDist)
	return len(corrs), nil
}

// verifyPhotometric is the photometric half of spec.md §4.3 step 5: the
// mean absolute grayscale difference between template pixels and
// interpolated new-image pixels along the warped template interior
// (t.interiorSamples, built at New() time every VerifyCoordinateIncrement
// pixels), plus the count of "similar" pixels (|Δ| ≤ maxPixelDifference).
// The per-sample warped-coordinate scratch buffers live in t.arena's scope
// so they vanish the moment this call returns, the same discipline
// arena_test.go exercises directly.
func (t *Tracker) verifyPhotometric(nextImage gocv.Mat, maxPixelDifference float64) (meanAbsoluteDifference float64, numSimilarPixels int) {
	if len(t.interiorSamples) == 0 {
		return 0, 0
	}
	threshold := maxPixelDifference
	if threshold <= 0 {
		threshold = 40
	}

	var sumAbsDiff float64
	var numSamples int
	t.arena.Scope(func(s *arena.Arena) {
		xIn, err := s.AllocFloat64(1)
		if err != nil {
			return
		}
		yIn, err := s.AllocFloat64(1)
		if err != nil {
			return
		}
		xOut, err := s.AllocFloat64(1)
		if err != nil {
			return
		}
		yOut, err := s.AllocFloat64(1)
		if err != nil {
			return
		}
		for _, sample := range t.interiorSamples {
			xIn[0], yIn[0] = sample.x, sample.y
			if err := t.transformation.TransformPoints(xIn, yIn, 1, true, false, xOut, yOut); err != nil {
				continue
			}
			gray, ok := bilinearSample(nextImage, xOut[0], yOut[0])
			if !ok {
				continue
			}
			d := gray - sample.gray
			if d < 0 {
				d = -d
			}
			sumAbsDiff += d
			numSamples++
			if d <= threshold {
				numSimilarPixels++
			}
		}
	})
	if numSamples == 0 {
		return 0, 0
	}
	return sumAbsDiff / float64(numSamples), numSimilarPixels
}

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
