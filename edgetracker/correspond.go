package edgetracker

import (
	"math"

	"github.com/anki-vision/planartrack/edge"
)

// correspondence pairs one warped template edge point with the new-image
// edge point matched to it, both in base-image coordinates.
type correspondence struct {
	warpedX, warpedY   float64
	matchedX, matchedY float64
}

// nearestInXRange scans candidates[lo:hi] (points that share the query
// row, pre-selected by IndexLimits) and returns the one whose X is
// closest to targetX, if within maxDist.
func nearestInXRange(candidates []edge.Point16, lo, hi int, targetX, maxDist float64) (float64, bool) {
	bestDist := math.Inf(1)
	bestX := 0.0
	found := false
	for i := lo; i < hi && i < len(candidates); i++ {
		d := math.Abs(float64(candidates[i].X) - targetX)
		if d <= maxDist && d < bestDist {
			bestDist = d
			bestX = float64(candidates[i].X)
			found = true
		}
	}
	return bestX, found
}

// nearestInYRange is nearestInXRange's column-axis counterpart.
func nearestInYRange(candidates []edge.Point16, lo, hi int, targetY, maxDist float64) (float64, bool) {
	bestDist := math.Inf(1)
	bestY := 0.0
	found := false
	for i := lo; i < hi && i < len(candidates); i++ {
		d := math.Abs(float64(candidates[i].Y) - targetY)
		if d <= maxDist && d < bestDist {
			bestDist = d
			bestY = float64(candidates[i].Y)
			found = true
		}
	}
	return bestY, found
}

// matchHorizontal finds correspondences between warped x-type template
// points (xIncreasing or xDecreasing) and new-image points of the same
// category, searching along the x axis at the warped point's row via the
// category's y-grouped IndexLimits.
func matchHorizontal(warpedX, warpedY []float64, newPoints []edge.Point16, limits *edge.IndexLimits, maxDist float64, imageHeight int) []correspondence {
	var out []correspondence
	for i := range warpedX {
		row := int(math.Round(warpedY[i]))
		if row < 0 || row >= imageHeight {
			continue
		}
		lo, hi := limits.Range(row, row)
		if x, ok := nearestInXRange(newPoints, lo, hi, warpedX[i], maxDist); ok {
			out = append(out, correspondence{warpedX: warpedX[i], warpedY: warpedY[i], matchedX: x, matchedY: warpedY[i]})
		}
	}
	return out
}

// matchVertical is matchHorizontal's y-type counterpart: search along the
// y axis at the warped point's column.
func matchVertical(warpedX, warpedY []float64, newPoints []edge.Point16, limits *edge.IndexLimits, maxDist float64, imageWidth int) []correspondence {
	var out []correspondence
	for i := range warpedX {
		col := int(math.Round(warpedX[i]))
		if col < 0 || col >= imageWidth {
			continue
		}
		lo, hi := limits.Range(col, col)
		if y, ok := nearestInYRange(newPoints, lo, hi, warpedY[i], maxDist); ok {
			out = append(out, correspondence{warpedX: warpedX[i], warpedY: warpedY[i], matchedX: warpedX[i], matchedY: y})
		}
	}
	return out
}
