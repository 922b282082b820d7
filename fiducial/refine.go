package fiducial

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/internal/numpy"
)

// refineCorners resamples each of the quad's four sides at
// numRefinementSamples points, refits a line through the dark/light edge
// transition nearest each sample (via a short perpendicular search into
// binary), and re-intersects adjacent lines, repeating until the largest
// corner movement falls below quadRefinementMinCornerChange or exceeds
// quadRefinementMaxCornerChange (diverged), per spec.md §4.6 step 9.
func refineCorners(binary gocv.Mat, quad geom.Quadrilateral, params Params) (geom.Quadrilateral, bool) {
	current := quad
	samples := params.NumRefinementSamples
	if samples < 2 {
		samples = 8
	}
	iterations := params.QuadRefinementIterations
	if iterations < 1 {
		iterations = 5
	}

	for iter := 0; iter < iterations; iter++ {
		lines := make([]lineFit, 4)
		for side := 0; side < 4; side++ {
			a := current.Corners[side]
			b := current.Corners[(side+1)%4]
			pts := sampleEdgeTransitions(binary, a, b, samples)
			if len(pts) < 2 {
				return geom.Quadrilateral{}, false
			}
			lines[side] = fitLine(pts)
		}

		next := make([]geom.Point, 4)
		for i := 0; i < 4; i++ {
			prevLine := lines[(i+3)%4]
			p, ok := intersectLines(prevLine, lines[i])
			if !ok {
				return geom.Quadrilateral{}, false
			}
			next[i] = p
		}
		nextQuad := geom.NewQuadrilateral(next[0], next[1], next[2], next[3])

		maxChange := 0.0
		for i := range current.Corners {
			d := current.Corners[i].Dist(nextQuad.Corners[i])
			if d > maxChange {
				maxChange = d
			}
		}
		current = nextQuad

		if maxChange > params.QuadRefinementMaxCornerChange {
			return geom.Quadrilateral{}, false
		}
		if maxChange < params.QuadRefinementMinCornerChange {
			break
		}
	}
	return current, true
}

// sampleEdgeTransitions places numSamples evenly spaced points strictly
// between a and b and, at each point, searches a short perpendicular segment for the
// binary foreground/background transition nearest the nominal edge —
// the resample-and-refit the spec names, using binary's own thresholded
// pixels as the signal rather than a second gradient computation.
func sampleEdgeTransitions(binary gocv.Mat, a, b geom.Point, numSamples int) []image.Point {
	rows, cols := binary.Rows(), binary.Cols()
	dx, dy := b.X-a.X, b.Y-a.Y
	length := (dx*dx + dy*dy)
	if length == 0 {
		return nil
	}
	nx, ny := -dy, dx
	norm := 1.0
	if mag := nx*nx + ny*ny; mag > 0 {
		norm = 1 / math.Sqrt(mag)
	}
	nx *= norm
	ny *= norm

	const searchRadius = 4
	var pts []image.Point
	for _, t := range numpy.Linspace(0, 1, numSamples+2)[1 : numSamples+1] {
		cx := a.X + dx*t
		cy := a.Y + dy*t

		for r := -searchRadius; r <= searchRadius; r++ {
			x := int(cx + nx*float64(r))
			y := int(cy + ny*float64(r))
			if x < 0 || y < 0 || x >= cols || y >= rows {
				continue
			}
			if binary.GetUCharAt(y, x) != 0 {
				pts = append(pts, image.Point{X: x, Y: y})
				break
			}
		}
	}
	return pts
}
