package fiducial

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/component"
	"github.com/anki-vision/planartrack/geom"
)

// traceBoundary renders the component's segments into a same-size binary
// mask and walks its exterior contour via gocv.FindContours — step 6's
// "walk its exterior contour in Moore-neighbor order" is exactly OpenCV's
// border-following algorithm, so it's delegated here rather than
// hand-rolled.
func traceBoundary(segments []component.Segment, id, rows, cols int) []image.Point {
	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	defer mask.Close()
	for _, s := range segments {
		if s.ID != id {
			continue
		}
		for x := s.XStart; x <= s.XEnd; x++ {
			mask.SetUCharAt(s.Y, x, 255)
		}
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()
	if contours.Size() == 0 {
		return nil
	}

	best := contours.At(0).ToPoints()
	for i := 1; i < contours.Size(); i++ {
		pts := contours.At(i).ToPoints()
		if len(pts) > len(best) {
			best = pts
		}
	}
	return best
}

// extractCornersLaplacian computes the discrete second derivative of the
// boundary polyline under circular convolution and takes the four
// largest local maxima above minLaplacianPeakRatio times the
// second-highest peak magnitude as the quad's corners, per spec.md §4.6
// step 7's first mode.
func extractCornersLaplacian(boundary []image.Point, minPeakRatio float64) (geom.Quadrilateral, bool) {
	n := len(boundary)
	if n < 8 {
		return geom.Quadrilateral{}, false
	}

	mag := make([]float64, n)
	for i := 0; i < n; i++ {
		prev := boundary[(i-1+n)%n]
		cur := boundary[i]
		next := boundary[(i+1)%n]
		lx := float64(prev.X) - 2*float64(cur.X) + float64(next.X)
		ly := float64(prev.Y) - 2*float64(cur.Y) + float64(next.Y)
		mag[i] = lx*lx + ly*ly
	}

	type peak struct {
		idx int
		mag float64
	}
	var peaks []peak
	for i := 0; i < n; i++ {
		prev := mag[(i-1+n)%n]
		next := mag[(i+1)%n]
		if mag[i] >= prev && mag[i] >= next {
			peaks = append(peaks, peak{i, mag[i]})
		}
	}
	if len(peaks) < 4 {
		return geom.Quadrilateral{}, false
	}
	sort.Slice(peaks, func(a, b int) bool { return peaks[a].mag > peaks[b].mag })

	secondHighest := peaks[1].mag
	threshold := minPeakRatio * secondHighest
	var corners []image.Point
	for _, p := range peaks {
		if p.mag < threshold {
			break
		}
		corners = append(corners, boundary[p.idx])
		if len(corners) == 4 {
			break
		}
	}
	if len(corners) != 4 {
		return geom.Quadrilateral{}, false
	}

	sortByAngleAroundCentroid(corners)
	return geom.NewQuadrilateral(
		geom.Point{X: float64(corners[0].X), Y: float64(corners[0].Y)},
		geom.Point{X: float64(corners[1].X), Y: float64(corners[1].Y)},
		geom.Point{X: float64(corners[2].X), Y: float64(corners[2].Y)},
		geom.Point{X: float64(corners[3].X), Y: float64(corners[3].Y)},
	), true
}

// extractCornersLineFit splits the boundary into four roughly equal
// quarters, fits a least-squares line to each via gonum, and intersects
// each pair of adjacent lines — spec.md §4.6 step 7's second mode.
func extractCornersLineFit(boundary []image.Point) (geom.Quadrilateral, bool) {
	n := len(boundary)
	if n < 8 {
		return geom.Quadrilateral{}, false
	}

	lines := make([]lineFit, 4)
	quarter := n / 4
	for q := 0; q < 4; q++ {
		start := q * quarter
		end := start + quarter
		if q == 3 {
			end = n
		}
		lines[q] = fitLine(boundary[start:end])
	}

	corners := make([]geom.Point, 4)
	for i := 0; i < 4; i++ {
		a := lines[i]
		b := lines[(i+1)%4]
		p, ok := intersectLines(a, b)
		if !ok {
			return geom.Quadrilateral{}, false
		}
		corners[i] = p
	}
	return geom.NewQuadrilateral(corners[0], corners[1], corners[2], corners[3]), true
}

// lineFit is a line in general form ax + by = c, normalized so a^2+b^2=1.
type lineFit struct{ a, b, c float64 }

// fitLine fits a total-least-squares line through pts via the
// eigenvector of the smallest singular value of the centered point
// matrix (gonum SVD) — robust to near-vertical lines, unlike an ordinary
// least-squares y=mx+b fit.
func fitLine(pts []image.Point) lineFit {
	n := len(pts)
	if n == 0 {
		return lineFit{1, 0, 0}
	}
	var meanX, meanY float64
	for _, p := range pts {
		meanX += float64(p.X)
		meanY += float64(p.Y)
	}
	meanX /= float64(n)
	meanY /= float64(n)

	data := make([]float64, n*2)
	for i, p := range pts {
		data[i*2] = float64(p.X) - meanX
		data[i*2+1] = float64(p.Y) - meanY
	}
	m := mat.NewDense(n, 2, data)

	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDThin) {
		return lineFit{1, 0, meanX}
	}
	var v mat.Dense
	svd.VTo(&v)
	// The direction of least variance (smallest singular value) is the
	// line's normal vector.
	a, b := v.At(0, 1), v.At(1, 1)
	c := a*meanX + b*meanY
	return lineFit{a, b, c}
}

func intersectLines(l1, l2 lineFit) (geom.Point, bool) {
	det := l1.a*l2.b - l2.a*l1.b
	if det == 0 {
		return geom.Point{}, false
	}
	x := (l1.c*l2.b - l2.c*l1.b) / det
	y := (l1.a*l2.c - l2.a*l1.c) / det
	return geom.Point{X: x, Y: y}, true
}

func sortByAngleAroundCentroid(pts []image.Point) {
	var cx, cy float64
	for _, p := range pts {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	sort.Slice(pts, func(i, j int) bool {
		ai := math.Atan2(float64(pts[i].Y)-cy, float64(pts[i].X)-cx)
		aj := math.Atan2(float64(pts[j].Y)-cy, float64(pts[j].X)-cx)
		return ai < aj
	})
}
