package transform

import (
	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
)

// ComputeHomographyFromQuad computes the homography mapping the unit
// square corners (0,0),(0,1),(1,0),(1,1) onto quad's four corners, in
// that order — the same direct-linear-transform fit
// transformations.cpp's ComputeHomographyFromQuad performs via
// Matrix::EstimateHomography, implemented here with gonum's linear solve
// over the standard 8x8 DLT system instead of a hand-rolled Gaussian
// elimination.
func ComputeHomographyFromQuad(quad geom.Quadrilateral) (homography []float64, numericalFailure bool) {
	src := [4][2]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	dst := [4][2]float64{}
	for i, c := range quad.Corners {
		dst[i] = [2]float64{c.X, c.Y}
	}

	A := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i][0], src[i][1]
		u, v := dst[i][0], dst[i][1]

		r := 2 * i
		A.SetRow(r, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		b.SetVec(r, u)

		A.SetRow(r+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(r+1, v)
	}

	var x mat.VecDense
	if err := x.SolveVec(A, b); err != nil {
		return nil, true
	}

	h := make([]float64, 9)
	copy(h, x.RawVector().Data)
	h[8] = 1
	return h, false
}

// ComputeHomographyFromQuadInto builds a PlanarTransformation-compatible
// homography from quad and writes it into an arena-owned
// PlanarTransformation via SetHomography, returning the invalid-status
// error ComputeHomographyFromQuad's numericalFailure flag implies.
func (p *PlanarTransformation) ComputeHomographyFromQuad(quad geom.Quadrilateral) error {
	h, numericalFailure := ComputeHomographyFromQuad(quad)
	if numericalFailure {
		return status.New(status.Fail, "ComputeHomographyFromQuad: degenerate quad, DLT system is singular")
	}
	return p.SetHomography(h)
}
