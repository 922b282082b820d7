package edgetracker

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/edge"
	"github.com/anki-vision/planartrack/internal/scipy"
	"github.com/anki-vision/planartrack/transform"
)

// accumulateNormalEquations builds the 8x8 AtA / 8-vector Atb for a
// projective refine from a correspondence set, linearizing the warp
// around the identity perturbation the same way the dense pyramid
// tracker's inverse-compositional Jacobian does (package lkpyramid),
// evaluated here at each correspondence's zero-centered warped
// coordinate rather than at a meshgrid of template pixels.
func accumulateNormalEquations(corrs []correspondence, centerX, centerY float64) (*mat.SymDense, *mat.VecDense) {
	AtA := mat.NewSymDense(8, nil)
	Atb := mat.NewVecDense(8, nil)

	for _, c := range corrs {
		xc := c.warpedX - centerX
		yc := c.warpedY - centerY
		mx := c.matchedX - centerX
		my := c.matchedY - centerY
		ex := mx - xc
		ey := my - yc

		jx := [8]float64{xc, yc, 1, 0, 0, 0, -xc * xc, -xc * yc}
		jy := [8]float64{0, 0, 0, xc, yc, 1, -yc * xc, -yc * yc}

		for row := 0; row < 8; row++ {
			Atb.SetVec(row, Atb.AtVec(row)+jx[row]*ex+jy[row]*ey)
			for col := row; col < 8; col++ {
				AtA.SetSym(row, col, AtA.At(row, col)+jx[row]*jx[col]+jy[row]*jy[col])
			}
		}
	}
	return AtA, Atb
}

// solveProjectiveDelta solves AtA * delta = Atb via Cholesky. A numerical
// failure is reported via ok=false, non-fatal per spec.md §7.
func solveProjectiveDelta(AtA *mat.SymDense, Atb *mat.VecDense) (delta []float64, ok bool) {
	var chol mat.Cholesky
	if !chol.Factorize(AtA) {
		return nil, false
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, Atb); err != nil {
		return nil, false
	}
	out := make([]float64, 8)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, true
}

func (t *Tracker) centerXY() (float64, float64) {
	c := t.transformation.CenterOffset(1)
	return c.X, c.Y
}

// refineProjectiveDirect accumulates AtA/Atb directly per correspondence
// (spec.md §4.3 step 4, "Direct" strategy).
func (t *Tracker) refineProjectiveDirect(nextEdges *edge.EdgeLists, limits *edge.AllIndexLimits, maxDist int) error {
	corrs := t.allCorrespondences(nextEdges, limits, maxDist)
	return t.applyProjectiveCorrespondences(corrs)
}

// refineProjectiveList gathers every correspondence into a flat list,
// then resolves it to a one-to-one warped-point/new-image-point pairing
// via scipy.LinearSumAssignment before accumulating (spec.md §4.3's
// "List-based" strategy): matchHorizontal/matchVertical pick each
// warped point's nearest candidate independently, so two warped points
// on either side of a thin edge can both claim the same new-image
// point; the optimal assignment pre-filter resolves that contention
// instead of letting both halves pull the fit toward one sample.
func (t *Tracker) refineProjectiveList(nextEdges *edge.EdgeLists, limits *edge.AllIndexLimits, maxDist int) error {
	corrs := t.allCorrespondences(nextEdges, limits, maxDist)
	filtered := assignCorrespondences(corrs, float64(maxDist))
	return t.applyProjectiveCorrespondences(filtered)
}

// assignCorrespondences collapses corrs's possibly many-to-one
// warped/matched pairings into a one-to-one pairing by treating each
// distinct matched point as an assignment column and each
// correspondence as a candidate row, costed by warped/matched distance.
func assignCorrespondences(corrs []correspondence, maxDist float64) []correspondence {
	if len(corrs) == 0 {
		return nil
	}

	type point struct{ x, y float64 }
	var matchedPoints []point
	matchedCol := make(map[point]int)
	for _, c := range corrs {
		key := point{c.matchedX, c.matchedY}
		if _, ok := matchedCol[key]; !ok {
			matchedCol[key] = len(matchedPoints)
			matchedPoints = append(matchedPoints, key)
		}
	}

	costMatrix := make([][]float64, len(corrs))
	for i, c := range corrs {
		row := make([]float64, len(matchedPoints))
		for j, p := range matchedPoints {
			row[j] = math.Hypot(c.warpedX-p.x, c.warpedY-p.y)
		}
		costMatrix[i] = row
	}

	assignments, _, _ := scipy.LinearSumAssignment(costMatrix, maxDist)
	filtered := make([]correspondence, 0, len(assignments))
	for _, a := range assignments {
		filtered = append(filtered, corrs[a.RowIdx])
	}
	return filtered
}

func (t *Tracker) applyProjectiveCorrespondences(corrs []correspondence) error {
	if len(corrs) < 16 {
		log.Printf("edgetracker: track lost, only %d projective correspondences (need 16)", len(corrs))
		return nil
	}
	cx, cy := t.centerXY()
	AtA, Atb := accumulateNormalEquations(corrs, cx, cy)
	delta, ok := solveProjectiveDelta(AtA, Atb)
	if !ok {
		log.Printf("edgetracker: Cholesky breakdown in projective refine, leaving homography unchanged")
		return nil
	}
	return t.transformation.Update(delta, 1, transform.Projective)
}
