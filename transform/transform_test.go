package transform

import (
	"math"
	"testing"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
)

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func testQuad() geom.Quadrilateral {
	return geom.NewQuadrilateral(
		geom.Point{X: 100, Y: 100},
		geom.Point{X: 200, Y: 100},
		geom.Point{X: 200, Y: 200},
		geom.Point{X: 100, Y: 200},
	)
}

func TestNewIdentityHomographyBottomRight(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	p, err := New(a, Projective, testQuad())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := p.Homography()
	if !almostEqual(h[8], 1, 1e-9) {
		t.Fatalf("expected homography[2][2]==1, got %g", h[8])
	}
	if !almostEqual(h[0], 1, 1e-9) || !almostEqual(h[4], 1, 1e-9) {
		t.Fatalf("expected identity homography, got %v", h)
	}
}

func TestCenterOffsetDefaultsToCentroid(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	quad := testQuad()
	p, err := New(a, Projective, quad)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := quad.Centroid()
	got := p.CenterOffset(1)
	if !almostEqual(got.X, want.X, 1e-9) || !almostEqual(got.Y, want.Y, 1e-9) {
		t.Fatalf("expected center offset %v, got %v", want, got)
	}
}

func TestUpdateOrderingRejectsPromotion(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	p, err := New(a, Affine, testQuad())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = p.Update(make([]float64, Projective.ParamCount()), 1, Projective)
	if err == nil {
		t.Fatalf("expected error promoting an AFFINE tracker with a PROJECTIVE delta")
	}
}

func TestUpdateTranslationIdentityDeltaLeavesHomographyUnchanged(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	p, err := New(a, Projective, testQuad())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Update([]float64{0, 0}, 1, Translation); err != nil {
		t.Fatalf("Update: %v", err)
	}
	h := p.Homography()
	for i, want := range identity9 {
		if !almostEqual(h[i], want, 1e-9) {
			t.Fatalf("index %d: expected %g, got %g", i, want, h[i])
		}
	}
}

func TestUpdateTranslationEquivalentToSparseProjective(t *testing.T) {
	aTrans := arena.New(arena.CCM, 4096)
	aProj := arena.New(arena.CCM, 4096)
	quad := testQuad()

	pTrans, err := New(aTrans, Projective, quad)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pProj, err := New(aProj, Projective, quad)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dx, dy := 3.25, -1.5
	if err := pTrans.Update([]float64{dx, dy}, 1, Translation); err != nil {
		t.Fatalf("translation Update: %v", err)
	}
	if err := pProj.Update([]float64{0, 0, dx, 0, 0, dy, 0, 0}, 1, Projective); err != nil {
		t.Fatalf("projective Update: %v", err)
	}

	ht, hp := pTrans.Homography(), pProj.Homography()
	for i := range ht {
		if !almostEqual(ht[i], hp[i], 1e-9) {
			t.Fatalf("index %d: translation update %g != sparse projective update %g", i, ht[i], hp[i])
		}
	}
}

func TestTransformPointsRoundTripsIdentity(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	p, err := New(a, Projective, testQuad())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	xIn := []float64{10, -5, 0}
	yIn := []float64{20, 7, 0}
	xOut := make([]float64, 3)
	yOut := make([]float64, 3)
	if err := p.TransformPoints(xIn, yIn, 1, false, false, xOut, yOut); err != nil {
		t.Fatalf("TransformPoints: %v", err)
	}
	for i := range xIn {
		if !almostEqual(xIn[i], xOut[i], 1e-6) || !almostEqual(yIn[i], yOut[i], 1e-6) {
			t.Fatalf("identity transform should round-trip point %d: in=(%g,%g) out=(%g,%g)", i, xIn[i], yIn[i], xOut[i], yOut[i])
		}
	}
}

func TestTransformQuadrilateralTranslation(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	quad := testQuad()
	p, err := New(a, Projective, quad)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dx, dy := 5.0, -3.0
	if err := p.Update([]float64{dx, dy}, 1, Translation); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := p.TransformQuadrilateral(quad, 1)
	if err != nil {
		t.Fatalf("TransformQuadrilateral: %v", err)
	}
	// Update composes with inv(I + delta), so a translation delta moves
	// the corners by its negation.
	for i, c := range quad.Corners {
		wantX, wantY := c.X-dx, c.Y-dy
		if !almostEqual(got.Corners[i].X, wantX, 1e-6) || !almostEqual(got.Corners[i].Y, wantY, 1e-6) {
			t.Fatalf("corner %d: want (%g,%g), got (%v)", i, wantX, wantY, got.Corners[i])
		}
	}
}

func TestSetCopiesValues(t *testing.T) {
	aSrc := arena.New(arena.CCM, 4096)
	aDst := arena.New(arena.OnChip, 4096)
	quad := testQuad()

	src, err := New(aSrc, Projective, quad)
	if err != nil {
		t.Fatalf("New src: %v", err)
	}
	if err := src.Update([]float64{1, 2}, 1, Translation); err != nil {
		t.Fatalf("Update: %v", err)
	}

	dst, err := New(aDst, Projective, quad)
	if err != nil {
		t.Fatalf("New dst: %v", err)
	}
	if err := dst.Set(src); err != nil {
		t.Fatalf("Set: %v", err)
	}

	hs, hd := src.Homography(), dst.Homography()
	for i := range hs {
		if !almostEqual(hs[i], hd[i], 1e-9) {
			t.Fatalf("index %d: expected Set to copy %g, got %g", i, hs[i], hd[i])
		}
	}
}

func TestUpdateRejectsWrongDeltaLength(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	p, err := New(a, Projective, testQuad())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Update([]float64{1, 2, 3}, 1, Translation); err == nil {
		t.Fatalf("expected error for wrong delta length")
	}
}
