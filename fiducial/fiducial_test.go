package fiducial

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/component"
	"github.com/anki-vision/planartrack/dtree"
	"github.com/anki-vision/planartrack/geom"
)

func squareBoundary(size int) []image.Point {
	var pts []image.Point
	for x := 0; x < size; x++ {
		pts = append(pts, image.Point{X: x, Y: 0})
	}
	for y := 0; y < size; y++ {
		pts = append(pts, image.Point{X: size - 1, Y: y})
	}
	for x := size - 1; x >= 0; x-- {
		pts = append(pts, image.Point{X: x, Y: size - 1})
	}
	for y := size - 1; y >= 0; y-- {
		pts = append(pts, image.Point{X: 0, Y: y})
	}
	return pts
}

func TestExtractCornersLineFitRecoversSquareCorners(t *testing.T) {
	boundary := squareBoundary(40)
	quad, ok := extractCornersLineFit(boundary)
	if !ok {
		t.Fatalf("expected successful line-fit extraction")
	}
	if !quad.IsConvex() {
		t.Fatalf("expected convex quad, got %+v", quad)
	}
	if quad.Area() < 1000 {
		t.Fatalf("expected area near 39x39, got %v", quad.Area())
	}
}

func TestValidateQuadRejectsNearBorderAndAsymmetric(t *testing.T) {
	params := Params{
		MinQuadArea:              10,
		QuadSymmetryThreshold:    3,
		MinDistanceFromImageEdge: 5,
	}
	good := geom.NewQuadrilateral(
		geom.Point{X: 20, Y: 20}, geom.Point{X: 60, Y: 20},
		geom.Point{X: 60, Y: 60}, geom.Point{X: 20, Y: 60},
	)
	if !validateQuad(good, 100, 100, params) {
		t.Fatalf("expected a centered square quad to validate")
	}

	nearBorder := geom.NewQuadrilateral(
		geom.Point{X: 1, Y: 1}, geom.Point{X: 40, Y: 1},
		geom.Point{X: 40, Y: 40}, geom.Point{X: 1, Y: 40},
	)
	if validateQuad(nearBorder, 100, 100, params) {
		t.Fatalf("expected a near-border quad to be rejected")
	}

	asymmetric := geom.NewQuadrilateral(
		geom.Point{X: 20, Y: 20}, geom.Point{X: 90, Y: 20},
		geom.Point{X: 90, Y: 24}, geom.Point{X: 20, Y: 24},
	)
	if validateQuad(asymmetric, 100, 100, params) {
		t.Fatalf("expected a thin asymmetric quad to be rejected")
	}
}

func TestExtractComponentsFindsFilledRectangle(t *testing.T) {
	m := gocv.NewMatWithSize(60, 60, gocv.MatTypeCV8UC1)
	defer m.Close()
	for y := 10; y < 50; y++ {
		for x := 10; x < 50; x++ {
			m.SetUCharAt(y, x, 255)
		}
	}

	segments := extractComponents(m, Params{
		MaxSkipDistance:   1,
		MinComponentWidth: 1,
		Filter: component.FilterParams{
			MinPixelCount: 10,
			MinSolidity:   component.NewQ23_8(0.5),
		},
	})
	ids := distinctComponentIDs(segments)
	if len(ids) != 1 {
		t.Fatalf("expected exactly one component, got %d", len(ids))
	}
}

func TestDecodeRejectsFlatLowContrastPatch(t *testing.T) {
	img := gocv.NewMatWithSize(40, 40, gocv.MatTypeCV8UC1)
	defer img.Close()
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.SetUCharAt(y, x, 128)
		}
	}
	a := arena.New(arena.CCM, 1<<16)
	quad := geom.NewQuadrilateral(
		geom.Point{X: 5, Y: 5}, geom.Point{X: 35, Y: 5},
		geom.Point{X: 35, Y: 35}, geom.Point{X: 5, Y: 35},
	)
	nodes := []dtree.Node{{ProbeXCenter: 0, ProbeYCenter: 0, LeftChildIndex: 0, Label: 0x8000}}
	tree, err := dtree.New(nodes, []int16{0}, []int16{0}, 0, 2)
	if err != nil {
		t.Fatalf("dtree.New: %v", err)
	}

	_, _, err = decode(a, img, quad, tree, Params{DecodeGrayThreshold: 128, DecodeMinContrastRatio: 0.2})
	if err == nil {
		t.Fatalf("expected a flat mid-gray patch to fail the contrast check")
	}
}
