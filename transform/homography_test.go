package transform

import (
	"math"
	"testing"

	"github.com/anki-vision/planartrack/geom"
)

func TestComputeHomographyFromQuadMapsUnitSquareCorners(t *testing.T) {
	quad := geom.NewQuadrilateral(
		geom.Point{X: 10, Y: 10},
		geom.Point{X: 10, Y: 50},
		geom.Point{X: 50, Y: 10},
		geom.Point{X: 50, Y: 50},
	)
	h, fail := ComputeHomographyFromQuad(quad)
	if fail {
		t.Fatalf("unexpected numerical failure")
	}

	src := [4][2]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	for i, c := range quad.Corners {
		x, y := src[i][0], src[i][1]
		wx := h[0]*x + h[1]*y + h[2]
		wy := h[3]*x + h[4]*y + h[5]
		ww := h[6]*x + h[7]*y + h[8]
		if math.Abs(wx/ww-c.X) > 1e-6 || math.Abs(wy/ww-c.Y) > 1e-6 {
			t.Fatalf("corner %d: got (%v,%v), want (%v,%v)", i, wx/ww, wy/ww, c.X, c.Y)
		}
	}
}
