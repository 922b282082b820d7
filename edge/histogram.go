package edge

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/geom"
)

// IntegerCounts is a 256-bin grayscale histogram over a quadrilateral
// region of an image, used to derive a binarization threshold from
// black/white percentiles (spec.md §3).
type IntegerCounts struct {
	Bins  [256]int32
	Total int32
}

// NewIntegerCounts builds a histogram over the pixels of img that fall
// inside quad's bounding box and pass a point-in-quad test.
func NewIntegerCounts(img gocv.Mat, quad geom.Quadrilateral) *IntegerCounts {
	h := &IntegerCounts{}
	min, max := quad.BoundingBox()

	x0 := clampInt(int(min.X), 0, img.Cols()-1)
	x1 := clampInt(int(max.X)+1, 0, img.Cols()-1)
	y0 := clampInt(int(min.Y), 0, img.Rows()-1)
	y1 := clampInt(int(max.Y)+1, 0, img.Rows()-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !pointInQuad(quad, float64(x)+0.5, float64(y)+0.5) {
				continue
			}
			v := img.GetUCharAt(y, x)
			h.Bins[v]++
			h.Total++
		}
	}
	return h
}

// Percentile returns the grayscale value v such that approximately p
// percent (0..100) of counted pixels have a value <= v.
func (h *IntegerCounts) Percentile(p float64) uint8 {
	if h.Total == 0 {
		return 0
	}
	target := int32(p / 100.0 * float64(h.Total))
	var running int32
	for v := 0; v < 256; v++ {
		running += h.Bins[v]
		if running >= target {
			return uint8(v)
		}
	}
	return 255
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pointInQuad is a standard even-odd ray-casting point-in-polygon test
// over the quad's four corners.
func pointInQuad(quad geom.Quadrilateral, x, y float64) bool {
	inside := false
	corners := quad.Corners
	j := len(corners) - 1
	for i := range corners {
		xi, yi := corners[i].X, corners[i].Y
		xj, yj := corners[j].X, corners[j].Y
		if ((yi > y) != (yj > y)) &&
			(x < (xj-xi)*(y-yi)/(yj-yi)+xi) {
			inside = !inside
		}
		j = i
	}
	return inside
}
