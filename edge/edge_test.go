package edge

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/geom"
)

// stripedMat builds a grayscale image with a single dark->light->dark
// vertical stripe so the tests have a known, hand-countable edge set.
func stripedMat(width, height, stripeStart, stripeEnd int) gocv.Mat {
	m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(40)
			if x >= stripeStart && x < stripeEnd {
				v = 220
			}
			m.SetUCharAt(y, x, v)
		}
	}
	return m
}

func TestExtractGrayvalueFindsStripeEdges(t *testing.T) {
	img := stripedMat(64, 32, 20, 40)
	defer img.Close()

	params := Params{
		Mode:                 Grayvalue,
		Threshold:            128,
		MinComponentWidth:    4,
		EveryNLines:          1,
		MaxDetectionsPerType: 0,
	}
	lists := Extract(img, params)

	if len(lists.XIncreasing) == 0 {
		t.Fatalf("expected at least one XIncreasing edge")
	}
	if len(lists.XDecreasing) == 0 {
		t.Fatalf("expected at least one XDecreasing edge")
	}
	for _, p := range lists.XIncreasing {
		if int(p.X) != 20 {
			t.Fatalf("expected XIncreasing edge at x=20, got %d", p.X)
		}
	}
	for _, p := range lists.XDecreasing {
		if int(p.X) != 40 {
			t.Fatalf("expected XDecreasing edge at x=40, got %d", p.X)
		}
	}
}

func TestExtractGrayvalueSortOrder(t *testing.T) {
	img := stripedMat(64, 32, 20, 40)
	defer img.Close()

	lists := Extract(img, Params{Mode: Grayvalue, Threshold: 128, MinComponentWidth: 4, EveryNLines: 1})
	for i := 1; i < len(lists.XIncreasing); i++ {
		a, b := lists.XIncreasing[i-1], lists.XIncreasing[i]
		if b.Y < a.Y || (b.Y == a.Y && b.X < a.X) {
			t.Fatalf("XIncreasing not sorted ascending y then x: %v before %v", a, b)
		}
	}
}

func TestMaxDetectionsPerTypeCapsOutput(t *testing.T) {
	img := stripedMat(64, 32, 20, 40)
	defer img.Close()

	lists := Extract(img, Params{Mode: Grayvalue, Threshold: 128, MinComponentWidth: 4, EveryNLines: 1, MaxDetectionsPerType: 3})
	if len(lists.XIncreasing) > 3 {
		t.Fatalf("expected XIncreasing capped at 3, got %d", len(lists.XIncreasing))
	}
}

func TestIndexLimitsMonotoneAndRangeCorrect(t *testing.T) {
	img := stripedMat(64, 32, 20, 40)
	defer img.Close()

	lists := Extract(img, Params{Mode: Grayvalue, Threshold: 128, MinComponentWidth: 4, EveryNLines: 1})
	all := BuildAllIndexLimits(lists)

	prev := int32(0)
	for _, v := range all.XIncreasing.StartIndex {
		if v < prev {
			t.Fatalf("IndexLimits.StartIndex not monotone non-decreasing: %v", all.XIncreasing.StartIndex)
		}
		prev = v
	}

	lo, hi := all.XIncreasing.Range(0, img.Rows()-1)
	if lo != 0 || hi != len(lists.XIncreasing) {
		t.Fatalf("full-range query should cover entire list, got [%d,%d) of %d", lo, hi, len(lists.XIncreasing))
	}
}

func TestIntegerCountsPercentile(t *testing.T) {
	img := stripedMat(64, 32, 0, 32)
	defer img.Close()

	quad := geom.NewQuadrilateral(
		geom.Point{X: 0, Y: 0},
		geom.Point{X: 63, Y: 0},
		geom.Point{X: 63, Y: 31},
		geom.Point{X: 0, Y: 31},
	)
	h := NewIntegerCounts(img, quad)
	if h.Total == 0 {
		t.Fatalf("expected non-zero histogram total")
	}
	low := h.Percentile(1)
	high := h.Percentile(99)
	if low > high {
		t.Fatalf("expected 1st percentile <= 99th percentile, got %d > %d", low, high)
	}
}
