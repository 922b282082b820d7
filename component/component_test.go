package component

import (
	"testing"

	"gocv.io/x/gocv"
)

// ringMat draws a filled square with a hollow center — a stand-in for a
// fiducial marker's hollow border — onto an otherwise-background image.
func ringMat(size, outer, inner int) gocv.Mat {
	m := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC1)
	lo, hi := (size-outer)/2, (size+outer)/2
	ilo, ihi := (size-inner)/2, (size+inner)/2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(0)
			if y >= lo && y < hi && x >= lo && x < hi {
				v = 255
				if y >= ilo && y < ihi && x >= ilo && x < ihi {
					v = 0
				}
			}
			m.SetUCharAt(y, x, v)
		}
	}
	return m
}

func isFg(v uint8) bool { return v >= 128 }

func TestAssembleLinksRingIntoOneComponent(t *testing.T) {
	img := ringMat(40, 30, 10)
	defer img.Close()

	runs := ExtractRuns(img, isFg, 0, 1)
	if len(runs) == 0 {
		t.Fatalf("expected non-empty runs")
	}
	for _, s := range runs {
		if s.XStart > s.XEnd {
			t.Fatalf("segment invariant violated: xStart %d > xEnd %d", s.XStart, s.XEnd)
		}
		if s.Y < 0 || s.Y >= img.Rows() {
			t.Fatalf("segment invariant violated: y=%d out of [0,%d)", s.Y, img.Rows())
		}
	}

	linked := Assemble(runs)
	ids := distinctIDs(linked)
	if len(ids) != 1 {
		t.Fatalf("expected ring to assemble into exactly one component, got %d", len(ids))
	}
}

func TestIsHollowDetectsRingInterior(t *testing.T) {
	img := ringMat(40, 30, 10)
	defer img.Close()

	linked := Assemble(ExtractRuns(img, isFg, 0, 1))
	ids := distinctIDs(linked)
	if !IsHollow(linked, ids[0]) {
		t.Fatalf("expected ring component to be detected as hollow")
	}
}

func TestFilterDropsTooSmallAndCompressesIDs(t *testing.T) {
	img := ringMat(40, 30, 10)
	defer img.Close()

	linked := Assemble(ExtractRuns(img, isFg, 0, 1))
	beforeCount := PixelCount(linked, distinctIDs(linked)[0])

	kept := Filter(linked, FilterParams{MinPixelCount: beforeCount + 1})
	if len(kept) != 0 {
		t.Fatalf("expected component to be dropped by too-small filter, kept %d segments", len(kept))
	}

	kept = Filter(linked, FilterParams{MinPixelCount: 1, RequireHollow: true})
	if len(kept) == 0 {
		t.Fatalf("expected hollow ring component to survive filtering")
	}
	for _, s := range kept {
		if s.ID != 0 {
			t.Fatalf("expected surviving ids to be compressed starting at 0, got %d", s.ID)
		}
	}
}

func TestBoundingBoxAndCentroid(t *testing.T) {
	segments := []Segment{
		{XStart: 2, XEnd: 5, Y: 0, ID: 0},
		{XStart: 1, XEnd: 6, Y: 1, ID: 0},
	}
	minX, minY, maxX, maxY, found := BoundingBox(segments, 0)
	if !found || minX != 1 || maxX != 6 || minY != 0 || maxY != 1 {
		t.Fatalf("unexpected bounding box: (%d,%d)-(%d,%d) found=%v", minX, minY, maxX, maxY, found)
	}
	cx, cy, found := Centroid(segments, 0)
	if !found {
		t.Fatalf("expected centroid to be found")
	}
	if cx <= 0 || cy < 0 {
		t.Fatalf("unexpected centroid (%f,%f)", cx, cy)
	}
}
