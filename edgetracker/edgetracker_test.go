package edgetracker

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/edge"
	"github.com/anki-vision/planartrack/geom"
)

// gridMat draws a grid of light stripes (every stripePeriod pixels, 3
// pixels wide) over a dark background, shifted by (offsetX, offsetY), so
// the image carries edge transitions in every row and column — enough for
// the correspondence search to have real candidates.
func gridMat(size, stripePeriod, offsetX, offsetY int) gocv.Mat {
	m := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			light := (x+offsetX)%stripePeriod < 3 || (y+offsetY)%stripePeriod < 3
			v := uint8(40)
			if light {
				v = 220
			}
			m.SetUCharAt(y, x, v)
		}
	}
	return m
}

func testQuad(size float64) geom.Quadrilateral {
	margin := size * 0.15
	return geom.NewQuadrilateral(
		geom.Point{X: margin, Y: margin},
		geom.Point{X: size - margin, Y: margin},
		geom.Point{X: size - margin, Y: size - margin},
		geom.Point{X: margin, Y: size - margin},
	)
}

func newTestTracker(t *testing.T, templateImg gocv.Mat) *Tracker {
	t.Helper()
	a := arena.New(arena.CCM, 1<<20)
	quad := testQuad(float64(templateImg.Rows()))
	tr, err := New(a, templateImg, quad, InitParams{
		EdgeParams: edge.Params{
			MinComponentWidth:    1,
			EveryNLines:          1,
			MaxDetectionsPerType: 2000,
		},
		BlackPercentile: 0.1,
		WhitePercentile: 0.9,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestNewBuildsValidTrackerWithTemplatePixels(t *testing.T) {
	img := gridMat(80, 10, 0, 0)
	defer img.Close()

	tr := newTestTracker(t, img)
	if !tr.IsValid() {
		t.Fatalf("expected valid tracker")
	}
	if tr.NumTemplatePixels() == 0 {
		t.Fatalf("expected non-zero template pixel count")
	}
}

func TestUpdateDirectStrategyReportsCountersOnShiftedFrame(t *testing.T) {
	img := gridMat(80, 10, 0, 0)
	defer img.Close()
	tr := newTestTracker(t, img)

	next := gridMat(80, 10, 2, 1)
	defer next.Close()

	matches, meanAbsoluteDifference, numSimilarPixels, err := tr.Update(next, UpdateParams{
		EdgeParams: edge.Params{
			MinComponentWidth:    1,
			EveryNLines:          1,
			MaxDetectionsPerType: 4000,
		},
		MatchingMaxTranslationDistance:     5,
		MatchingMaxProjectiveDistance:      5,
		VerificationMaxTranslationDistance: 3,
		Strategy:                           Direct,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if matches < 0 {
		t.Fatalf("expected non-negative match count, got %d", matches)
	}
	if numSimilarPixels < 0 || meanAbsoluteDifference < 0 {
		t.Fatalf("expected non-negative photometric counters, got mean=%v similar=%d", meanAbsoluteDifference, numSimilarPixels)
	}
	if !tr.IsValid() {
		t.Fatalf("expected tracker to remain valid after update")
	}
}

func TestUpdateListStrategyDoesNotError(t *testing.T) {
	img := gridMat(80, 10, 0, 0)
	defer img.Close()
	tr := newTestTracker(t, img)

	next := gridMat(80, 10, 1, 0)
	defer next.Close()

	_, _, _, err := tr.Update(next, UpdateParams{
		EdgeParams: edge.Params{
			MinComponentWidth:    1,
			EveryNLines:          1,
			MaxDetectionsPerType: 4000,
		},
		MatchingMaxTranslationDistance:     5,
		MatchingMaxProjectiveDistance:      5,
		VerificationMaxTranslationDistance: 3,
		Strategy:                           List,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}
