package sampledtracker

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/transform"
)

func rampMat(size, offsetX, offsetY int) gocv.Mat {
	m := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := ((x+offsetX)*3 + (y+offsetY)*5) % 256
			m.SetUCharAt(y, x, uint8(v))
		}
	}
	return m
}

func testQuad(size float64) geom.Quadrilateral {
	margin := size * 0.2
	return geom.NewQuadrilateral(
		geom.Point{X: margin, Y: margin},
		geom.Point{X: size - margin, Y: margin},
		geom.Point{X: size - margin, Y: size - margin},
		geom.Point{X: margin, Y: size - margin},
	)
}

func newTestTracker(t *testing.T, img gocv.Mat) *Tracker {
	t.Helper()
	a := arena.New(arena.CCM, 1<<20)
	quad := testQuad(float64(img.Rows()))
	tr, err := New(a, img, quad, transform.Affine, Params{
		NumLevels:             2,
		BaseSampleCount:       80,
		SelectionBins:         32,
		MaxIterationsPerLevel: 8,
		ConvergenceTolerance:  0.05,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestNewPreselectsSamplesAtEveryLevel(t *testing.T) {
	img := rampMat(64, 0, 0)
	defer img.Close()

	tr := newTestTracker(t, img)
	if !tr.IsValid() {
		t.Fatalf("expected valid tracker")
	}
	if len(tr.levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(tr.levels))
	}
	finest, coarsest := tr.levels[0], tr.levels[1]
	if len(finest.samples) == 0 || len(coarsest.samples) == 0 {
		t.Fatalf("expected non-empty sample sets at both levels")
	}
}

func TestUpdateTracksTranslationWithoutError(t *testing.T) {
	img := rampMat(64, 0, 0)
	defer img.Close()
	tr := newTestTracker(t, img)

	next := rampMat(64, 1, 1)
	defer next.Close()

	if err := tr.Update(next, transform.Translation); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestVerifyReportsMatchFractionAgainstTemplate(t *testing.T) {
	img := rampMat(64, 0, 0)
	defer img.Close()
	tr := newTestTracker(t, img)

	meanAbsoluteDifference, numSimilarPixels, numSamples, err := tr.Verify(img, VerifyParams{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if numSamples == 0 {
		t.Fatalf("expected a non-zero sample count")
	}
	if frac := float64(numSimilarPixels) / float64(numSamples); frac < 0.9 {
		t.Fatalf("expected near-perfect match against the template itself, got %v (meanAbsoluteDifference=%v)", frac, meanAbsoluteDifference)
	}
}
