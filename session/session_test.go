package session

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/fiducial"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/transform"
)

// fakeTracker is a Tracker double whose Transformation always reports a
// quad centered at center, letting tests drive matching/aging without
// running any real image processing.
type fakeTracker struct {
	center     geom.Point
	valid      bool
	confidence float64
	updateErr  error
	updates    int
}

func (f *fakeTracker) Update(gocv.Mat) error {
	f.updates++
	return f.updateErr
}

func (f *fakeTracker) Transformation() transform.PlanarTransformation {
	a := arena.New(arena.CCM, 1<<12)
	quad := geom.NewQuadrilateral(
		geom.Point{X: f.center.X - 10, Y: f.center.Y - 10},
		geom.Point{X: f.center.X + 10, Y: f.center.Y - 10},
		geom.Point{X: f.center.X + 10, Y: f.center.Y + 10},
		geom.Point{X: f.center.X - 10, Y: f.center.Y + 10},
	)
	p, _ := transform.New(a, transform.Translation, quad)
	return *p
}

func (f *fakeTracker) IsValid() bool      { return f.valid }
func (f *fakeTracker) Confidence() float64 { return f.confidence }

func newTestSession(t *testing.T) *Session {
	t.Helper()
	a := arena.New(arena.CCM, 1<<16)
	cfg := Config{
		InitializationDelay: 2,
		InitialHitCounter:   1,
		HitCounterMax:       10,
		DistanceThreshold:   15,
		MinConfidence:       0.2,
	}
	constructor := func(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral) (Tracker, error) {
		return &fakeTracker{center: templateQuad.Centroid(), valid: true, confidence: 1.0}, nil
	}
	return New(a, cfg, constructor)
}

func detectionAt(x, y float64) fiducial.Detection {
	return fiducial.Detection{
		Quad: geom.NewQuadrilateral(
			geom.Point{X: x - 10, Y: y - 10}, geom.Point{X: x + 10, Y: y - 10},
			geom.Point{X: x + 10, Y: y + 10}, geom.Point{X: x - 10, Y: y + 10},
		),
		MarkerType: 7,
	}
}

func TestUpdateSpawnsMarkerForUnmatchedDetection(t *testing.T) {
	s := newTestSession(t)
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer img.Close()

	if err := s.Update(img, []fiducial.Detection{detectionAt(50, 50)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(s.Markers()) != 1 {
		t.Fatalf("expected one spawned marker, got %d", len(s.Markers()))
	}
	if s.Markers()[0].IsInitializing == false {
		t.Fatalf("expected freshly spawned marker still initializing")
	}
	if s.Markers()[0].ID() != nil {
		t.Fatalf("expected no stable ID before crossing InitializationDelay")
	}
}

func TestUpdateAssignsStableIDAfterInitializationDelay(t *testing.T) {
	s := newTestSession(t)
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer img.Close()

	for i := 0; i < 3; i++ {
		if err := s.Update(img, []fiducial.Detection{detectionAt(50, 50)}); err != nil {
			t.Fatalf("Update frame %d: %v", i, err)
		}
	}

	if len(s.Markers()) != 1 {
		t.Fatalf("expected the same marker tracked across frames, got %d markers", len(s.Markers()))
	}
	if s.Markers()[0].ID() == nil {
		t.Fatalf("expected a stable ID after repeated hits past InitializationDelay")
	}
}

func TestUpdateDropsMarkerWithoutFurtherDetections(t *testing.T) {
	s := newTestSession(t)
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer img.Close()

	if err := s.Update(img, []fiducial.Detection{detectionAt(50, 50)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := s.Update(img, nil); err != nil {
			t.Fatalf("Update (no detections) frame %d: %v", i, err)
		}
	}

	if len(s.Markers()) != 0 {
		t.Fatalf("expected the marker to age out, got %d remaining", len(s.Markers()))
	}
}

func TestUpdateDropsMarkerOnLowConfidence(t *testing.T) {
	s := newTestSession(t)
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer img.Close()

	if err := s.Update(img, []fiducial.Detection{detectionAt(50, 50)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	s.Markers()[0].Tracker.(*fakeTracker).confidence = 0.0

	if err := s.Update(img, []fiducial.Detection{detectionAt(50, 50)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(s.Markers()) != 0 {
		t.Fatalf("expected a collapsed-confidence marker to be dropped even while matched, got %d", len(s.Markers()))
	}
}
