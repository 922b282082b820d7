// Package session generalizes the teacher's multi-object tracking
// machinery (tracker_factory.go, tracked_object.go, matching.go,
// distances.go) from "track detections across frames" to "track fiducial
// markers across frames", per spec.md §2's "caller" role: it takes the
// fiducial detector's candidate quads for each frame from its caller (the
// list may be empty on frames where the caller did not run the detector),
// associates them with the live PlanarTransformation-backed trackers of
// §4.3–§4.5 by quad-centroid distance, spawns a tracker for every
// unmatched detection, and ages out (and drops) any tracker whose
// verification confidence has collapsed.
package session

import (
	"log"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/fiducial"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/transform"
)

// Tracker is the common surface the session layer drives one of the
// §4.3–§4.5 trackers through, implemented by the adapters in adapters.go.
type Tracker interface {
	// Update advances the tracker's PlanarTransformation to match image.
	Update(image gocv.Mat) error
	// Transformation returns a value snapshot of the tracker's current
	// homography state.
	Transformation() transform.PlanarTransformation
	// IsValid reports whether the tracker was constructed successfully
	// and has not since lost track.
	IsValid() bool
	// Confidence returns the tracker's most recent verification score in
	// [0,1] (the fraction of template edges/samples that still matched
	// after the last Update).
	Confidence() float64
}

// TrackerConstructor builds a Tracker for a newly-detected marker from
// the frame it was detected in and its quad, as returned by fiducial.Detect.
type TrackerConstructor func(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral) (Tracker, error)

// Config tunes the marker lifecycle, generalizing the teacher's
// TrackerConfig (InitializationDelay, HitCounterMax, DetectionThreshold)
// from per-point detection scores to per-marker verification confidence.
type Config struct {
	// InitializationDelay is the number of frames a marker must
	// accumulate hits for before it is assigned a stable ID, mirroring
	// tracked_object.go's IsInitializing gate.
	InitializationDelay int
	// InitialHitCounter seeds a freshly spawned marker's hit counter
	// (tracked_object.go: "Starts at period!").
	InitialHitCounter int
	// HitCounterMax caps the hit counter so a long run of detections
	// doesn't make a marker arbitrarily slow to age out once it's lost.
	HitCounterMax int
	// DistanceThreshold is the maximum quad-centroid distance (pixels)
	// at which a detection may be matched to an existing marker.
	DistanceThreshold float64
	// MinConfidence is the tracker verification confidence below which a
	// marker is dropped even if its hit counter hasn't yet expired.
	MinConfidence float64
}

// Marker is a fiducial marker tracked across frames: a stable identity
// plus the live tracker carrying its current PlanarTransformation.
// Generalizes tracked_object.go's TrackedObject, with the Kalman filter
// over point positions replaced by the §4.3–§4.5 tracker itself (which
// already maintains and refines the homography every frame).
type Marker struct {
	initializingID int
	id             *int

	MarkerType int
	Homography []float64
	Tracker    Tracker

	HitCounter     int
	Age            int
	IsInitializing bool

	lastQuad   geom.Quadrilateral
	confidence float64
}

// ID returns the marker's permanent stable ID, or nil if it is still
// within its initialization delay.
func (m *Marker) ID() *int { return m.id }

// InitializingID returns the temporary ID assigned at spawn time,
// stable for the marker's entire lifetime (tracked_object.go's
// InitializingID).
func (m *Marker) InitializingID() int { return m.initializingID }

// LastQuad returns the marker's most recently observed quad, in the
// current frame's pixel coordinates.
func (m *Marker) LastQuad() geom.Quadrilateral { return m.lastQuad }

// Confidence returns the tracker's last verification score.
func (m *Marker) Confidence() float64 { return m.confidence }

// IsAlive reports whether the marker's hit counter hasn't yet expired
// (tracked_object.go's HitCounterIsPositive).
func (m *Marker) IsAlive() bool { return m.HitCounter >= 0 }

func (m *Marker) hit(cfg Config) {
	m.HitCounter = min(m.HitCounter+2, cfg.HitCounterMax)
	if m.IsInitializing && m.HitCounter > cfg.InitializationDelay {
		m.IsInitializing = false
	}
}

func (m *Marker) miss() {
	m.HitCounter--
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Session owns the set of currently-live markers and the factory
// minting their stable IDs, generalizing the teacher's Tracker type
// (the top-level object, renamed here to avoid colliding with the
// per-marker Tracker interface above).
type Session struct {
	arena      *arena.Arena
	config     Config
	newTracker TrackerConstructor
	factory    *idFactory
	markers    []*Marker
}

// New constructs an empty Session. newTracker selects which of
// edgetracker/lkpyramid/sampledtracker backs every freshly spawned
// marker.
func New(a *arena.Arena, config Config, newTracker TrackerConstructor) *Session {
	return &Session{
		arena:      a,
		config:     config,
		newTracker: newTracker,
		factory:    newIDFactory(),
	}
}

// Markers returns the currently-live markers, most-recently-spawned last.
func (s *Session) Markers() []*Marker { return s.markers }

// Update runs one frame of the session's tracking loop: every live
// marker's tracker is advanced against image, the fiducial detections
// for this frame are associated with markers by quad-centroid distance,
// matched markers have their hit counters refreshed, unmatched markers
// age and are dropped once their hit counter or confidence collapses,
// and unmatched detections spawn new markers.
func (s *Session) Update(image gocv.Mat, detections []fiducial.Detection) error {
	s.advanceTrackers(image)

	detIdx, markerIdx := matchDetectionsAndMarkers(
		buildDistanceMatrix(detections, s.markers), s.config.DistanceThreshold)

	matchedDet := make(map[int]bool, len(detIdx))
	matchedMarker := make(map[int]bool, len(markerIdx))
	for i := range detIdx {
		d, mi := detIdx[i], markerIdx[i]
		matchedDet[d] = true
		matchedMarker[mi] = true
		marker := s.markers[mi]
		marker.hit(s.config)
		marker.MarkerType = detections[d].MarkerType
		marker.Homography = detections[d].Homography
		if !marker.IsInitializing && marker.id == nil {
			id := s.factory.next()
			marker.id = &id
		}
	}

	s.markers = s.dropStaleMarkers(matchedMarker)

	for i, d := range detections {
		if matchedDet[i] {
			continue
		}
		marker, err := s.spawnMarker(image, d)
		if err != nil {
			log.Printf("session: failed to initialize marker for detection %d: %v", i, err)
			continue
		}
		s.markers = append(s.markers, marker)
	}

	return nil
}

func (s *Session) advanceTrackers(image gocv.Mat) {
	for _, m := range s.markers {
		if err := m.Tracker.Update(image); err != nil {
			log.Printf("session: marker %d tracker update failed: %v", s.markerLabel(m), err)
			m.confidence = 0
			continue
		}
		if quad, err := m.Tracker.Transformation().TransformedCorners(); err == nil {
			m.lastQuad = quad
		}
		m.confidence = m.Tracker.Confidence()
	}
}

func (s *Session) dropStaleMarkers(matched map[int]bool) []*Marker {
	alive := s.markers[:0]
	for i, m := range s.markers {
		if !matched[i] {
			m.miss()
		}
		if m.IsAlive() && m.confidence >= s.config.MinConfidence && m.Tracker.IsValid() {
			alive = append(alive, m)
		} else {
			log.Printf("session: dropping marker %d (hitCounter=%d confidence=%.3f)", s.markerLabel(m), m.HitCounter, m.confidence)
		}
	}
	return alive
}

func (s *Session) spawnMarker(image gocv.Mat, d fiducial.Detection) (*Marker, error) {
	tracker, err := s.newTracker(s.arena, image, d.Quad)
	if err != nil {
		return nil, err
	}
	quad, err := tracker.Transformation().TransformedCorners()
	if err != nil {
		quad = d.Quad
	}
	return &Marker{
		initializingID: s.factory.nextInitializing(),
		MarkerType:     d.MarkerType,
		Homography:     d.Homography,
		Tracker:        tracker,
		HitCounter:     s.config.InitialHitCounter,
		IsInitializing: s.config.InitialHitCounter <= s.config.InitializationDelay,
		lastQuad:       quad,
		confidence:     1.0,
	}, nil
}

func (s *Session) markerLabel(m *Marker) int {
	if m.id != nil {
		return *m.id
	}
	return m.initializingID
}
