package session

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/edgetracker"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/lkpyramid"
	"github.com/anki-vision/planartrack/sampledtracker"
	"github.com/anki-vision/planartrack/transform"
)

// EdgeTrackerAdapter wraps an edgetracker.Tracker so it satisfies
// Tracker, deriving Confidence from Update's numMatches against the
// template's total edge-point count, exactly the ratio spec.md §4.3's
// verification step checks against VerificationMaxTranslationDistance.
type EdgeTrackerAdapter struct {
	tracker        *edgetracker.Tracker
	params         edgetracker.UpdateParams
	lastConfidence float64
}

// NewEdgeTracker returns a TrackerConstructor backing every spawned
// marker with an edge-based tracker built from initParams/updateParams.
func NewEdgeTracker(initParams edgetracker.InitParams, updateParams edgetracker.UpdateParams) TrackerConstructor {
	return func(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral) (Tracker, error) {
		t, err := edgetracker.New(a, templateImage, templateQuad, initParams)
		if err != nil {
			return nil, err
		}
		return &EdgeTrackerAdapter{tracker: t, params: updateParams, lastConfidence: 1.0}, nil
	}
}

func (a *EdgeTrackerAdapter) Update(image gocv.Mat) error {
	numMatches, _, _, err := a.tracker.Update(image, a.params)
	if err != nil {
		return err
	}
	if total := a.tracker.NumTemplatePixels(); total > 0 {
		a.lastConfidence = float64(numMatches) / float64(total)
	}
	return nil
}

func (a *EdgeTrackerAdapter) Transformation() transform.PlanarTransformation { return a.tracker.Transformation() }
func (a *EdgeTrackerAdapter) IsValid() bool                                 { return a.tracker.IsValid() }
func (a *EdgeTrackerAdapter) Confidence() float64                          { return a.lastConfidence }

// LKPyramidAdapter wraps an lkpyramid.Tracker, deriving Confidence from
// a Verify call run against the same frame right after Update.
type LKPyramidAdapter struct {
	tracker        *lkpyramid.Tracker
	updateType     transform.TransformType
	verifyParams   lkpyramid.VerifyParams
	lastConfidence float64
}

// NewLKPyramidTracker returns a TrackerConstructor backing every spawned
// marker with a dense pyramid (inverse-compositional LK) tracker.
func NewLKPyramidTracker(updateType transform.TransformType, params lkpyramid.Params, verifyParams lkpyramid.VerifyParams) TrackerConstructor {
	return func(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral) (Tracker, error) {
		t, err := lkpyramid.New(a, templateImage, templateQuad, updateType, params)
		if err != nil {
			return nil, err
		}
		return &LKPyramidAdapter{tracker: t, updateType: updateType, verifyParams: verifyParams, lastConfidence: 1.0}, nil
	}
}

func (a *LKPyramidAdapter) Update(image gocv.Mat) error {
	if err := a.tracker.Update(image, a.updateType); err != nil {
		return err
	}
	_, numSimilar, numSamples, err := a.tracker.Verify(image, a.verifyParams)
	if err != nil {
		return err
	}
	if numSamples > 0 {
		a.lastConfidence = float64(numSimilar) / float64(numSamples)
	}
	return nil
}

func (a *LKPyramidAdapter) Transformation() transform.PlanarTransformation { return a.tracker.Transformation() }
func (a *LKPyramidAdapter) IsValid() bool                                 { return a.tracker.IsValid() }
func (a *LKPyramidAdapter) Confidence() float64                          { return a.lastConfidence }

// SampledTrackerAdapter wraps a sampledtracker.Tracker, identical in
// shape to LKPyramidAdapter since both trackers share the
// Update(image, transformType)/Verify(image, params) surface.
type SampledTrackerAdapter struct {
	tracker        *sampledtracker.Tracker
	updateType     transform.TransformType
	verifyParams   sampledtracker.VerifyParams
	lastConfidence float64
}

// NewSampledTracker returns a TrackerConstructor backing every spawned
// marker with a sampled (ApproximateSelect-preselected) tracker.
func NewSampledTracker(updateType transform.TransformType, params sampledtracker.Params, verifyParams sampledtracker.VerifyParams) TrackerConstructor {
	return func(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral) (Tracker, error) {
		t, err := sampledtracker.New(a, templateImage, templateQuad, updateType, params)
		if err != nil {
			return nil, err
		}
		return &SampledTrackerAdapter{tracker: t, updateType: updateType, verifyParams: verifyParams, lastConfidence: 1.0}, nil
	}
}

func (a *SampledTrackerAdapter) Update(image gocv.Mat) error {
	if err := a.tracker.Update(image, a.updateType); err != nil {
		return err
	}
	_, numSimilar, numSamples, err := a.tracker.Verify(image, a.verifyParams)
	if err != nil {
		return err
	}
	if numSamples > 0 {
		a.lastConfidence = float64(numSimilar) / float64(numSamples)
	}
	return nil
}

// NewSampledTracker6DoF returns a TrackerConstructor backing every
// spawned marker with the planar-6dof variant of the sampled tracker,
// bootstrapped from camera intrinsics and the marker's physical width
// instead of the template quad alone.
func NewSampledTracker6DoF(intrinsics sampledtracker.Intrinsics, markerWidthMM float64, params sampledtracker.Params, verifyParams sampledtracker.VerifyParams) TrackerConstructor {
	return func(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral) (Tracker, error) {
		t, err := sampledtracker.NewPlanar6DoF(a, templateImage, templateQuad, intrinsics, markerWidthMM, params)
		if err != nil {
			return nil, err
		}
		return &SampledTrackerAdapter{tracker: t, updateType: transform.Projective, verifyParams: verifyParams, lastConfidence: 1.0}, nil
	}
}

func (a *SampledTrackerAdapter) Transformation() transform.PlanarTransformation {
	return a.tracker.Transformation()
}
func (a *SampledTrackerAdapter) IsValid() bool        { return a.tracker.IsValid() }
func (a *SampledTrackerAdapter) Confidence() float64 { return a.lastConfidence }
