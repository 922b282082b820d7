// Package config loads the tuning parameters for every tracker/detector
// named in spec.md §4 from an ini file, following the teacher's
// video.go (VideoFromFrames reading seqinfo.ini via gopkg.in/ini.v1)
// rather than introducing flags for every knob.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/anki-vision/planartrack/component"
	"github.com/anki-vision/planartrack/edge"
	"github.com/anki-vision/planartrack/edgetracker"
	"github.com/anki-vision/planartrack/fiducial"
	"github.com/anki-vision/planartrack/lkpyramid"
	"github.com/anki-vision/planartrack/sampledtracker"
	"github.com/anki-vision/planartrack/session"
)

// Variant selects which of §4.3–§4.5's tracker implementations a run uses.
type Variant string

const (
	EdgeVariant      Variant = "edge"
	LKPyramidVariant Variant = "lkpyramid"
	SampledVariant   Variant = "sampled"
)

// Config is the full set of tuning knobs for one run of the tracking
// core: which tracker variant to use, its init/update/verify parameters,
// the fiducial detector's parameters, and the session lifecycle config.
type Config struct {
	Variant Variant

	Edge       edge.Params
	EdgeInit   edgetracker.InitParams
	EdgeUpdate edgetracker.UpdateParams

	LKPyramid       lkpyramid.Params
	LKPyramidVerify lkpyramid.VerifyParams

	Sampled       sampledtracker.Params
	SampledVerify sampledtracker.VerifyParams

	Fiducial fiducial.Params

	Session session.Config
}

// Default returns the configuration this package ships with a run if no
// ini file overrides it — reasonable starting points for every §4
// parameter, not claims about optimal tuning.
func Default() Config {
	return Config{
		Variant: EdgeVariant,
		Edge: edge.Params{
			Mode:                 edge.Grayvalue,
			CombHalfWidth:        1,
			CombResponseThreshold: 10,
			MinComponentWidth:    2,
			EveryNLines:          1,
			MaxDetectionsPerType: 0,
		},
		EdgeInit: edgetracker.InitParams{
			EdgeParams:                edge.Params{Mode: edge.Grayvalue, EveryNLines: 1},
			BlackPercentile:           0.1,
			WhitePercentile:           0.9,
			VerifyCoordinateIncrement: 4,
		},
		EdgeUpdate: edgetracker.UpdateParams{
			EdgeParams:                         edge.Params{Mode: edge.Grayvalue, EveryNLines: 1},
			MatchingMaxTranslationDistance:     5,
			MatchingMaxProjectiveDistance:      10,
			VerificationMaxTranslationDistance: 3,
			Strategy:                           edgetracker.Direct,
			RANSACReprojThreshold:              3.0,
			RANSACMaxIterations:                500,
			RANSACConfidence:                   0.99,
			MaxPixelDifference:                 30,
		},
		LKPyramid: lkpyramid.Params{
			NumLevels:             3,
			MaxIterationsPerLevel: 10,
			ConvergenceTolerance:  0.1,
			SampleStride:          1,
		},
		LKPyramidVerify: lkpyramid.VerifyParams{MaxPixelDifference: 30},
		Sampled: sampledtracker.Params{
			NumLevels:             3,
			BaseSampleCount:       400,
			SelectionBins:         32,
			MaxIterationsPerLevel: 10,
			ConvergenceTolerance:  0.1,
		},
		SampledVerify: sampledtracker.VerifyParams{MaxPixelDifference: 30},
		Fiducial: fiducial.Params{
			NumPyramidLevels:              3,
			AdaptiveThresholdBlockSize:    25,
			ScaleImageThresholdMultiplier: 1.2,
			MaxSkipDistance:               2,
			MinComponentWidth:             2,
			Filter: component.FilterParams{
				MinPixelCount: 50,
				MaxPixelCount: 0,
				MinSolidity:   component.NewQ23_8(0.8),
				MaxSolidity:   component.NewQ23_8(1.0),
				RequireHollow: true,
			},
			CornerMode:                    fiducial.LineFits,
			MinLaplacianPeakRatio:         0.3,
			MinQuadArea:                   100,
			QuadSymmetryThreshold:         2.0,
			MinDistanceFromImageEdge:      3,
			QuadRefinementIterations:      3,
			NumRefinementSamples:          16,
			QuadRefinementMinCornerChange: 0.05,
			QuadRefinementMaxCornerChange: 5.0,
			DecodeMinContrastRatio:        0.15,
			DecodeGrayThreshold:           128,
		},
		Session: session.Config{
			InitializationDelay: 2,
			InitialHitCounter:   1,
			HitCounterMax:       20,
			DistanceThreshold:   40,
			MinConfidence:       0.25,
		},
	}
}

// Load reads path as an ini file and overrides Default()'s fields
// section-by-section, matching video.go's MustInt/MustFloat64/MustString
// pattern of falling back to the existing value rather than erroring on
// a missing key.
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config: failed to load %s: %w", path, err)
	}

	if s := file.Section("Variant"); s != nil {
		cfg.Variant = Variant(s.Key("tracker").MustString(string(cfg.Variant)))
	}

	if s := file.Section("Edge"); s != nil {
		cfg.Edge.CombHalfWidth = s.Key("combHalfWidth").MustInt(cfg.Edge.CombHalfWidth)
		cfg.Edge.CombResponseThreshold = s.Key("combResponseThreshold").MustFloat64(cfg.Edge.CombResponseThreshold)
		cfg.Edge.MinComponentWidth = s.Key("minComponentWidth").MustInt(cfg.Edge.MinComponentWidth)
		cfg.Edge.EveryNLines = s.Key("everyNLines").MustInt(cfg.Edge.EveryNLines)
		cfg.Edge.MaxDetectionsPerType = s.Key("maxDetectionsPerType").MustInt(cfg.Edge.MaxDetectionsPerType)
	}

	if s := file.Section("EdgeTracker"); s != nil {
		cfg.EdgeInit.BlackPercentile = s.Key("blackPercentile").MustFloat64(cfg.EdgeInit.BlackPercentile)
		cfg.EdgeInit.WhitePercentile = s.Key("whitePercentile").MustFloat64(cfg.EdgeInit.WhitePercentile)
		cfg.EdgeInit.VerifyCoordinateIncrement = s.Key("verifyCoordinateIncrement").MustInt(cfg.EdgeInit.VerifyCoordinateIncrement)
		cfg.EdgeUpdate.MatchingMaxTranslationDistance = s.Key("matchingMaxTranslationDistance").MustInt(cfg.EdgeUpdate.MatchingMaxTranslationDistance)
		cfg.EdgeUpdate.MatchingMaxProjectiveDistance = s.Key("matchingMaxProjectiveDistance").MustInt(cfg.EdgeUpdate.MatchingMaxProjectiveDistance)
		cfg.EdgeUpdate.VerificationMaxTranslationDistance = s.Key("verificationMaxTranslationDistance").MustInt(cfg.EdgeUpdate.VerificationMaxTranslationDistance)
		cfg.EdgeUpdate.RANSACReprojThreshold = s.Key("ransacReprojThreshold").MustFloat64(cfg.EdgeUpdate.RANSACReprojThreshold)
		cfg.EdgeUpdate.RANSACMaxIterations = s.Key("ransacMaxIterations").MustInt(cfg.EdgeUpdate.RANSACMaxIterations)
		cfg.EdgeUpdate.RANSACConfidence = s.Key("ransacConfidence").MustFloat64(cfg.EdgeUpdate.RANSACConfidence)
		cfg.EdgeUpdate.MaxPixelDifference = s.Key("maxPixelDifference").MustFloat64(cfg.EdgeUpdate.MaxPixelDifference)
		switch s.Key("strategy").MustString("direct") {
		case "list":
			cfg.EdgeUpdate.Strategy = edgetracker.List
		case "ransac":
			cfg.EdgeUpdate.Strategy = edgetracker.RANSAC
		default:
			cfg.EdgeUpdate.Strategy = edgetracker.Direct
		}
	}

	if s := file.Section("LKPyramid"); s != nil {
		cfg.LKPyramid.NumLevels = s.Key("numLevels").MustInt(cfg.LKPyramid.NumLevels)
		cfg.LKPyramid.MaxIterationsPerLevel = s.Key("maxIterationsPerLevel").MustInt(cfg.LKPyramid.MaxIterationsPerLevel)
		cfg.LKPyramid.ConvergenceTolerance = s.Key("convergenceTolerance").MustFloat64(cfg.LKPyramid.ConvergenceTolerance)
		cfg.LKPyramid.SampleStride = s.Key("sampleStride").MustInt(cfg.LKPyramid.SampleStride)
		cfg.LKPyramidVerify.MaxPixelDifference = s.Key("maxPixelDifference").MustFloat64(cfg.LKPyramidVerify.MaxPixelDifference)
	}

	if s := file.Section("Sampled"); s != nil {
		cfg.Sampled.NumLevels = s.Key("numLevels").MustInt(cfg.Sampled.NumLevels)
		cfg.Sampled.BaseSampleCount = s.Key("baseSampleCount").MustInt(cfg.Sampled.BaseSampleCount)
		cfg.Sampled.SelectionBins = s.Key("selectionBins").MustInt(cfg.Sampled.SelectionBins)
		cfg.Sampled.MaxIterationsPerLevel = s.Key("maxIterationsPerLevel").MustInt(cfg.Sampled.MaxIterationsPerLevel)
		cfg.Sampled.ConvergenceTolerance = s.Key("convergenceTolerance").MustFloat64(cfg.Sampled.ConvergenceTolerance)
		cfg.SampledVerify.MaxPixelDifference = s.Key("maxPixelDifference").MustFloat64(cfg.SampledVerify.MaxPixelDifference)
	}

	if s := file.Section("Fiducial"); s != nil {
		cfg.Fiducial.NumPyramidLevels = s.Key("numPyramidLevels").MustInt(cfg.Fiducial.NumPyramidLevels)
		cfg.Fiducial.AdaptiveThresholdBlockSize = s.Key("adaptiveThresholdBlockSize").MustInt(cfg.Fiducial.AdaptiveThresholdBlockSize)
		cfg.Fiducial.ScaleImageThresholdMultiplier = s.Key("scaleImageThresholdMultiplier").MustFloat64(cfg.Fiducial.ScaleImageThresholdMultiplier)
		cfg.Fiducial.MaxSkipDistance = s.Key("maxSkipDistance").MustInt(cfg.Fiducial.MaxSkipDistance)
		cfg.Fiducial.MinComponentWidth = s.Key("minComponentWidth").MustInt(cfg.Fiducial.MinComponentWidth)
		cfg.Fiducial.Filter.MinPixelCount = s.Key("minPixelCount").MustInt(cfg.Fiducial.Filter.MinPixelCount)
		cfg.Fiducial.Filter.MaxPixelCount = s.Key("maxPixelCount").MustInt(cfg.Fiducial.Filter.MaxPixelCount)
		cfg.Fiducial.Filter.MinSolidity = component.NewQ23_8(s.Key("minSolidity").MustFloat64(0.8))
		cfg.Fiducial.Filter.MaxSolidity = component.NewQ23_8(s.Key("maxSolidity").MustFloat64(1.0))
		cfg.Fiducial.Filter.RequireHollow = s.Key("requireHollow").MustBool(cfg.Fiducial.Filter.RequireHollow)
		if s.Key("cornerMode").MustString("lineFits") == "laplacianPeaks" {
			cfg.Fiducial.CornerMode = fiducial.LaplacianPeaks
		} else {
			cfg.Fiducial.CornerMode = fiducial.LineFits
		}
		cfg.Fiducial.MinLaplacianPeakRatio = s.Key("minLaplacianPeakRatio").MustFloat64(cfg.Fiducial.MinLaplacianPeakRatio)
		cfg.Fiducial.MinQuadArea = s.Key("minQuadArea").MustFloat64(cfg.Fiducial.MinQuadArea)
		cfg.Fiducial.QuadSymmetryThreshold = s.Key("quadSymmetryThreshold").MustFloat64(cfg.Fiducial.QuadSymmetryThreshold)
		cfg.Fiducial.MinDistanceFromImageEdge = s.Key("minDistanceFromImageEdge").MustFloat64(cfg.Fiducial.MinDistanceFromImageEdge)
		cfg.Fiducial.QuadRefinementIterations = s.Key("quadRefinementIterations").MustInt(cfg.Fiducial.QuadRefinementIterations)
		cfg.Fiducial.NumRefinementSamples = s.Key("numRefinementSamples").MustInt(cfg.Fiducial.NumRefinementSamples)
		cfg.Fiducial.QuadRefinementMinCornerChange = s.Key("quadRefinementMinCornerChange").MustFloat64(cfg.Fiducial.QuadRefinementMinCornerChange)
		cfg.Fiducial.QuadRefinementMaxCornerChange = s.Key("quadRefinementMaxCornerChange").MustFloat64(cfg.Fiducial.QuadRefinementMaxCornerChange)
		cfg.Fiducial.DecodeMinContrastRatio = s.Key("decodeMinContrastRatio").MustFloat64(cfg.Fiducial.DecodeMinContrastRatio)
		cfg.Fiducial.DecodeGrayThreshold = uint8(s.Key("decodeGrayThreshold").MustInt(int(cfg.Fiducial.DecodeGrayThreshold)))
	}

	if s := file.Section("Session"); s != nil {
		cfg.Session.InitializationDelay = s.Key("initializationDelay").MustInt(cfg.Session.InitializationDelay)
		cfg.Session.InitialHitCounter = s.Key("initialHitCounter").MustInt(cfg.Session.InitialHitCounter)
		cfg.Session.HitCounterMax = s.Key("hitCounterMax").MustInt(cfg.Session.HitCounterMax)
		cfg.Session.DistanceThreshold = s.Key("distanceThreshold").MustFloat64(cfg.Session.DistanceThreshold)
		cfg.Session.MinConfidence = s.Key("minConfidence").MustFloat64(cfg.Session.MinConfidence)
	}

	return cfg, nil
}
