// Package edgetracker implements the edge-based tracker: sparse, signed
// edge-crossing correspondence matching instead of raw-pixel Lucas-Kanade,
// trading precision for speed and illumination tolerance. Grounded on
// coretech/vision/include/anki/vision/robot/binaryTracker.h's
// BinaryTracker class.
package edgetracker

import (
	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/edge"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

// Strategy selects how the projective refine step fits its correspondence
// set, per spec.md §4.3 step 4.
type Strategy int

const (
	Direct Strategy = iota
	List
	RANSAC
)

// InitParams tunes template construction.
type InitParams struct {
	EdgeParams      edge.Params
	BlackPercentile float64 // e.g. 0.1
	WhitePercentile float64 // e.g. 0.9

	// VerifyCoordinateIncrement is the pixel stride Verify samples the
	// template's interior on, per spec.md §4.3 step 5. Defaults to 4.
	VerifyCoordinateIncrement int
}

// UpdateParams tunes one call to Update.
type UpdateParams struct {
	EdgeParams                         edge.Params // for the new frame; MaxDetectionsPerType is usually 2x the template's
	MatchingMaxTranslationDistance     int
	MatchingMaxProjectiveDistance      int
	VerificationMaxTranslationDistance int
	Strategy                           Strategy

	RANSACReprojThreshold float64
	RANSACMaxIterations   int
	RANSACConfidence      float64

	// MaxPixelDifference is the per-pixel |Δ| threshold an interior sample
	// must fall under to count toward numSimilarPixels in verify's
	// photometric check. Defaults to 40.
	MaxPixelDifference float64
}

// interiorSample is one template interior pixel used by verify's
// photometric check: its zero-centered template coordinate and grayvalue.
type interiorSample struct {
	x, y float64
	gray float64
}

// Tracker is an edge-based template tracker: a fixed set of template edge
// points plus the current PlanarTransformation mapping them into the
// latest frame.
type Tracker struct {
	arena *arena.Arena

	templateEdges     *edge.EdgeLists
	numTemplatePixels int
	interiorSamples   []interiorSample
	transformation    *transform.PlanarTransformation
	lastUsedThreshold uint8
	lastGrayThreshold uint8
	isValid           bool
}

// buildInteriorSamples grabs a grid of template pixels inside quad's
// bounding box (no point-in-quad test), every
// increment pixels, for verify's photometric check (spec.md §4.3 step 5:
// "sampled every verify_coordinateIncrement pixels").
func buildInteriorSamples(templateImage gocv.Mat, quad geom.Quadrilateral, increment int) []interiorSample {
	if increment < 1 {
		increment = 4
	}
	center := quad.Centroid()
	minC, maxC := quad.BoundingBox()
	rows, cols := templateImage.Rows(), templateImage.Cols()

	var samples []interiorSample
	for y := int(minC.Y); y <= int(maxC.Y); y += increment {
		if y < 0 || y >= rows {
			continue
		}
		for x := int(minC.X); x <= int(maxC.X); x += increment {
			if x < 0 || x >= cols {
				continue
			}
			samples = append(samples, interiorSample{
				x:    float64(x) - center.X,
				y:    float64(y) - center.Y,
				gray: float64(templateImage.GetUCharAt(y, x)),
			})
		}
	}
	return samples
}

// New constructs a Tracker from a template image and its reference quad,
// deriving a grayscale threshold from the percentile window inside the
// quad and extracting the template's edge lists.
func New(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral, params InitParams) (*Tracker, error) {
	if a == nil {
		return nil, status.New(status.FailInvalidParameters, "New: nil arena")
	}
	hist := edge.NewIntegerCounts(templateImage, templateQuad)
	blackV := hist.Percentile(params.BlackPercentile * 100)
	whiteV := hist.Percentile(params.WhitePercentile * 100)
	threshold := uint8((int(blackV) + int(whiteV)) / 2)

	ep := params.EdgeParams
	ep.Mode = edge.Grayvalue
	ep.Threshold = threshold
	templateEdges := edge.Extract(templateImage, ep)

	numPixels := len(templateEdges.XIncreasing) + len(templateEdges.XDecreasing) +
		len(templateEdges.YIncreasing) + len(templateEdges.YDecreasing)

	transformation, err := transform.New(a, transform.Projective, templateQuad)
	if err != nil {
		return nil, err
	}

	interiorSamples := buildInteriorSamples(templateImage, templateQuad, params.VerifyCoordinateIncrement)

	return &Tracker{
		arena:             a,
		templateEdges:     templateEdges,
		numTemplatePixels: numPixels,
		interiorSamples:   interiorSamples,
		transformation:    transformation,
		lastUsedThreshold: threshold,
		lastGrayThreshold: threshold,
		isValid:           true,
	}, nil
}

// IsValid reports whether the tracker was successfully constructed.
func (t *Tracker) IsValid() bool { return t != nil && t.isValid }

// NumTemplatePixels returns the total count of template edge points, the
// denominator against which Update's numMatches is judged.
func (t *Tracker) NumTemplatePixels() int { return t.numTemplatePixels }

// Transformation returns a value copy of the current PlanarTransformation
// state — "callers that want a stable snapshot... call get_transformation
// which returns a value copy" per spec.md §5.
func (t *Tracker) Transformation() transform.PlanarTransformation { return *t.transformation }

// SetTransformation overwrites the tracker's transformation.
func (t *Tracker) SetTransformation(p *transform.PlanarTransformation) error {
	return t.transformation.Set(p)
}

// UpdateTransformation applies a raw update vector directly, per
// transformations.h's documented delta shapes.
func (t *Tracker) UpdateTransformation(delta []float64, scale float64, updateType transform.TransformType) error {
	return t.transformation.Update(delta, scale, updateType)
}

// LastUsedGrayvalueThreshold returns the threshold used to binarize the
// most recently processed image.
func (t *Tracker) LastUsedGrayvalueThreshold() uint8 { return t.lastUsedThreshold }
