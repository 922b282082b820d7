package fiducial

import (
	"math"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/dtree"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

// decode computes the quad's homography (mapping the canonical unit
// square onto its corners) and runs the decision tree's Classify against
// it, checking the encoded-black/white contrast ratio spec.md §4.6 step
// 10 requires before accepting the decoded label.
func decode(a *arena.Arena, image gocv.Mat, quad geom.Quadrilateral, tree *dtree.Tree, params Params) (markerType int, homography []float64, err error) {
	// quad runs around the marker (TL, TR, BR, BL); ComputeHomographyFromQuad
	// takes corners in (0,0),(0,1),(1,0),(1,1) order, i.e. TL, BL, TR, BR.
	h, numericalFailure := transform.ComputeHomographyFromQuad(geom.NewQuadrilateral(
		quad.Corners[0], quad.Corners[3], quad.Corners[1], quad.Corners[2]))
	if numericalFailure {
		return 0, nil, status.New(status.Fail, "decode: quad produced a singular DLT system")
	}

	t, err := transform.New(a, transform.Projective, quad,
		transform.WithHomography(h),
		transform.WithCenterOffset(geom.Point{}),
		transform.WithZeroCenteredPoints(true))
	if err != nil {
		return 0, nil, err
	}

	ratio, err := contrastRatio(image, t, tree, params.DecodeGrayThreshold)
	if err != nil {
		return 0, nil, err
	}
	if ratio < params.DecodeMinContrastRatio {
		return 0, nil, status.New(status.Fail, "decode: contrast ratio %.3f below decode_minContrastRatio %.3f", ratio, params.DecodeMinContrastRatio)
	}

	label, err := tree.Classify(image, t, params.DecodeGrayThreshold)
	if err != nil {
		return 0, nil, err
	}
	return label, h, nil
}

// contrastRatio proxies spec.md §4.6 step 10's "contrast between
// encoded-black and encoded-white probes" by reusing the tree's own root
// probe-average (dtree.Tree.ProbeAverage): how far that average sits from
// the mid-gray decode threshold, normalized to [0,1]. A flat, washed-out
// patch (average near the threshold) yields a low ratio and fails the
// check before a spurious decode is attempted.
func contrastRatio(image gocv.Mat, t *transform.PlanarTransformation, tree *dtree.Tree, threshold uint8) (float64, error) {
	if len(tree.Nodes) == 0 {
		return 0, status.New(status.FailInvalidObject, "contrastRatio: empty decision tree")
	}
	avg, err := tree.ProbeAverage(image, t, tree.Nodes[0])
	if err != nil {
		return 0, err
	}
	return math.Abs(avg-float64(threshold)) / 128.0, nil
}
