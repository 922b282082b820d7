package fiducial

import "github.com/anki-vision/planartrack/geom"

// validateQuad applies spec.md §4.6 step 8's rejection tests in order:
// non-convex, too small, asymmetric side lengths, too close to the image
// border.
func validateQuad(quad geom.Quadrilateral, imageWidth, imageHeight int, params Params) bool {
	if !quad.IsConvex() {
		return false
	}
	if quad.Area() < params.MinQuadArea {
		return false
	}
	if quad.SymmetryRatio() > params.QuadSymmetryThreshold {
		return false
	}
	if quad.DistanceFromEdge(float64(imageWidth), float64(imageHeight)) < params.MinDistanceFromImageEdge {
		return false
	}
	return true
}
