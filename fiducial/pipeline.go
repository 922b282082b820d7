package fiducial

import (
	"image"
	"log"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/dtree"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
)

// Detect runs the full 11-step pipeline (spec.md §4.6) over image: build
// a pyramid, binarize and extract/assemble/filter components at each
// level, trace and fit quads, validate and refine them, then decode each
// surviving quad against tree. Every step's failure for one candidate is
// non-fatal to the others — that candidate is dropped; refinement
// divergence and decode failures are logged, the other drops are silent.
func Detect(a *arena.Arena, image gocv.Mat, tree *dtree.Tree, params Params) ([]Detection, error) {
	if a == nil || tree == nil {
		return nil, status.New(status.FailInvalidParameters, "Detect: nil arena or decision tree")
	}

	levels := buildPyramid(image, params.NumPyramidLevels)
	defer func() {
		for _, m := range levels {
			m.Close()
		}
	}()

	var detections []Detection
	for levelIdx, levelImg := range levels {
		scale := 1 << uint(levelIdx)

		binary := binarize(levelImg, params.AdaptiveThresholdBlockSize, params.ScaleImageThresholdMultiplier)
		segments := extractComponents(binary, params)

		rows, cols := levelImg.Rows(), levelImg.Cols()
		for _, id := range distinctComponentIDs(segments) {
			boundary := traceBoundary(segments, id, rows, cols)
			if len(boundary) == 0 {
				continue
			}

			quad, ok := extractQuad(boundary, params)
			if !ok {
				continue
			}

			if !validateQuad(quad, cols, rows, params) {
				continue
			}

			refined, ok := refineCorners(binary, quad, params)
			if !ok {
				log.Printf("fiducial: corner refinement diverged at level %d, dropping candidate", levelIdx)
				continue
			}
			if !validateQuad(refined, cols, rows, params) {
				continue
			}

			fullResQuad := scaleQuad(refined, float64(scale))

			markerType, homography, err := decode(a, image, fullResQuad, tree, params)
			if err != nil {
				log.Printf("fiducial: decode failed at level %d: %v", levelIdx, err)
				continue
			}

			detections = append(detections, Detection{
				Quad:         fullResQuad,
				MarkerType:   markerType,
				Homography:   homography,
				PyramidLevel: levelIdx,
			})
		}
		binary.Close()
	}

	return detections, nil
}

// Detect runs the pipeline using d's decision tree, for callers that
// prefer to carry the tree bundled with a Decoder value rather than
// threading it through every call.
func (d Decoder) Detect(a *arena.Arena, image gocv.Mat, params Params) ([]Detection, error) {
	return Detect(a, image, d.Tree, params)
}

func extractQuad(boundary []image.Point, params Params) (quad geom.Quadrilateral, ok bool) {
	if params.CornerMode == LineFits {
		return extractCornersLineFit(boundary)
	}
	return extractCornersLaplacian(boundary, params.MinLaplacianPeakRatio)
}

// scaleQuad maps a quad expressed in a downsampled pyramid level's pixel
// coordinates back to full resolution.
func scaleQuad(quad geom.Quadrilateral, scale float64) geom.Quadrilateral {
	out := quad
	for i := range out.Corners {
		out.Corners[i] = out.Corners[i].Scale(scale)
	}
	return out
}
