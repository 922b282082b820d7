package edgetracker

import (
	"encoding/binary"
	"log"
	"math"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/edge"
	"github.com/anki-vision/planartrack/transform"
)

// pointsToMat converts a slice of float64 (x,y) pairs to the Nx1 2-channel
// float32 gocv.Mat gocv.FindHomography expects, the same conversion idiom
// camera_motion.go's matDenseToGocvMat uses for optical-flow point sets.
func pointsToMat(xs, ys []float64) gocv.Mat {
	data := make([]byte, len(xs)*8)
	for i := range xs {
		binary.LittleEndian.PutUint32(data[i*8:], math.Float32bits(float32(xs[i])))
		binary.LittleEndian.PutUint32(data[i*8+4:], math.Float32bits(float32(ys[i])))
	}
	m, err := gocv.NewMatFromBytes(len(xs), 1, gocv.MatTypeCV32FC2, data)
	if err != nil {
		return gocv.NewMat()
	}
	return m
}

// refineProjectiveRANSAC delegates the sample/score/refit loop spec.md
// §4.3 describes to gocv.FindHomography's built-in RANSAC estimator — the
// same call the teacher's HomographyTransformationGetter.Call makes for
// optical-flow point sets — fitting a homography from the zero-centered
// warped template points to their matched new-image points, then
// composing it into the tracker's transformation as a projective delta.
func (t *Tracker) refineProjectiveRANSAC(nextEdges *edge.EdgeLists, limits *edge.AllIndexLimits, params UpdateParams) error {
	corrs := t.allCorrespondences(nextEdges, limits, params.MatchingMaxProjectiveDistance)
	if len(corrs) < 16 {
		log.Printf("edgetracker: track lost, only %d RANSAC correspondences (need 16)", len(corrs))
		return nil
	}

	cx, cy := t.centerXY()
	srcX := make([]float64, len(corrs))
	srcY := make([]float64, len(corrs))
	dstX := make([]float64, len(corrs))
	dstY := make([]float64, len(corrs))
	for i, c := range corrs {
		srcX[i] = c.warpedX - cx
		srcY[i] = c.warpedY - cy
		dstX[i] = c.matchedX - cx
		dstY[i] = c.matchedY - cy
	}

	srcMat := pointsToMat(srcX, srcY)
	defer srcMat.Close()
	dstMat := pointsToMat(dstX, dstY)
	defer dstMat.Close()

	reprojThreshold := params.RANSACReprojThreshold
	if reprojThreshold <= 0 {
		reprojThreshold = 3.0
	}
	maxIters := params.RANSACMaxIterations
	if maxIters <= 0 {
		maxIters = 2000
	}
	confidence := params.RANSACConfidence
	if confidence <= 0 {
		confidence = 0.995
	}

	mask := gocv.NewMat()
	defer mask.Close()
	homographyMat := gocv.FindHomography(srcMat, dstMat, gocv.HomographyMethodRANSAC, reprojThreshold, &mask, maxIters, confidence)
	defer homographyMat.Close()

	if homographyMat.Empty() || homographyMat.Rows() != 3 || homographyMat.Cols() != 3 {
		log.Printf("edgetracker: RANSAC homography fit failed, leaving homography unchanged")
		return nil
	}

	var h [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = homographyMat.GetDoubleAt(r, c)
		}
	}
	// gocv.FindHomography returns the forward warped-image -> matched-point
	// homography H over srcMat/dstMat's correspondence direction; h-I is
	// the same delta-about-identity shape applyProjectiveCorrespondences
	// builds from accumulateNormalEquations' own warped-coordinate
	// linearization, so it goes through the identical
	// t.transformation.Update(delta, 1, transform.Projective) call as the
	// Direct/List paths — RANSAC's composition direction matches theirs.
	delta := []float64{
		h[0] - 1, h[1], h[2],
		h[3], h[4] - 1, h[5],
		h[6], h[7],
	}
	return t.transformation.Update(delta, 1, transform.Projective)
}
