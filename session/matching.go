package session

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/fiducial"
	"github.com/anki-vision/planartrack/internal/scipy"
)

// buildDistanceMatrix computes the quad-centroid euclidean distance
// (distances.go's MeanEuclidean, specialized to a quad's four corners
// collapsed to one centroid point) between every detection and every
// live marker, via scipy.Cdist — the same pairwise-distance primitive
// the teacher's distances.go built its per-keypoint metrics on top of.
func buildDistanceMatrix(detections []fiducial.Detection, markers []*Marker) *mat.Dense {
	rows, cols := len(detections), len(markers)
	if rows == 0 || cols == 0 {
		return mat.NewDense(rows, cols, nil)
	}

	detCentroids := mat.NewDense(rows, 2, nil)
	for i, det := range detections {
		c := det.Quad.Centroid()
		detCentroids.SetRow(i, []float64{c.X, c.Y})
	}
	markerCentroids := mat.NewDense(cols, 2, nil)
	for j, m := range markers {
		c := m.LastQuad().Centroid()
		markerCentroids.SetRow(j, []float64{c.X, c.Y})
	}

	return scipy.Cdist(detCentroids, markerCentroids, "euclidean")
}

// matchDetectionsAndMarkers performs the same greedy minimum-distance
// matching as matching.go's MatchDetectionsAndObjects: repeatedly take
// the global minimum, record it as a match, invalidate its row and
// column, and repeat until the remaining minimum exceeds
// distanceThreshold. Simpler than an optimal (Hungarian) assignment, but
// matches the teacher's own choice for this same association problem.
func matchDetectionsAndMarkers(distanceMatrix *mat.Dense, distanceThreshold float64) (detIndices, markerIndices []int) {
	rows, cols := distanceMatrix.Dims()
	if rows == 0 || cols == 0 {
		return nil, nil
	}

	m := mat.DenseCopyOf(distanceMatrix)
	invalid := distanceThreshold + 1.0

	for {
		minVal, minRow, minCol := minEntry(m)
		if minVal >= distanceThreshold {
			break
		}
		detIndices = append(detIndices, minRow)
		markerIndices = append(markerIndices, minCol)

		for c := 0; c < cols; c++ {
			m.Set(minRow, c, invalid)
		}
		for r := 0; r < rows; r++ {
			m.Set(r, minCol, invalid)
		}
	}

	return detIndices, markerIndices
}

func minEntry(m *mat.Dense) (value float64, row, col int) {
	rows, cols := m.Dims()
	value = math.Inf(1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if v < value {
				value, row, col = v, r, c
			}
		}
	}
	return value, row, col
}
