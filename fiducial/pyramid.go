package fiducial

import "gocv.io/x/gocv"

// buildPyramid repeatedly halves image via gocv.PyrDown, returning
// numLevels gocv.Mat values (index 0 is full resolution). Callers must
// Close every returned Mat.
func buildPyramid(image gocv.Mat, numLevels int) []gocv.Mat {
	if numLevels < 1 {
		numLevels = 1
	}
	levels := make([]gocv.Mat, numLevels)
	levels[0] = image.Clone()
	for i := 1; i < numLevels; i++ {
		down := gocv.NewMat()
		gocv.PyrDown(levels[i-1], &down, gocv.NewPoint(0, 0), gocv.BorderDefault)
		levels[i] = down
	}
	return levels
}
