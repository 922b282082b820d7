package fiducial

import "gocv.io/x/gocv"

// binarize normalizes image against a local box-filtered neighborhood
// (spec.md §4.6 step 2: "box-filter normalization against a local
// neighborhood scaled by scaleImage_thresholdMultiplier"), the exact
// concern gocv.AdaptiveThreshold's mean-adaptive method covers, so it is
// used directly rather than hand-rolling the box filter and subtraction.
// thresholdMultiplier maps onto AdaptiveThreshold's constant-subtracted
// term C: a multiplier of 1.0 subtracts nothing (C=0); values above 1
// bias the threshold darker (foreground = dark pixels, matching the
// fiducial marker's black-on-white convention), below 1 lighter.
func binarize(image gocv.Mat, blockSize int, thresholdMultiplier float64) gocv.Mat {
	if blockSize < 3 {
		blockSize = 15
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	c := (thresholdMultiplier - 1.0) * 64.0

	dst := gocv.NewMat()
	gocv.AdaptiveThreshold(image, &dst, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, blockSize, c)
	return dst
}
