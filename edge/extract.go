package edge

import "gocv.io/x/gocv"

// Extract runs edge detection over img per params.Mode, producing the four
// sorted edge-point lists.
func Extract(img gocv.Mat, params Params) *EdgeLists {
	if params.Mode == Derivative {
		return extractDerivative(img, params)
	}
	return extractGrayvalue(img, params)
}

// extractGrayvalue binarizes against params.Threshold and, scan-line by
// scan-line (and column by column), emits a transition edge wherever the
// preceding run of same-polarity pixels is at least MinComponentWidth
// long. Rows/columns are visited every EveryNLines-th line.
func extractGrayvalue(img gocv.Mat, params Params) *EdgeLists {
	e := newEdgeLists(img)
	stride := params.stride()
	minRun := params.MinComponentWidth
	if minRun < 1 {
		minRun = 1
	}
	capX := params.cap()
	capY := params.cap()

	width, height := img.Cols(), img.Rows()

	for y := 0; y < height; y += stride {
		runLen := 0
		wasLight := false
		for x := 0; x < width; x++ {
			light := img.GetUCharAt(y, x) >= params.Threshold
			if x > 0 && light != wasLight && runLen >= minRun {
				p := Point16{X: int16(x), Y: int16(y)}
				if light {
					e.XIncreasing = appendIfRoom(e.XIncreasing, p, capX)
				} else {
					e.XDecreasing = appendIfRoom(e.XDecreasing, p, capX)
				}
				runLen = 0
			}
			if x == 0 || light != wasLight {
				runLen = 1
			} else {
				runLen++
			}
			wasLight = light
		}
	}

	for x := 0; x < width; x += stride {
		runLen := 0
		wasLight := false
		for y := 0; y < height; y++ {
			light := img.GetUCharAt(y, x) >= params.Threshold
			if y > 0 && light != wasLight && runLen >= minRun {
				p := Point16{X: int16(x), Y: int16(y)}
				if light {
					e.YIncreasing = appendIfRoom(e.YIncreasing, p, capY)
				} else {
					e.YDecreasing = appendIfRoom(e.YDecreasing, p, capY)
				}
				runLen = 0
			}
			if y == 0 || light != wasLight {
				runLen = 1
			} else {
				runLen++
			}
			wasLight = light
		}
	}

	return e
}

// extractDerivative computes a first difference of half-width
// CombHalfWidth along each line; a local extremum whose magnitude exceeds
// CombResponseThreshold is an edge, its sign choosing increasing vs
// decreasing.
func extractDerivative(img gocv.Mat, params Params) *EdgeLists {
	e := newEdgeLists(img)
	stride := params.stride()
	half := params.CombHalfWidth
	if half < 1 {
		half = 1
	}
	capX := params.cap()
	capY := params.cap()
	width, height := img.Cols(), img.Rows()

	for y := 0; y < height; y += stride {
		prevResp := 0.0
		for x := half; x < width-half; x++ {
			resp := float64(img.GetUCharAt(y, x+half)) - float64(img.GetUCharAt(y, x-half))
			if isLocalExtremum(prevResp, resp, params.CombResponseThreshold) {
				p := Point16{X: int16(x), Y: int16(y)}
				if resp > 0 {
					e.XIncreasing = appendIfRoom(e.XIncreasing, p, capX)
				} else {
					e.XDecreasing = appendIfRoom(e.XDecreasing, p, capX)
				}
			}
			prevResp = resp
		}
	}

	for x := 0; x < width; x += stride {
		prevResp := 0.0
		for y := half; y < height-half; y++ {
			resp := float64(img.GetUCharAt(y+half, x)) - float64(img.GetUCharAt(y-half, x))
			if isLocalExtremum(prevResp, resp, params.CombResponseThreshold) {
				p := Point16{X: int16(x), Y: int16(y)}
				if resp > 0 {
					e.YIncreasing = appendIfRoom(e.YIncreasing, p, capY)
				} else {
					e.YDecreasing = appendIfRoom(e.YDecreasing, p, capY)
				}
			}
			prevResp = resp
		}
	}

	return e
}

// isLocalExtremum reports whether cur is an edge response: above
// threshold in magnitude and at least as large in magnitude as the
// preceding sample, a cheap one-pass stand-in for a true peak test.
func isLocalExtremum(prev, cur, threshold float64) bool {
	if abs(cur) <= threshold {
		return false
	}
	return abs(cur) >= abs(prev)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
