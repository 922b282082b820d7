package transform

import (
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/status"
)

// invert returns the 3x3 inverse of the current homography and reports a
// numerical failure instead of an error, matching the
// numericalFailure-out-parameter convention transformations.h uses for
// ComputeHomographyFromQuad.
func (p *PlanarTransformation) invert() (inv []float64, numericalFailure bool) {
	h := mat.NewDense(3, 3, p.homography)
	var hInv mat.Dense
	if err := hInv.Inverse(h); err != nil {
		return nil, true
	}
	return hInv.RawMatrix().Data, false
}

// aliases reports whether a and b share the same backing pixel buffer.
func aliases(a, b gocv.Mat) bool {
	da, errA := a.DataPtrUint8()
	db, errB := b.DataPtrUint8()
	if errA != nil || errB != nil || len(da) == 0 || len(db) == 0 {
		return false
	}
	return &da[0] == &db[0]
}

// bilinearSampleU8 samples an 8-bit single-channel Mat at (x, y) using
// bilinear interpolation, reporting false when the 2x2 neighborhood falls
// outside the image.
func bilinearSampleU8(src gocv.Mat, rows, cols int, x, y float64) (uint8, bool) {
	if x < 0 || y < 0 || x > float64(cols-1) || y > float64(rows-1) {
		return 0, false
	}
	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= cols {
		x1 = cols - 1
	}
	if y1 >= rows {
		y1 = rows - 1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := float64(src.GetUCharAt(y0, x0))
	v01 := float64(src.GetUCharAt(y0, x1))
	v10 := float64(src.GetUCharAt(y1, x0))
	v11 := float64(src.GetUCharAt(y1, x1))

	top := v00*(1-fx) + v01*fx
	bottom := v10*(1-fx) + v11*fx
	return uint8(top*(1-fy) + bottom*fy + 0.5), true
}

// TransformArray warps src into dst using the inverse of the current
// homography: for every destination pixel it computes the corresponding
// source coordinate, bilinearly samples src, and writes the result. src
// and dst must not alias the same pixel buffer.
func (p *PlanarTransformation) TransformArray(src, dst gocv.Mat, scale float64) error {
	if !p.isValid {
		return status.New(status.FailInvalidObject, "TransformArray: invalid transformation")
	}
	if aliases(src, dst) {
		return status.New(status.FailAliasedMemory, "TransformArray: src and dst alias")
	}
	if scale == 0 {
		return status.New(status.FailInvalidParameters, "TransformArray: scale must be non-zero")
	}

	hInv, numericalFailure := p.invert()
	if numericalFailure {
		return status.New(status.Fail, "TransformArray: homography is not invertible")
	}

	dstRows, dstCols := dst.Rows(), dst.Cols()
	srcRows, srcCols := src.Rows(), src.Cols()

	for y := 0; y < dstRows; y++ {
		for x := 0; x < dstCols; x++ {
			bx := float64(x)*scale - p.centerOffset.X
			by := float64(y)*scale - p.centerOffset.Y

			wx := hInv[0]*bx + hInv[1]*by + hInv[2]
			wy := hInv[3]*bx + hInv[4]*by + hInv[5]
			ww := hInv[6]*bx + hInv[7]*by + hInv[8]
			if ww == 0 {
				continue
			}

			sx := (wx/ww + p.centerOffset.X) / scale
			sy := (wy/ww + p.centerOffset.Y) / scale

			v, ok := bilinearSampleU8(src, srcRows, srcCols, sx, sy)
			if !ok {
				continue
			}
			dst.SetUCharAt(y, x, v)
		}
	}
	return nil
}
