package sampledtracker

import (
	"encoding/binary"
	"log"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
	"github.com/anki-vision/planartrack/transform"
)

// Intrinsics is a calibrated pinhole camera's intrinsic parameters, the
// P3P bootstrap's other input alongside the marker's physical width.
type Intrinsics struct {
	FX, FY float64
	CX, CY float64
}

// pose6DoFSample is one sample's frozen pinhole-projection/rotation
// Jacobian, evaluated once at the bootstrap pose and angles and reused
// for the life of the track: row 0 is d(u)/d(pose), row 1 is d(v)/d(pose),
// each ordered (rx, ry, rz, tx, ty, tz), in base-resolution pixel units.
type pose6DoFSample struct {
	pinholeJac [2][6]float64
}

// pose6DoF holds the camera-pose parameterization backing a planar-6dof
// Tracker: the live 6-parameter estimate (3 Euler angles, 3 translations
// in millimeters) and, per pyramid level, every sample's frozen Jacobian.
type pose6DoF struct {
	intrinsics  Intrinsics
	angles      [3]float64
	translation [3]float64
	perLevel    [][]pose6DoFSample
}

// NewPlanar6DoF builds the planar-6dof variant of the sampled tracker:
// it bootstraps the template quad's camera pose with a P3P solve from
// intrinsics and the marker's known physical width, then — instead of
// fitting the usual 8-parameter homography delta — fits every subsequent
// Update in the 6-parameter pose space (3 Euler angles, 3 translations),
// rebuilding the full homography from the refined pose each iteration.
// Grounded on lucasKanade_SampledPlanar6dof.cpp's InitializeWithPose/
// UpdateTrack pair — the file's "Planar-6-DoF variant" spec.md §4.5 names.
func NewPlanar6DoF(a *arena.Arena, templateImage gocv.Mat, templateQuad geom.Quadrilateral, intrinsics Intrinsics, markerWidthMM float64, params Params) (*Tracker, error) {
	if a == nil {
		return nil, status.New(status.FailInvalidParameters, "NewPlanar6DoF: nil arena")
	}
	if markerWidthMM <= 0 {
		return nil, status.New(status.FailInvalidParameters, "NewPlanar6DoF: markerWidthMM must be positive")
	}
	if intrinsics.FX == 0 || intrinsics.FY == 0 {
		return nil, status.New(status.FailInvalidParameters, "NewPlanar6DoF: intrinsics.FX/FY must be non-zero")
	}
	if params.NumLevels < 1 {
		params.NumLevels = 1
	}
	if params.BaseSampleCount < 1 {
		params.BaseSampleCount = 200
	}
	if params.SelectionBins < 1 {
		params.SelectionBins = 64
	}

	rotation, translation, err := solveP3P(templateQuad, intrinsics, markerWidthMM)
	if err != nil {
		return nil, err
	}
	rx, ry, rz := extractEulerAngles(rotation)

	initialH, err := buildPoseHomography(intrinsics, rotation, translation)
	if err != nil {
		return nil, err
	}

	// WithZeroCenteredPoints: this variant's points come from a calibrated
	// camera frame, not a cropped template image, per transform.go's own
	// documented use of the flag.
	transformation, err := transform.New(a, transform.Projective, templateQuad,
		transform.WithHomography(initialH), transform.WithZeroCenteredPoints(true))
	if err != nil {
		return nil, err
	}

	levels, err := buildSampleLevels(templateImage, templateQuad, transformation, params)
	if err != nil {
		return nil, err
	}

	sides := templateQuad.SideLengths()
	avgSidePixels := (sides[0] + sides[1] + sides[2] + sides[3]) / 4
	if avgSidePixels <= 0 {
		return nil, status.New(status.FailInvalidParameters, "NewPlanar6DoF: degenerate templateQuad")
	}
	mmPerPixel := markerWidthMM / avgSidePixels

	partials := rotationPartials(rx, ry, rz)
	perLevel := make([][]pose6DoFSample, len(levels))
	for i, level := range levels {
		perLevel[i] = make([]pose6DoFSample, len(level.samples))
		for j, s := range level.samples {
			perLevel[i][j] = buildPose6DoFSample(s, mmPerPixel, intrinsics, rotation, translation, partials)
		}
	}

	return &Tracker{
		arenaRef:       a,
		levels:         levels,
		transformation: transformation,
		params:         params,
		isValid:        true,
		pose: &pose6DoF{
			intrinsics:  intrinsics,
			angles:      [3]float64{rx, ry, rz},
			translation: translation,
			perLevel:    perLevel,
		},
	}, nil
}

// buildPose6DoFSample combines the pinhole-projection partials (evaluated
// at the sample's bootstrap camera-frame position) with the
// rotation-matrix partials (evaluated at the bootstrap angles) via the
// chain rule, freezing the result for reuse every iteration — the
// "Jacobian combining pinhole-projection partials and rotation-matrix
// partials at the initial angles" spec.md §4.5 describes.
func buildPose6DoFSample(s TemplateSample, mmPerPixel float64, intrinsics Intrinsics, r0 [3][3]float64, t0 [3]float64, partials [3][3][3]float64) pose6DoFSample {
	p := [3]float64{s.X * mmPerPixel, s.Y * mmPerPixel, 0}
	pc := mat3Vec(r0, p)
	pc[0] += t0[0]
	pc[1] += t0[1]
	pc[2] += t0[2]
	zc := pc[2]
	if math.Abs(zc) < 1e-9 {
		zc = 1e-9
	}
	fx, fy := intrinsics.FX, intrinsics.FY

	var jac [2][6]float64
	for k := 0; k < 3; k++ {
		dPc := mat3Vec(partials[k], p)
		jac[0][k] = fx/zc*dPc[0] - fx*pc[0]/(zc*zc)*dPc[2]
		jac[1][k] = fy/zc*dPc[1] - fy*pc[1]/(zc*zc)*dPc[2]
	}
	jac[0][3] = fx / zc
	jac[0][4] = 0
	jac[0][5] = -fx * pc[0] / (zc * zc)
	jac[1][3] = 0
	jac[1][4] = fy / zc
	jac[1][5] = -fy * pc[1] / (zc * zc)

	return pose6DoFSample{pinholeJac: jac}
}

// updatePlanar6DoF is Update's planar-6dof counterpart: the same
// coarse-to-fine iterate-until-converged control flow, without the
// translation-only warm-up step, and each
// iteration solves the 6-parameter pose delta and pushes a rebuilt
// homography via SetHomography instead of composing a homography-space
// delta via Update.
func (t *Tracker) updatePlanar6DoF(nextImage gocv.Mat) error {
	maxIter := t.params.MaxIterationsPerLevel
	if maxIter < 1 {
		maxIter = 10
	}
	tol := t.params.ConvergenceTolerance
	if tol <= 0 {
		tol = 0.1
	}
	t.savedCorners = t.savedCorners[:0]

	current := nextImage.Clone()
	defer current.Close()

	pyramid := make([]gocv.Mat, len(t.levels))
	for i := range t.levels {
		if i == 0 {
			pyramid[i] = current.Clone()
			continue
		}
		down := gocv.NewMat()
		gocv.PyrDown(pyramid[i-1], &down, gocv.NewPoint(0, 0), gocv.BorderDefault)
		pyramid[i] = down
	}
	defer func() {
		for _, m := range pyramid {
			m.Close()
		}
	}()

	for levelIdx := len(t.levels) - 1; levelIdx >= 0; levelIdx-- {
		level := t.levels[levelIdx]
		samples := t.pose.perLevel[levelIdx]
		img := pyramid[len(t.levels)-1-levelIdx]

		for iter := 0; iter < maxIter; iter++ {
			numPoints, err := t.iteratePose6DoF(level, samples, img)
			if err != nil {
				return err
			}
			if numPoints < 16 {
				t.isValid = false
				log.Printf("sampledtracker: planar-6dof track lost at level scale %g, only %d samples in bounds", level.scale, numPoints)
				return nil
			}

			corners, err := t.transformation.TransformedCorners()
			if err != nil {
				return err
			}
			if t.hasConverged(corners, tol) {
				t.pushSavedCorners(corners)
				break
			}
			t.pushSavedCorners(corners)
		}
	}
	return nil
}

// iteratePose6DoF runs one Gauss-Newton step in pose space: accumulate
// AtA/Atb over level's samples using each sample's frozen Jacobian, solve
// for the 6-vector delta, subtract it from the current pose, and rebuild
// the homography from the refined (angles, translation).
func (t *Tracker) iteratePose6DoF(level sampleLevel, samples []pose6DoFSample, nextImg gocv.Mat) (numPoints int, err error) {
	AtA := mat.NewSymDense(6, nil)
	Atb := mat.NewVecDense(6, nil)

	rows, cols := nextImg.Rows(), nextImg.Cols()
	center := t.transformation.CenterOffset(level.scale)

	xIn := make([]float64, 1)
	yIn := make([]float64, 1)
	xOut := make([]float64, 1)
	yOut := make([]float64, 1)

	for i, s := range level.samples {
		xIn[0] = s.X/level.scale + center.X
		yIn[0] = s.Y/level.scale + center.Y
		if err := t.transformation.TransformPoints(xIn, yIn, level.scale, false, false, xOut, yOut); err != nil {
			continue
		}
		wx, wy := xOut[0], yOut[0]
		if wx < 0 || wy < 0 || wx >= float64(cols-1) || wy >= float64(rows-1) {
			continue
		}

		newGray, ok := bilinearSample(nextImg, wx, wy)
		if !ok {
			continue
		}
		diff := newGray - s.Gray

		// The pinhole/rotation Jacobian is in base-resolution pixel
		// units; the gradient was sampled at this level's resolution, so
		// their combination must be scaled down the same way
		// jacobianRow's homography-space counterpart is.
		pj := samples[i].pinholeJac
		var row [6]float64
		for k := 0; k < 6; k++ {
			row[k] = (s.GradX*pj[0][k] + s.GradY*pj[1][k]) / level.scale
		}

		for r := 0; r < 6; r++ {
			Atb.SetVec(r, Atb.AtVec(r)+row[r]*diff)
			for c := r; c < 6; c++ {
				AtA.SetSym(r, c, AtA.At(r, c)+row[r]*row[c])
			}
		}
		numPoints++
	}

	if numPoints < 16 {
		return numPoints, nil
	}

	var chol mat.Cholesky
	if !chol.Factorize(AtA) {
		log.Printf("sampledtracker: Cholesky breakdown in planar-6dof refine, leaving pose unchanged")
		return numPoints, nil
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, Atb); err != nil {
		log.Printf("sampledtracker: Cholesky solve failed in planar-6dof refine, leaving pose unchanged")
		return numPoints, nil
	}

	pose := t.pose
	for k := 0; k < 3; k++ {
		pose.angles[k] -= x.AtVec(k)
	}
	for k := 0; k < 3; k++ {
		pose.translation[k] -= x.AtVec(3 + k)
	}

	rotation := eulerToRotation(pose.angles[0], pose.angles[1], pose.angles[2])
	h, herr := buildPoseHomography(pose.intrinsics, rotation, pose.translation)
	if herr != nil {
		log.Printf("sampledtracker: planar-6dof homography rebuild failed, leaving pose unchanged: %v", herr)
		return numPoints, nil
	}
	return numPoints, t.transformation.SetHomography(h)
}

// solveP3P bootstraps the template quad's camera pose from its four
// corners, the marker's physical width, and camera intrinsics, via
// gocv.SolvePnP's P3P solver (exactly four correspondences, the same
// count OpenCV's P3P implementation needs to disambiguate its two
// solutions) followed by gocv.Rodrigues to recover the rotation matrix.
func solveP3P(templateQuad geom.Quadrilateral, intrinsics Intrinsics, markerWidthMM float64) (rotation [3][3]float64, translation [3]float64, err error) {
	halfWidth := markerWidthMM / 2
	objectPoints := [][3]float64{
		{-halfWidth, -halfWidth, 0},
		{halfWidth, -halfWidth, 0},
		{halfWidth, halfWidth, 0},
		{-halfWidth, halfWidth, 0},
	}
	imagePoints := make([][2]float64, 4)
	for i, c := range templateQuad.Corners {
		imagePoints[i] = [2]float64{c.X, c.Y}
	}

	objMat := objectPointsMat(objectPoints)
	defer objMat.Close()
	imgMat := imagePointsMat(imagePoints)
	defer imgMat.Close()
	cameraMat := cameraMatrixMat(intrinsics)
	defer cameraMat.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()

	rvec := gocv.NewMat()
	defer rvec.Close()
	tvec := gocv.NewMat()
	defer tvec.Close()

	if ok := gocv.SolvePnP(objMat, imgMat, cameraMat, distCoeffs, &rvec, &tvec, false, gocv.SolvePnPP3P); !ok {
		return rotation, translation, status.New(status.Fail, "solveP3P: SolvePnP failed to bootstrap a pose")
	}

	rmat := gocv.NewMat()
	defer rmat.Close()
	gocv.Rodrigues(rvec, &rmat)

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rotation[r][c] = rmat.GetDoubleAt(r, c)
		}
		translation[r] = tvec.GetDoubleAt(r, 0)
	}
	return rotation, translation, nil
}

// buildPoseHomography assembles the homography a planar (Z=0) object
// induces under a pinhole camera at the given pose: H = K * [r1 r2 t],
// the first two rotation columns and the translation, normalized so
// H[2][2] == 1.
func buildPoseHomography(k Intrinsics, r [3][3]float64, t [3]float64) ([]float64, error) {
	m := [3][3]float64{
		{r[0][0], r[0][1], t[0]},
		{r[1][0], r[1][1], t[1]},
		{r[2][0], r[2][1], t[2]},
	}
	kMat := [3][3]float64{
		{k.FX, 0, k.CX},
		{0, k.FY, k.CY},
		{0, 0, 1},
	}
	h := mat3Mul(kMat, m)
	out := []float64{h[0][0], h[0][1], h[0][2], h[1][0], h[1][1], h[1][2], h[2][0], h[2][1], h[2][2]}
	if math.Abs(out[8]) < 1e-12 {
		return nil, status.New(status.Fail, "buildPoseHomography: degenerate homography")
	}
	for i := range out {
		out[i] /= out[8]
	}
	return out, nil
}

// extractEulerAngles recovers the (rx, ry, rz) angles of an XYZ-intrinsic
// rotation matrix R = Rz(rz)*Ry(ry)*Rx(rx), the inverse of
// eulerToRotation, folding the gimbal-lock case (|r[2][0]| ~ 1) into rz.
func extractEulerAngles(r [3][3]float64) (rx, ry, rz float64) {
	ry = math.Asin(clamp(-r[2][0], -1, 1))
	if math.Abs(r[2][0]) < 0.999999 {
		rx = math.Atan2(r[2][1], r[2][2])
		rz = math.Atan2(r[1][0], r[0][0])
	} else {
		rx = 0
		rz = math.Atan2(-r[0][1], r[1][1])
	}
	return rx, ry, rz
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// eulerToRotation builds R = Rz(rz) * Ry(ry) * Rx(rx).
func eulerToRotation(rx, ry, rz float64) [3][3]float64 {
	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)

	rX := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	rY := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	rZ := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	return mat3Mul(mat3Mul(rZ, rY), rX)
}

const angleJacobianEps = 1e-5

// rotationPartials returns d(R)/d(rx), d(R)/d(ry), d(R)/d(rz), each by
// central finite difference, evaluated once at the given angles and
// frozen for the life of the track — spec.md §4.5's "rotation-matrix
// partials at the initial angles".
func rotationPartials(rx, ry, rz float64) [3][3][3]float64 {
	base := [3]float64{rx, ry, rz}
	var partials [3][3][3]float64
	for k := 0; k < 3; k++ {
		plus, minus := base, base
		plus[k] += angleJacobianEps
		minus[k] -= angleJacobianEps
		rPlus := eulerToRotation(plus[0], plus[1], plus[2])
		rMinus := eulerToRotation(minus[0], minus[1], minus[2])
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				partials[k][i][j] = (rPlus[i][j] - rMinus[i][j]) / (2 * angleJacobianEps)
			}
		}
	}
	return partials
}

func mat3Mul(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func mat3Vec(r [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		r[0][0]*v[0] + r[0][1]*v[1] + r[0][2]*v[2],
		r[1][0]*v[0] + r[1][1]*v[1] + r[1][2]*v[2],
		r[2][0]*v[0] + r[2][1]*v[1] + r[2][2]*v[2],
	}
}

// objectPointsMat converts 3-D object points to the Nx1 3-channel
// float32 gocv.Mat gocv.SolvePnP expects.
func objectPointsMat(pts [][3]float64) gocv.Mat {
	data := make([]byte, len(pts)*12)
	for i, p := range pts {
		binary.LittleEndian.PutUint32(data[i*12:], math.Float32bits(float32(p[0])))
		binary.LittleEndian.PutUint32(data[i*12+4:], math.Float32bits(float32(p[1])))
		binary.LittleEndian.PutUint32(data[i*12+8:], math.Float32bits(float32(p[2])))
	}
	m, err := gocv.NewMatFromBytes(len(pts), 1, gocv.MatTypeCV32FC3, data)
	if err != nil {
		return gocv.NewMat()
	}
	return m
}

// imagePointsMat converts 2-D image points to the Nx1 2-channel float32
// gocv.Mat gocv.SolvePnP expects, the same conversion edgetracker's
// pointsToMat uses for gocv.FindHomography.
func imagePointsMat(pts [][2]float64) gocv.Mat {
	data := make([]byte, len(pts)*8)
	for i, p := range pts {
		binary.LittleEndian.PutUint32(data[i*8:], math.Float32bits(float32(p[0])))
		binary.LittleEndian.PutUint32(data[i*8+4:], math.Float32bits(float32(p[1])))
	}
	m, err := gocv.NewMatFromBytes(len(pts), 1, gocv.MatTypeCV32FC2, data)
	if err != nil {
		return gocv.NewMat()
	}
	return m
}

// cameraMatrixMat builds the 3x3 CV_64F camera matrix gocv.SolvePnP
// expects from a calibrated intrinsics struct.
func cameraMatrixMat(k Intrinsics) gocv.Mat {
	data := make([]byte, 9*8)
	vals := []float64{k.FX, 0, k.CX, 0, k.FY, k.CY, 0, 0, 1}
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	m, err := gocv.NewMatFromBytes(3, 3, gocv.MatTypeCV64F, data)
	if err != nil {
		return gocv.NewMat()
	}
	return m
}
