// Package transform implements PlanarTransformation, the homography
// abstraction every tracker variant shares: composing incremental updates,
// warping points/quads/images, and (de)serializing to the wire format
// described by spec.md §4.1/§6. It is grounded on
// coretech/vision/robot/transformations.h's PlanarTransformation_f32 class,
// adapted to Go idiom the way camera_motion.go adapts gocv/gonum matrix
// plumbing in the teacher repo.
package transform

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
)

// TransformType is the degrees of freedom of a planar transformation. The
// low byte is reserved; the upper byte, shifted right by 8, is the
// parameter count — mirroring transformations.h's TransformType encoding,
// which doubles as an ordering: a PROJECTIVE transformation may be updated
// with an AFFINE or TRANSLATION delta, never the reverse.
type TransformType int32

const (
	Unknown     TransformType = 0x0000
	Translation TransformType = 0x0200
	Affine      TransformType = 0x0600
	Projective  TransformType = 0x0800
)

// ParamCount returns the number of free parameters an update of this type
// carries.
func (t TransformType) ParamCount() int { return int(t) >> 8 }

func (t TransformType) String() string {
	switch t {
	case Translation:
		return "TRANSLATION"
	case Affine:
		return "AFFINE"
	case Projective:
		return "PROJECTIVE"
	default:
		return "UNKNOWN"
	}
}

// PlanarTransformation holds a 3x3 homography mapping a canonical marker
// frame into the current image, plus the bookkeeping every tracker needs
// to warp points through it. Its homography storage is owned by the arena
// that constructed it, per spec.md §3's ownership invariant.
type PlanarTransformation struct {
	arena                        *arena.Arena
	isValid                      bool
	transformType                TransformType
	homography                   []float64 // row-major 3x3, owned by arena
	initialCorners               geom.Quadrilateral
	initialPointsAreZeroCentered bool
	centerOffset                 geom.Point
}

// Option configures an optional construction parameter of New.
type Option func(*PlanarTransformation)

// WithHomography seeds the transformation with an explicit 3x3 homography
// (row-major, 9 values) instead of the identity.
func WithHomography(h []float64) Option {
	return func(p *PlanarTransformation) {
		if len(h) != 9 {
			return
		}
		copy(p.homography, h)
	}
}

// WithCenterOffset overrides the default center offset (the initial quad's
// centroid).
func WithCenterOffset(c geom.Point) Option {
	return func(p *PlanarTransformation) { p.centerOffset = c }
}

// WithZeroCenteredPoints marks the initial points as already expressed in
// the zero-centered frame, suppressing re-centering — used by the
// planar-6dof sampled tracker variant, whose points originate from a
// calibrated camera frame rather than an image crop.
func WithZeroCenteredPoints(v bool) Option {
	return func(p *PlanarTransformation) { p.initialPointsAreZeroCentered = v }
}

var identity9 = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// New constructs a PlanarTransformation of the given type and initial
// corners, with an identity homography unless WithHomography overrides it.
// The homography's backing storage is allocated from a, and lives as long
// as a does.
func New(a *arena.Arena, transformType TransformType, initialCorners geom.Quadrilateral, opts ...Option) (*PlanarTransformation, error) {
	if a == nil {
		return nil, status.New(status.FailInvalidParameters, "New: nil arena")
	}
	hom, err := a.AllocFloat64(9)
	if err != nil {
		return nil, err
	}
	copy(hom, identity9[:])

	p := &PlanarTransformation{
		arena:          a,
		isValid:        true,
		transformType:  transformType,
		homography:     hom,
		initialCorners: initialCorners,
		centerOffset:   initialCorners.Centroid(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, p.normalize()
}

// IsValid reports whether the transformation was successfully constructed
// and has not since failed a numerical operation.
func (p *PlanarTransformation) IsValid() bool { return p != nil && p.isValid }

// TransformType returns the transformation's declared degrees of freedom.
func (p *PlanarTransformation) TransformType() TransformType { return p.transformType }

// Homography returns the current 3x3 homography, row-major, as a copy —
// callers that want a stable snapshot get one; the live array is mutated
// only by Update/SetHomography/Set.
func (p *PlanarTransformation) Homography() []float64 {
	out := make([]float64, 9)
	copy(out, p.homography)
	return out
}

// SetHomography replaces the homography with h (9 row-major values) and
// renormalizes.
func (p *PlanarTransformation) SetHomography(h []float64) error {
	if len(h) != 9 {
		return status.New(status.FailInvalidSize, "SetHomography: expected 9 values, got %d", len(h))
	}
	copy(p.homography, h)
	return p.normalize()
}

// InitialCorners returns the reference quadrilateral fixed at construction.
func (p *PlanarTransformation) InitialCorners() geom.Quadrilateral { return p.initialCorners }

// CenterOffset returns the center offset, scaled by 1/scale to express it
// in the caller's working resolution.
func (p *PlanarTransformation) CenterOffset(scale float64) geom.Point {
	if scale == 0 {
		scale = 1
	}
	return p.centerOffset.Scale(1 / scale)
}

// SetCenterOffset overrides the center offset.
func (p *PlanarTransformation) SetCenterOffset(c geom.Point) { p.centerOffset = c }

// InitialPointsAreZeroCentered reports whether the initial points are
// already expressed in the zero-centered frame.
func (p *PlanarTransformation) InitialPointsAreZeroCentered() bool {
	return p.initialPointsAreZeroCentered
}

// SetInitialPointsAreZeroCentered sets the flag above.
func (p *PlanarTransformation) SetInitialPointsAreZeroCentered(v bool) {
	p.initialPointsAreZeroCentered = v
}

// Set copies other's type, homography, corners and offset into p, leaving
// each object's own arena-owned storage in place (only values move).
func (p *PlanarTransformation) Set(other *PlanarTransformation) error {
	if other == nil || !other.isValid {
		return status.New(status.FailInvalidObject, "Set: source transformation is invalid")
	}
	if len(p.homography) != len(other.homography) {
		return status.New(status.FailInvalidSize, "Set: homography size mismatch")
	}
	copy(p.homography, other.homography)
	p.transformType = other.transformType
	p.initialCorners = other.initialCorners
	p.initialPointsAreZeroCentered = other.initialPointsAreZeroCentered
	p.centerOffset = other.centerOffset
	p.isValid = true
	return nil
}

// normalize rescales the homography so homography[2][2] == 1, the
// invariant spec.md §8 demands after every mutation.
func (p *PlanarTransformation) normalize() error {
	const eps = 1e-12
	bottomRight := p.homography[8]
	if math.Abs(bottomRight) < eps {
		p.isValid = false
		return status.New(status.Fail, "normalize: homography[2][2] is degenerate (%g)", bottomRight)
	}
	for i := range p.homography {
		p.homography[i] /= bottomRight
	}
	return nil
}

// TransformPoints warps xIn/yIn through the current homography into
// caller-preallocated xOut/yOut. scale decouples the resolution the points
// are expressed in from the homography's own (base) resolution: inputs and
// outputs are both read/written in the "scale" resolution, with the
// homography itself always applied at base resolution.
func (p *PlanarTransformation) TransformPoints(xIn, yIn []float64, scale float64, inputPointsAreZeroCentered, outputPointsAreZeroCentered bool, xOut, yOut []float64) error {
	if !p.isValid {
		return status.New(status.FailInvalidObject, "TransformPoints: invalid transformation")
	}
	n := len(xIn)
	if len(yIn) != n || len(xOut) != n || len(yOut) != n {
		return status.New(status.FailInvalidSize, "TransformPoints: xIn/yIn/xOut/yOut length mismatch")
	}
	if scale == 0 {
		return status.New(status.FailInvalidParameters, "TransformPoints: scale must be non-zero")
	}
	h := p.homography
	for i := 0; i < n; i++ {
		bx := xIn[i] * scale
		by := yIn[i] * scale
		if !inputPointsAreZeroCentered {
			bx -= p.centerOffset.X
			by -= p.centerOffset.Y
		}

		wx := h[0]*bx + h[1]*by + h[2]
		wy := h[3]*bx + h[4]*by + h[5]
		ww := h[6]*bx + h[7]*by + h[8]
		if ww == 0 {
			ww = 1e-12
		}
		px := wx / ww
		py := wy / ww

		if !outputPointsAreZeroCentered {
			px += p.centerOffset.X
			py += p.centerOffset.Y
		}
		xOut[i] = px / scale
		yOut[i] = py / scale
	}
	return nil
}

// TransformQuadrilateral is the 4-point convenience wrapper over
// TransformPoints, always shifting in/out of the non-zero-centered frame.
func (p *PlanarTransformation) TransformQuadrilateral(quad geom.Quadrilateral, scale float64) (geom.Quadrilateral, error) {
	xIn := make([]float64, 4)
	yIn := make([]float64, 4)
	for i, c := range quad.Corners {
		xIn[i], yIn[i] = c.X, c.Y
	}
	xOut := make([]float64, 4)
	yOut := make([]float64, 4)
	if err := p.TransformPoints(xIn, yIn, scale, false, false, xOut, yOut); err != nil {
		return geom.Quadrilateral{}, err
	}
	var out geom.Quadrilateral
	for i := range out.Corners {
		out.Corners[i] = geom.Point{X: xOut[i], Y: yOut[i]}
	}
	return out, nil
}

// TransformedCorners applies the current homography to the initial
// corners at scale 1, the "where is the marker now" query callers poll
// every frame.
func (p *PlanarTransformation) TransformedCorners() (geom.Quadrilateral, error) {
	return p.TransformQuadrilateral(p.initialCorners, 1)
}

// TransformedOrientation returns the angle, in (-pi, pi], of the vector
// from transformed corner 0 to transformed corner 1. Negative values are
// counter-clockwise rotation, positive clockwise, matching
// transformations.h's get_transformedOrientation convention.
func (p *PlanarTransformation) TransformedOrientation() (float64, error) {
	corners, err := p.TransformedCorners()
	if err != nil {
		return 0, err
	}
	dx := corners.Corners[1].X - corners.Corners[0].X
	dy := corners.Corners[1].Y - corners.Corners[0].Y
	return math.Atan2(dy, dx), nil
}

// buildDeltaMatrix assembles the 3x3 incremental homography (I + delta)
// from an update vector, per the shapes documented at transformations.h's
// Update: translation's 2 values, affine's 6 (around identity), and
// projective's 8 (identity perturbation, translation column pre-scaled).
func buildDeltaMatrix(t TransformType, delta []float64, scale float64) *mat.Dense {
	m := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	switch t {
	case Translation:
		m.Set(0, 2, scale*delta[0])
		m.Set(1, 2, scale*delta[1])
	case Affine:
		m.Set(0, 0, 1+delta[0])
		m.Set(0, 1, delta[1])
		m.Set(0, 2, scale*delta[2])
		m.Set(1, 0, delta[3])
		m.Set(1, 1, 1+delta[4])
		m.Set(1, 2, scale*delta[5])
	case Projective:
		m.Set(0, 0, 1+delta[0])
		m.Set(0, 1, delta[1])
		m.Set(0, 2, scale*delta[2])
		m.Set(1, 0, delta[3])
		m.Set(1, 1, 1+delta[4])
		m.Set(1, 2, scale*delta[5])
		m.Set(2, 0, delta[6])
		m.Set(2, 1, delta[7])
	}
	return m
}

// Update composes the current homography on the right with the inverse of
// the incremental homography built from delta: homography <- homography *
// inv(I + delta). updateType of Unknown reuses the object's own declared
// type. A numerical failure inverting delta is non-fatal per spec.md §7:
// it is logged and the homography is left untouched, returning nil (OK).
func (p *PlanarTransformation) Update(delta []float64, scale float64, updateType TransformType) error {
	if !p.isValid {
		return status.New(status.FailInvalidObject, "Update: invalid transformation")
	}
	if updateType == Unknown {
		updateType = p.transformType
	}
	if updateType.ParamCount() > p.transformType.ParamCount() {
		return status.New(status.FailInvalidParameters,
			"Update: update type %s exceeds transform type %s", updateType, p.transformType)
	}
	if len(delta) != updateType.ParamCount() {
		return status.New(status.FailInvalidSize,
			"Update: expected %d delta values for %s, got %d", updateType.ParamCount(), updateType, len(delta))
	}

	deltaMat := buildDeltaMatrix(updateType, delta, scale)
	var deltaInv mat.Dense
	if err := deltaInv.Inverse(deltaMat); err != nil {
		log.Printf("transform: numerical failure inverting update delta, leaving homography unchanged: %v", err)
		return nil
	}

	previous := make([]float64, 9)
	copy(previous, p.homography)

	h := mat.NewDense(3, 3, previous)
	var composed mat.Dense
	composed.Mul(h, &deltaInv)
	copy(p.homography, composed.RawMatrix().Data)
	if err := p.normalize(); err != nil {
		log.Printf("transform: numerical failure normalizing composed homography, leaving homography unchanged: %v", err)
		copy(p.homography, previous)
		p.isValid = true
		return nil
	}
	return nil
}
