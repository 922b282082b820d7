package transform

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/status"
)

// wireTag is the fixed ASCII tag every serialized PlanarTransformation
// segment opens with, per spec.md §6.
const wireTag = "PlanarTransformation_f32"

// Serialize writes a length-prefixed, self-describing byte segment: the
// ASCII tag, a segment-length int32, the validity flag, the transform
// type, the homography (array header + 9 float32s), the initial corners
// (4x2 float32s), the center offset (2 float32s) and the zero-centered
// flag (1 byte) — all little-endian.
func (p *PlanarTransformation) Serialize(w io.Writer) error {
	var body bytes.Buffer

	var validity uint8
	if p.isValid {
		validity = 1
	}
	if err := binary.Write(&body, binary.LittleEndian, validity); err != nil {
		return status.New(status.Fail, "Serialize: validity flag: %v", err)
	}
	if err := binary.Write(&body, binary.LittleEndian, int32(p.transformType)); err != nil {
		return status.New(status.Fail, "Serialize: transform type: %v", err)
	}

	// Homography array header (rows, cols) followed by the 9 row-major
	// values, narrowed to float32 for the wire format.
	if err := binary.Write(&body, binary.LittleEndian, [2]int32{3, 3}); err != nil {
		return status.New(status.Fail, "Serialize: homography header: %v", err)
	}
	var hom32 [9]float32
	for i, v := range p.homography {
		hom32[i] = float32(v)
	}
	if err := binary.Write(&body, binary.LittleEndian, hom32); err != nil {
		return status.New(status.Fail, "Serialize: homography values: %v", err)
	}

	var corners32 [8]float32
	for i, c := range p.initialCorners.Corners {
		corners32[2*i] = float32(c.X)
		corners32[2*i+1] = float32(c.Y)
	}
	if err := binary.Write(&body, binary.LittleEndian, corners32); err != nil {
		return status.New(status.Fail, "Serialize: initial corners: %v", err)
	}

	centerOffset32 := [2]float32{float32(p.centerOffset.X), float32(p.centerOffset.Y)}
	if err := binary.Write(&body, binary.LittleEndian, centerOffset32); err != nil {
		return status.New(status.Fail, "Serialize: center offset: %v", err)
	}

	var zeroCentered uint8
	if p.initialPointsAreZeroCentered {
		zeroCentered = 1
	}
	if err := binary.Write(&body, binary.LittleEndian, zeroCentered); err != nil {
		return status.New(status.Fail, "Serialize: zero-centered flag: %v", err)
	}

	if _, err := io.WriteString(w, wireTag); err != nil {
		return status.New(status.Fail, "Serialize: tag: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(body.Len())); err != nil {
		return status.New(status.Fail, "Serialize: length prefix: %v", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return status.New(status.Fail, "Serialize: body: %v", err)
	}
	return nil
}

// Deserialize reads a segment written by Serialize and rebuilds a
// PlanarTransformation, with its homography allocated from a.
func Deserialize(r io.Reader, a *arena.Arena) (*PlanarTransformation, error) {
	tag := make([]byte, len(wireTag))
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: reading tag: %v", err)
	}
	if string(tag) != wireTag {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: bad tag %q", tag)
	}

	var segmentLen int32
	if err := binary.Read(r, binary.LittleEndian, &segmentLen); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: reading length prefix: %v", err)
	}
	body := make([]byte, segmentLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: reading body: %v", err)
	}
	br := bytes.NewReader(body)

	var validity uint8
	if err := binary.Read(br, binary.LittleEndian, &validity); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: validity flag: %v", err)
	}

	var transformType int32
	if err := binary.Read(br, binary.LittleEndian, &transformType); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: transform type: %v", err)
	}

	var header [2]int32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: homography header: %v", err)
	}
	if header[0] != 3 || header[1] != 3 {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: unexpected homography shape %dx%d", header[0], header[1])
	}

	var hom32 [9]float32
	if err := binary.Read(br, binary.LittleEndian, &hom32); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: homography values: %v", err)
	}

	var corners32 [8]float32
	if err := binary.Read(br, binary.LittleEndian, &corners32); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: initial corners: %v", err)
	}

	var centerOffset32 [2]float32
	if err := binary.Read(br, binary.LittleEndian, &centerOffset32); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: center offset: %v", err)
	}

	var zeroCentered uint8
	if err := binary.Read(br, binary.LittleEndian, &zeroCentered); err != nil {
		return nil, status.New(status.FailInvalidParameters, "Deserialize: zero-centered flag: %v", err)
	}

	hom, err := a.AllocFloat64(9)
	if err != nil {
		return nil, err
	}
	for i, v := range hom32 {
		hom[i] = float64(v)
	}

	var corners geom.Quadrilateral
	for i := range corners.Corners {
		corners.Corners[i] = geom.Point{X: float64(corners32[2*i]), Y: float64(corners32[2*i+1])}
	}

	return &PlanarTransformation{
		arena:                        a,
		isValid:                      validity != 0,
		transformType:                TransformType(transformType),
		homography:                   hom,
		initialCorners:               corners,
		initialPointsAreZeroCentered: zeroCentered != 0,
		centerOffset:                 geom.Point{X: float64(centerOffset32[0]), Y: float64(centerOffset32[1])},
	}, nil
}
