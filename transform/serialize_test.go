package transform

import (
	"bytes"
	"testing"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	a := arena.New(arena.CCM, 4096)
	quad := testQuad()
	p, err := New(a, Affine, quad, WithCenterOffset(geom.Point{X: 150, Y: 150}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Update([]float64{0.02, 0.01, 1.5, -0.01, 0.03, -2.5}, 1, Affine); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte(wireTag)) {
		t.Fatalf("expected serialized stream to start with tag %q", wireTag)
	}

	b := arena.New(arena.OffChip, 4096)
	got, err := Deserialize(&buf, b)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	wantH, gotH := p.Homography(), got.Homography()
	for i := range wantH {
		if !almostEqual(wantH[i], gotH[i], 1e-6) {
			t.Fatalf("homography index %d: want %g, got %g", i, wantH[i], gotH[i])
		}
	}
	if got.TransformType() != p.TransformType() {
		t.Fatalf("transform type mismatch: want %v, got %v", p.TransformType(), got.TransformType())
	}
	if got.IsValid() != p.IsValid() {
		t.Fatalf("validity mismatch: want %v, got %v", p.IsValid(), got.IsValid())
	}
	for i := range p.initialCorners.Corners {
		wc, gc := p.initialCorners.Corners[i], got.initialCorners.Corners[i]
		if !almostEqual(wc.X, gc.X, 1e-4) || !almostEqual(wc.Y, gc.Y, 1e-4) {
			t.Fatalf("corner %d mismatch: want %v, got %v", i, wc, gc)
		}
	}
}

func TestDeserializeRejectsBadTag(t *testing.T) {
	b := arena.New(arena.CCM, 1024)
	_, err := Deserialize(bytes.NewReader([]byte("not a valid tag at all!!")), b)
	if err == nil {
		t.Fatalf("expected error for bad tag")
	}
}
