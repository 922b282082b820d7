package dtree

import (
	"encoding/binary"
	"testing"

	"gocv.io/x/gocv"

	"github.com/anki-vision/planartrack/arena"
	"github.com/anki-vision/planartrack/geom"
	"github.com/anki-vision/planartrack/transform"
)

// splitMat is bright on the left half, dark on the right, so a
// single-probe-offset root node can deterministically classify either
// side against a mid-gray threshold.
func splitMat(size int) gocv.Mat {
	m := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(200)
			if x >= size/2 {
				v = 40
			}
			m.SetUCharAt(y, x, v)
		}
	}
	return m
}

func identityTransform(t *testing.T, size float64) *transform.PlanarTransformation {
	t.Helper()
	a := arena.New(arena.CCM, 1<<16)
	quad := geom.NewQuadrilateral(
		geom.Point{X: 0, Y: 0},
		geom.Point{X: size, Y: 0},
		geom.Point{X: size, Y: size},
		geom.Point{X: 0, Y: size},
	)
	tr, err := transform.New(a, transform.Projective, quad, transform.WithCenterOffset(geom.Point{}))
	if err != nil {
		t.Fatalf("transform.New: %v", err)
	}
	return tr
}

func TestClassifyWalksTreeToCorrectLeaf(t *testing.T) {
	img := splitMat(40)
	defer img.Close()
	tr := identityTransform(t, 40)

	nodes := []Node{
		{ProbeXCenter: 10, ProbeYCenter: 20, LeftChildIndex: 1, Label: 0},
		{ProbeXCenter: 0, ProbeYCenter: 0, LeftChildIndex: 0, Label: leafFlag | 7},
		{ProbeXCenter: 0, ProbeYCenter: 0, LeftChildIndex: 0, Label: leafFlag | 3},
	}
	tree, err := New(nodes, []int16{0}, []int16{0}, 0, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	label, err := tree.Classify(img, tr, 128)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if label != 7 {
		t.Fatalf("expected leaf label 7 for a bright left-side probe, got %d", label)
	}

	nodes[0].ProbeXCenter = 30
	tree2, _ := New(nodes, []int16{0}, []int16{0}, 0, 4)
	label2, err := tree2.Classify(img, tr, 128)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if label2 != 3 {
		t.Fatalf("expected leaf label 3 for a dark right-side probe, got %d", label2)
	}
}

func TestDecodeNodesRoundTripsLittleEndianBuffer(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:], uint16(int16(-5)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(12)))
	binary.LittleEndian.PutUint16(buf[4:], 3)
	binary.LittleEndian.PutUint16(buf[6:], 0)
	binary.LittleEndian.PutUint16(buf[8:], 0)
	binary.LittleEndian.PutUint16(buf[10:], 0)
	binary.LittleEndian.PutUint16(buf[12:], 0)
	binary.LittleEndian.PutUint16(buf[14:], leafFlag|9)

	nodes, err := DecodeNodes(buf)
	if err != nil {
		t.Fatalf("DecodeNodes: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ProbeXCenter != -5 || nodes[0].ProbeYCenter != 12 || nodes[0].LeftChildIndex != 3 {
		t.Fatalf("unexpected decoded node 0: %+v", nodes[0])
	}
	if !nodes[1].IsLeaf() || nodes[1].LeafValue() != 9 {
		t.Fatalf("unexpected decoded node 1: %+v", nodes[1])
	}
}
