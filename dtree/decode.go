package dtree

import (
	"encoding/binary"

	"github.com/anki-vision/planartrack/status"
)

// nodeByteSize is the packed wire size of one Node record: two int16
// probe centers, a uint16 child index, and a uint16 label — spec.md §3's
// decision-tree wire format, little-endian per this module's other wire
// formats (see transform.Serialize).
const nodeByteSize = 8

// DecodeNodes unpacks a raw little-endian node buffer (as produced by the
// offline tree-training tool and shipped alongside the probe-offset
// tables) into a Node slice, the shape FiducialMarkerDecisionTree's
// constructor takes as its treeData buffer.
func DecodeNodes(data []byte) ([]Node, error) {
	if len(data)%nodeByteSize != 0 {
		return nil, status.New(status.FailInvalidSize, "DecodeNodes: buffer length %d is not a multiple of %d", len(data), nodeByteSize)
	}
	n := len(data) / nodeByteSize
	nodes := make([]Node, n)
	for i := 0; i < n; i++ {
		off := i * nodeByteSize
		nodes[i] = Node{
			ProbeXCenter:   int16(binary.LittleEndian.Uint16(data[off:])),
			ProbeYCenter:   int16(binary.LittleEndian.Uint16(data[off+2:])),
			LeftChildIndex: binary.LittleEndian.Uint16(data[off+4:]),
			Label:          binary.LittleEndian.Uint16(data[off+6:]),
		}
	}
	return nodes, nil
}

// DecodeOffsets unpacks a raw little-endian int16 offset buffer (the
// shared probeXOffsets/probeYOffsets arrays) into a slice.
func DecodeOffsets(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, status.New(status.FailInvalidSize, "DecodeOffsets: buffer length %d is not a multiple of 2", len(data))
	}
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out, nil
}
