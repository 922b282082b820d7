package arena

import "unsafe"

// bytesToFloat32 reinterprets the first n*4 bytes of raw as a []float32
// viewing the same backing storage — the arena's scratch buffers are
// reused in place across frames, so typed scratch slices must alias the
// byte buffer rather than copy out of it.
func bytesToFloat32(raw []byte, n int) []float32 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), n)
}

func bytesToInt32(raw []byte, n int) []int32 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&raw[0])), n)
}

func bytesToFloat64(raw []byte, n int) []float64 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&raw[0])), n)
}
