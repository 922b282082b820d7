// Package arena implements the bump-pointer scratch-memory discipline
// spec.md §5 requires: three arena kinds ("ccm", "onchip", "offchip"),
// bump allocation with an alignment quantum, and a lexical-scope guard
// that rewinds the bump pointer when a scope exits so temporary
// allocations vanish with it.
//
// No repository in the retrieval pack implements or wraps a bump-pointer
// arena allocator (gonum and gocv both allocate through the ordinary Go
// runtime / C++ new), and the ecosystem has no broadly-idiomatic
// equivalent library for this embedded pattern, so this package is
// standard-library only: a single []byte backing buffer plus an offset.
package arena

import "github.com/anki-vision/planartrack/status"

// Kind names the three arena sizes the core threads through every API,
// from smallest to largest.
type Kind int

const (
	CCM Kind = iota
	OnChip
	OffChip
)

func (k Kind) String() string {
	switch k {
	case CCM:
		return "ccm"
	case OnChip:
		return "onchip"
	case OffChip:
		return "offchip"
	default:
		return "unknown"
	}
}

// DefaultQuantum is the allocation alignment quantum in bytes.
const DefaultQuantum = 8

// Arena is a bump-pointer allocator over a single fixed-size backing
// buffer. Allocations are never individually freed; Release rewinds the
// bump pointer to a previously-recorded mark, discarding every
// allocation made since.
type Arena struct {
	kind    Kind
	buf     []byte
	offset  int
	quantum int
}

// New creates an Arena of the given kind and capacity, using the default
// alignment quantum.
func New(kind Kind, capacity int) *Arena {
	return NewWithQuantum(kind, capacity, DefaultQuantum)
}

// NewWithQuantum creates an Arena with an explicit alignment quantum.
func NewWithQuantum(kind Kind, capacity, quantum int) *Arena {
	if quantum <= 0 {
		quantum = 1
	}
	return &Arena{
		kind:    kind,
		buf:     make([]byte, capacity),
		quantum: quantum,
	}
}

// Kind returns the arena's kind.
func (a *Arena) Kind() Kind { return a.kind }

// Capacity returns the arena's total byte capacity.
func (a *Arena) Capacity() int { return len(a.buf) }

// Used returns the number of bytes currently allocated (the bump offset).
func (a *Arena) Used() int { return a.offset }

// Mark returns an opaque bump-pointer position that can later be passed
// to Release to discard everything allocated since. This is the "push
// the bump pointer on entry" half of the lexical scope macro spec.md §5
// describes.
func (a *Arena) Mark() int { return a.offset }

// Release rewinds the bump pointer to mark, discarding all allocations
// made since Mark was called. This is the "restore on scope exit" half.
func (a *Arena) Release(mark int) {
	if mark < 0 || mark > a.offset {
		return
	}
	a.offset = mark
}

// Scope runs fn with a fresh bump-pointer mark and always releases back
// to it afterward, regardless of how fn returns — the lexical scope
// guard for temporary allocations.
func (a *Arena) Scope(fn func(s *Arena)) {
	mark := a.Mark()
	defer a.Release(mark)
	fn(a)
}

// Alloc reserves n bytes, rounded up to the alignment quantum, and
// returns a slice viewing that region. It fails with FAIL_OUT_OF_MEMORY
// once the backing buffer is exhausted.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, status.New(status.FailInvalidSize, "negative allocation size %d", n)
	}
	aligned := ((n + a.quantum - 1) / a.quantum) * a.quantum
	if a.offset+aligned > len(a.buf) {
		return nil, status.New(status.FailOutOfMemory,
			"arena %s exhausted: requested %d (aligned %d), used %d/%d",
			a.kind, n, aligned, a.offset, len(a.buf))
	}
	out := a.buf[a.offset : a.offset+n : a.offset+aligned]
	a.offset += aligned
	return out, nil
}

// AllocFloat32 reserves n float32 values as a scratch slice.
func (a *Arena) AllocFloat32(n int) ([]float32, error) {
	raw, err := a.Alloc(n * 4)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32(raw, n), nil
}

// AllocFloat64 reserves n float64 values as a scratch slice.
func (a *Arena) AllocFloat64(n int) ([]float64, error) {
	raw, err := a.Alloc(n * 8)
	if err != nil {
		return nil, err
	}
	return bytesToFloat64(raw, n), nil
}

// AllocInt32 reserves n int32 values as a scratch slice.
func (a *Arena) AllocInt32(n int) ([]int32, error) {
	raw, err := a.Alloc(n * 4)
	if err != nil {
		return nil, err
	}
	return bytesToInt32(raw, n), nil
}

// NotAliased reports whether none of the given arenas share backing
// storage, the precondition every multi-arena entry point must check
// before proceeding (spec.md §5 "NotAliased precondition").
func NotAliased(arenas ...*Arena) bool {
	for i := 0; i < len(arenas); i++ {
		for j := i + 1; j < len(arenas); j++ {
			if sameBacking(arenas[i].buf, arenas[j].buf) {
				return false
			}
		}
	}
	return true
}

func sameBacking(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[0] == &b[0]
}
