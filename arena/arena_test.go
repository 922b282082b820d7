package arena

import "testing"

func TestAllocAndScopeRewinds(t *testing.T) {
	a := New(CCM, 64)
	mark := a.Mark()

	buf, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(buf))
	}
	if a.Used() == mark {
		t.Fatalf("expected Used() to advance past mark")
	}

	a.Scope(func(s *Arena) {
		if _, err := s.Alloc(32); err != nil {
			t.Fatalf("nested Alloc: %v", err)
		}
	})

	if a.Used() != 16 {
		t.Fatalf("expected Scope to rewind to 16, got %d", a.Used())
	}
}

func TestAllocOutOfMemory(t *testing.T) {
	a := New(OnChip, 8)
	if _, err := a.Alloc(16); err == nil {
		t.Fatalf("expected out-of-memory error")
	}
}

func TestNotAliased(t *testing.T) {
	a := New(CCM, 16)
	b := New(OnChip, 16)
	if !NotAliased(a, b) {
		t.Fatalf("expected distinct arenas to be not-aliased")
	}
	if !NotAliased(a) {
		t.Fatalf("expected single arena to be trivially not-aliased")
	}
}

func TestAllocFloat32Roundtrip(t *testing.T) {
	a := New(OffChip, 64)
	vals, err := a.AllocFloat32(4)
	if err != nil {
		t.Fatalf("AllocFloat32: %v", err)
	}
	for i := range vals {
		vals[i] = float32(i) * 1.5
	}
	for i, v := range vals {
		if v != float32(i)*1.5 {
			t.Fatalf("index %d: expected %f, got %f", i, float32(i)*1.5, v)
		}
	}
}
