package operator

import "testing"

func TestRotatingMapLookupAcrossGenerations(t *testing.T) {
	m := NewRotatingMap[int64, string](0)
	m.Put(1, "a")
	m.Rotate()
	m.Put(2, "b")

	if v, ok := m.Get(1); !ok || v != "a" {
		t.Errorf("Get(1) = %q, %v, want %q, true", v, ok, "a")
	}
	if v, ok := m.Get(2); !ok || v != "b" {
		t.Errorf("Get(2) = %q, %v, want %q, true", v, ok, "b")
	}

	m.Rotate()
	if _, ok := m.Get(1); ok {
		t.Error("Get(1) found after two rotations, want evicted")
	}
	if v, ok := m.Get(2); !ok || v != "b" {
		t.Errorf("Get(2) = %q, %v, want %q, true after one rotation", v, ok, "b")
	}
}

func TestRotatingMapAutoRotatesAtCeiling(t *testing.T) {
	m := NewRotatingMap[int, int](2)
	m.Put(1, 10)
	m.Put(2, 20)
	// Third distinct key exceeds the ceiling: auto-rotate before insert.
	m.Put(3, 30)

	if _, ok := m.Get(1); !ok {
		t.Error("Get(1) missing, want present in old generation after auto-rotate")
	}
	if v, ok := m.Get(3); !ok || v != 30 {
		t.Errorf("Get(3) = %v, %v, want 30, true", v, ok)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (2 old + 1 current)", m.Len())
	}
}

func TestRotatingMapPutOverwritesCurrent(t *testing.T) {
	m := NewRotatingMap[string, int](0)
	m.Put("x", 1)
	m.Put("x", 2)
	if v, ok := m.Get("x"); !ok || v != 2 {
		t.Errorf("Get(x) = %v, %v, want 2, true", v, ok)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}
