package history

import "testing"

func TestRingAgeOrdering(t *testing.T) {
	r := New(4, 2)
	for i := 1; i <= 6; i++ {
		r.Submit([]float32{float32(i), float32(-i)})
	}

	// Submissions 3..6 survive; 6 is the newest.
	for age, want := range []float32{6, 5, 4, 3} {
		if got := r.At(age)[0]; got != want {
			t.Fatalf("age %d: got %f, want %f", age, got, want)
		}
	}
	if got := r.At(4)[0]; got != 6 {
		t.Fatalf("age 4 should wrap to the newest slot, got %f", got)
	}
}

func TestNewGeometry(t *testing.T) {
	r := New(5, 8)
	if r.Capacity() != 5 || r.SpectrumLen() != 8 {
		t.Fatalf("geometry = %d x %d, want 5 x 8", r.Capacity(), r.SpectrumLen())
	}
	for age := 0; age < r.Capacity(); age++ {
		if got := len(r.At(age)); got != r.SpectrumLen() {
			t.Fatalf("slot %d length = %d, want %d", age, got, r.SpectrumLen())
		}
	}
	if r := New(0, 0); r.Capacity() != 1 || r.SpectrumLen() != 1 {
		t.Fatalf("degenerate geometry = %d x %d, want 1 x 1", r.Capacity(), r.SpectrumLen())
	}
}

func TestRingIndexUsesCapacity(t *testing.T) {
	const partitions = 3
	r := New(partitions+1, 1)
	for i := 1; i <= 10; i++ {
		r.Submit([]float32{float32(i)})
	}

	seen := make(map[int]bool)
	for age := 0; age <= partitions; age++ {
		if got, want := r.At(age)[0], float32(10-age); got != want {
			t.Fatalf("age %d: got %f, want %f", age, got, want)
		}
		idx := r.Index(age)
		if seen[idx] {
			t.Fatalf("age %d shares slot %d with a younger age", age, idx)
		}
		seen[idx] = true
	}

	// Reducing by the partition count instead aliases ages 0 and 3 here.
	cursor := r.Cursor()
	if mod(cursor-1, partitions) != mod(cursor-1-partitions, partitions) {
		t.Fatal("expected partition-count modulus to alias")
	}
}

func TestRingIndexNegativeSafe(t *testing.T) {
	r := New(3, 1)
	if got := r.Index(0); got != 2 {
		t.Fatalf("Index(0) on fresh ring = %d, want 2", got)
	}
	if got := r.Index(2); got != 0 {
		t.Fatalf("Index(2) on fresh ring = %d, want 0", got)
	}
	for age := 0; age < 10; age++ {
		if idx := r.Index(age); idx < 0 || idx >= r.Capacity() {
			t.Fatalf("Index(%d) = %d out of range", age, idx)
		}
	}
}

func TestRingCursorWraps(t *testing.T) {
	r := New(3, 1)
	for i := 0; i < 3; i++ {
		if r.Cursor() != i {
			t.Fatalf("cursor = %d, want %d", r.Cursor(), i)
		}
		r.Submit([]float32{1})
	}
	if r.Cursor() != 0 {
		t.Fatalf("cursor after wrap = %d, want 0", r.Cursor())
	}
}

func TestRingSubmitShortSpectrumClearsSlot(t *testing.T) {
	r := New(1, 3)
	r.Submit([]float32{1, 2, 3})
	r.Submit([]float32{4})
	got := r.At(0)
	if got[0] != 4 || got[1] != 0 || got[2] != 0 {
		t.Fatalf("slot = %v, want [4 0 0]", got)
	}
}

func TestRingReset(t *testing.T) {
	r := New(2, 2)
	r.Submit([]float32{1, 1})
	r.Submit([]float32{2, 2})
	r.Reset()
	if r.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", r.Cursor())
	}
	for age := 0; age < r.Capacity(); age++ {
		for _, v := range r.At(age) {
			if v != 0 {
				t.Fatalf("slot not cleared at age %d", age)
			}
		}
	}
}

func TestRingSubmitDoesNotAllocate(t *testing.T) {
	r := New(8, 16)
	in := make([]float32, 16)
	allocs := testing.AllocsPerRun(100, func() {
		r.Submit(in)
		_ = r.At(3)
	})
	if allocs != 0 {
		t.Fatalf("Submit allocated %.1f times per run", allocs)
	}
}
