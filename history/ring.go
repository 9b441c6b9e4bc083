// Package history keeps the most recent input spectra of one channel in a
// fixed circular arena.
package history

// Ring stores capacity spectra of specLen floats each in one contiguous
// arena. Submit overwrites the oldest slot; At(0) is always the most recent
// submission.
//
// A Ring is owned by a single goroutine (the render path); it performs no
// allocation after New.
type Ring struct {
	arena    []float32
	slots    [][]float32
	specLen  int
	capacity int
	cursor   int
}

// New allocates a ring with capacity slots. capacity and specLen must be > 0.
func New(capacity, specLen int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	if specLen < 1 {
		specLen = 1
	}
	r := &Ring{
		arena:    make([]float32, capacity*specLen),
		slots:    make([][]float32, capacity),
		specLen:  specLen,
		capacity: capacity,
	}
	for i := range r.slots {
		r.slots[i] = r.arena[i*specLen : (i+1)*specLen : (i+1)*specLen]
	}
	return r
}

// Capacity returns the number of slots.
func (r *Ring) Capacity() int { return r.capacity }

// SpectrumLen returns the length of one slot.
func (r *Ring) SpectrumLen() int { return r.specLen }

// Cursor returns the slot the next Submit writes to.
func (r *Ring) Cursor() int { return r.cursor }

// Submit copies spectrum into the slot at the cursor and advances it.
// Extra input is ignored; a short spectrum leaves the rest of the slot zero.
func (r *Ring) Submit(spectrum []float32) {
	slot := r.slots[r.cursor]
	n := copy(slot, spectrum)
	clear(slot[n:])
	r.cursor++
	if r.cursor == r.capacity {
		r.cursor = 0
	}
}

// Index maps an age (0 = most recent submission) to a slot index. The
// modulus is the ring capacity, not the partition count: engines allocate
// numPartitions+1 slots, and reducing modulo numPartitions would map two
// ages onto one slot (see TestRingIndexUsesCapacity).
func (r *Ring) Index(age int) int {
	return mod(r.cursor-1-age, r.capacity)
}

// At returns the slot holding the spectrum submitted age calls ago. Ages at
// or beyond Capacity wrap around. The slice aliases the arena.
func (r *Ring) At(age int) []float32 {
	return r.slots[r.Index(age)]
}

// Reset zeroes every slot and rewinds the cursor.
func (r *Ring) Reset() {
	clear(r.arena)
	r.cursor = 0
}

func mod(x, n int) int {
	return ((x % n) + n) % n
}
