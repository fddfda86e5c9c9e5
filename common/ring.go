package common

import "fmt"

// MinRingSize is the smallest ring that always has a free slot distinct from the current and previous ones.
const MinRingSize = 3

// Ring tracks the current and previous slots of a fixed-size ring of buffers.
// Current and previous are always distinct and in [0, Len()).
type Ring struct {
	size int
	curr int
	prev int
}

// NewRing creates a ring of the given size with current at 0 and previous at size-1.
//
// Parameters:
//   - size: number of slots, at least MinRingSize
//
// Returns:
//   - Ring: the ring
//   - error: if size is below MinRingSize
func NewRing(size int) (Ring, error) {
	if size < MinRingSize {
		return Ring{}, fmt.Errorf("ring size %d is below minimum %d", size, MinRingSize)
	}
	return Ring{size: size, curr: 0, prev: size - 1}, nil
}

// Len returns the number of slots.
func (r Ring) Len() int { return r.size }

// Current returns the slot holding this frame's latest result.
func (r Ring) Current() int { return r.curr }

// Previous returns the slot holding last frame's result.
func (r Ring) Previous() int { return r.prev }

// Rotate starts a new frame: previous takes current and current advances by one.
func (r *Ring) Rotate() {
	r.prev = r.curr
	r.curr = (r.curr + 1) % r.size
}

// FreeSlot returns a slot that is neither current nor previous.
// For three slots this is 3 - prev - curr. Larger rings take the first slot after current that is not previous.
func (r Ring) FreeSlot() int {
	if r.size == MinRingSize {
		return r.size - r.prev - r.curr
	}
	for i := 1; i < r.size; i++ {
		s := (r.curr + i) % r.size
		if s != r.prev {
			return s
		}
	}
	return r.curr
}

// Advance makes the free slot current. Passes call it after writing FreeSlot.
func (r *Ring) Advance() {
	r.curr = r.FreeSlot()
}
