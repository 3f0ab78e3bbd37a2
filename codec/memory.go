package codec

import "math"

// MemoryTracker accumulates a single current-bytes counter. Overflow
// saturates to the maximum representable value; underflow clamps to zero.
type MemoryTracker struct {
	current uint64
}

// Alloc adds n bytes to the tracked total, saturating on overflow.
func (t *MemoryTracker) Alloc(n uint64) {
	if n == 0 {
		return
	}
	if t.current > math.MaxUint64-n {
		t.current = math.MaxUint64
		return
	}
	t.current += n
}

// Free subtracts n bytes from the tracked total, clamping to zero.
func (t *MemoryTracker) Free(n uint64) {
	if n >= t.current {
		t.current = 0
		return
	}
	t.current -= n
}

// Current returns the tracked byte count.
func (t *MemoryTracker) Current() uint64 {
	return t.current
}

// Check compares the tracker against limit (0 = unlimited) and returns
// KindLimit if it is exceeded.
func (t *MemoryTracker) Check(limit uint64, stage string) error {
	if limit == 0 {
		return nil
	}
	if t.current > limit {
		return newError(KindLimit, stage, "memory usage %d exceeds limit %d", t.current, limit)
	}
	return nil
}
