package types

// Ring is a bounded FIFO buffer. Once it holds Cap elements, every Push
// evicts the oldest element.
//
// Ring is not safe for concurrent use.
type Ring[T any] struct {
	buf   []T
	start int // index of the oldest element
	size  int
}

// NewRing creates a Ring that holds at most capacity elements.
// A non-positive capacity is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends val. When the ring is full the oldest element is removed and
// returned with evicted set to true.
func (r *Ring[T]) Push(val T) (old T, evicted bool) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = val
		r.size++
		return old, false
	}

	old = r.buf[r.start]
	r.buf[r.start] = val
	r.start = (r.start + 1) % len(r.buf)
	return old, true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the maximum number of elements the ring can hold.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// At returns the i-th element counted from the oldest one.
// It panics if i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("types: ring index out of range")
	}

	return r.buf[(r.start+i)%len(r.buf)]
}

// Slice returns a copy of the stored elements from oldest to newest.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.At(i)
	}
	return out
}

// Recent returns up to limit elements from newest to oldest that satisfy
// keep. A nil keep accepts every element; a non-positive limit means no limit.
func (r *Ring[T]) Recent(limit int, keep func(T) bool) []T {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}

	out := make([]T, 0, limit)
	for i := r.size - 1; i >= 0 && len(out) < limit; i-- {
		val := r.At(i)
		if keep == nil || keep(val) {
			out = append(out, val)
		}
	}
	return out
}

// Reset removes all elements while keeping the capacity.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}
