package telemetry

// ring is a fixed capacity FIFO buffer. Pushing into a full ring evicts the oldest item.
type ring[T any] struct {
	buf   []T
	start int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if len(r.buf) == 0 {
		return
	}
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) len() int { return r.size }

// items returns a copy ordered oldest to newest.
func (r *ring[T]) items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// dropWhile removes items from the oldest end while pred holds.
func (r *ring[T]) dropWhile(pred func(T) bool) int {
	var zero T
	dropped := 0
	for r.size > 0 && pred(r.buf[r.start]) {
		r.buf[r.start] = zero
		r.start = (r.start + 1) % len(r.buf)
		r.size--
		dropped++
	}
	return dropped
}

func (r *ring[T]) reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}
