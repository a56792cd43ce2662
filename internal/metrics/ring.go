package metrics

// ring is a fixed-capacity buffer that overwrites its oldest element.
type ring[T any] struct {
	items []T
	next  int
	full  bool
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.items[r.next] = v
	r.next++
	if r.next == len(r.items) {
		r.next = 0
		r.full = true
	}
}

func (r *ring[T]) len() int {
	if r.full {
		return len(r.items)
	}
	return r.next
}

// each visits elements from oldest to newest.
func (r *ring[T]) each(fn func(T)) {
	if r.full {
		for _, v := range r.items[r.next:] {
			fn(v)
		}
	}
	for _, v := range r.items[:r.next] {
		fn(v)
	}
}
