package mqtt

// outbound is a serialized message waiting for the connection to come back.
type outbound struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds at most limit items, evicting the oldest to make room.
// The caller synchronizes.
type backlog[T any] struct {
	items   []T
	start   int // index of the oldest item
	n       int
	dropped uint64 // lifetime evictions
	warned  bool   // an eviction was reported since the last take
}

func newBacklog[T any](limit int) *backlog[T] {
	if limit < 1 {
		limit = 1
	}
	return &backlog[T]{items: make([]T, limit)}
}

// add stores v. When the backlog is full the oldest item is evicted, and add
// reports true for the first eviction after each take.
func (b *backlog[T]) add(v T) bool {
	limit := len(b.items)
	if b.n < limit {
		b.items[(b.start+b.n)%limit] = v
		b.n++
		return false
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % limit
	b.dropped++
	if b.warned {
		return false
	}
	b.warned = true
	return true
}

// take empties the backlog, oldest first. It returns nil when empty.
func (b *backlog[T]) take() []T {
	if b.n == 0 {
		return nil
	}
	limit := len(b.items)
	out := make([]T, 0, b.n)
	for i := 0; i < b.n; i++ {
		out = append(out, b.items[(b.start+i)%limit])
	}
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.start, b.n, b.warned = 0, 0, false
	return out
}

func (b *backlog[T]) len() int { return b.n }

// evicted returns how many items were dropped over the backlog's lifetime.
func (b *backlog[T]) evicted() uint64 { return b.dropped }
