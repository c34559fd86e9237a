// Package ring provides a fixed-capacity ring buffer used for the bounded
// in-memory histories (events, alarms, aircraft reports). Once full, the
// oldest entry is evicted first.
package ring

// Buffer is a bounded FIFO ring buffer. It is not safe for concurrent use;
// callers hold their own locks.
type Buffer[T any] struct {
	buf  []T
	head int // next write position
	size int
}

// New creates a buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Append adds an item, evicting the oldest if the buffer is full.
func (b *Buffer[T]) Append(item T) {
	b.buf[b.head] = item
	b.head = (b.head + 1) % len(b.buf)
	if b.size < len(b.buf) {
		b.size++
	}
}

// Len returns the number of stored items.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.buf)
}

// Items returns the stored items oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += len(b.buf)
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.buf[(start+i)%len(b.buf)])
	}
	return out
}

// Recent returns up to limit items, newest first. limit <= 0 returns all.
func (b *Buffer[T]) Recent(limit int) []T {
	if limit <= 0 || limit > b.size {
		limit = b.size
	}
	out := make([]T, 0, limit)
	for i := 0; i < limit; i++ {
		idx := b.head - 1 - i
		for idx < 0 {
			idx += len(b.buf)
		}
		out = append(out, b.buf[idx])
	}
	return out
}
