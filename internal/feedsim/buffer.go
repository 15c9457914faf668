package feedsim

import (
	"context"
	"sync"
	"time"
)

// Timestamped is an item that knows when it was produced.
type Timestamped interface {
	Timestamp() time.Time
}

// Buffer keeps the most recent items for replay. Add evicts the oldest item
// when the buffer is full; Trim drops items older than the TTL. Items are
// assumed to be added in timestamp order.
type Buffer[T Timestamped] struct {
	items   []T
	maxSize int
	ttl     time.Duration
	mu      sync.RWMutex
}

// NewBuffer creates a buffer holding at most maxSize items for ttl.
func NewBuffer[T Timestamped](ttl time.Duration, maxSize int) *Buffer[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Buffer[T]{
		items:   make([]T, 0, maxSize),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Add appends item, evicting the oldest when full.
func (b *Buffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == b.maxSize {
		b.items = b.items[1:]
	}
	b.items = append(b.items, item)
}

// Last returns the newest item.
func (b *Buffer[T]) Last() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.items) == 0 {
		var zero T
		return zero, false
	}
	return b.items[len(b.items)-1], true
}

// Since returns the items strictly newer than since, oldest first.
func (b *Buffer[T]) Since(since time.Time) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []T
	for _, item := range b.items {
		if item.Timestamp().After(since) {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.items)
}

// TTL returns how long items are kept.
func (b *Buffer[T]) TTL() time.Duration {
	return b.ttl
}

// Trim drops items that are no newer than now minus the TTL and returns how
// many were dropped.
func (b *Buffer[T]) Trim(now time.Time) int {
	cutoff := now.Add(-b.ttl)

	b.mu.Lock()
	defer b.mu.Unlock()

	i := 0
	for ; i < len(b.items); i++ {
		if b.items[i].Timestamp().After(cutoff) {
			break
		}
	}
	b.items = b.items[i:]
	return i
}

// RunTrimmer calls Trim every interval until ctx is done.
func (b *Buffer[T]) RunTrimmer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.Trim(now)
		}
	}
}
