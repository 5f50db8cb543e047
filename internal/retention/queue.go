// Package retention provides a fixed-capacity queue that keeps the most
// recently created items pushed into it.
package retention

import (
	"time"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
)

// Dated is anything with a creation time
type Dated interface {
	CreatedAtTime() time.Time
}

// Queue holds at most MaxSize items, most recent first. Items with equal
// creation times keep their push order, so the earliest pushed is retained.
type Queue[T Dated] struct {
	items   []T
	maxSize int
}

// New creates a queue holding at most maxSize items
func New[T Dated](maxSize int) (*Queue[T], error) {
	if maxSize < 1 {
		return nil, errors.Configuration("maxSize must be at least 1, got %d", maxSize)
	}
	return &Queue[T]{
		items:   make([]T, 0, maxSize),
		maxSize: maxSize,
	}, nil
}

// Push inserts item and returns whichever item no longer fits: the previous
// oldest item, or item itself when the queue is full of newer-or-equal items.
func (q *Queue[T]) Push(item T) (evicted T, ok bool) {
	insertAt := -1
	created := item.CreatedAtTime()

	for i, existing := range q.items {
		if existing.CreatedAtTime().Before(created) {
			insertAt = i
			break
		}
	}

	if insertAt < 0 {
		if len(q.items) < q.maxSize {
			q.items = append(q.items, item)
			return evicted, false
		}
		return item, true
	}

	var zero T
	q.items = append(q.items, zero)
	copy(q.items[insertAt+1:], q.items[insertAt:])
	q.items[insertAt] = item

	if len(q.items) > q.maxSize {
		last := len(q.items) - 1
		evicted = q.items[last]
		q.items[last] = zero
		q.items = q.items[:last]
		return evicted, true
	}

	return evicted, false
}

// Items returns the retained items, most recent first
func (q *Queue[T]) Items() []T {
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}
