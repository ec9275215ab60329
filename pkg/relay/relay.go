// Package relay provides the bounded handoff between an acquisition
// goroutine and the pipeline loop. The relay keeps at most its configured
// number of pending items and evicts the oldest on overflow: a live
// dashboard has no use for stale buffered frames, so freshness wins over
// completeness.
package relay

import (
	"context"
	"sync"
)

type Relay[T any] struct {
	ch chan T
	mu sync.Mutex
}

func New[T any](capacity int) *Relay[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Relay[T]{ch: make(chan T, capacity)}
}

// Put inserts item, evicting the oldest pending item when the relay is
// full. It never blocks the producer.
func (r *Relay[T]) Put(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		select {
		case r.ch <- item:
			return
		default:
		}
		// full: drop the oldest pending item and retry
		select {
		case <-r.ch:
		default:
		}
	}
}

// Get suspends the caller until an item is available or ctx is cancelled.
func (r *Relay[T]) Get(ctx context.Context) (T, error) {
	select {
	case item := <-r.ch:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len returns the number of pending items.
func (r *Relay[T]) Len() int { return len(r.ch) }
