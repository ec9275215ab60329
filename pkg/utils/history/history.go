// Package history keeps the bounded in-memory window of enriched samples
// used to prime newly connected dashboard clients. It is not a replay store;
// anything older than the window is gone.
package history

import (
	"sync"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

// MaxWindow caps the buffer regardless of configuration.
const MaxWindow = 500

type RingBuffer struct {
	mu       sync.RWMutex
	data     []model.EnrichedSample
	head     int
	size     int
	capacity int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 || capacity > MaxWindow {
		capacity = MaxWindow
	}
	return &RingBuffer{
		data:     make([]model.EnrichedSample, capacity),
		capacity: capacity,
	}
}

func (rb *RingBuffer) Push(sample model.EnrichedSample) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.data[rb.head] = sample
	rb.head = (rb.head + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}
}

// Recent returns up to n samples, newest first.
func (rb *RingBuffer) Recent(n int) []model.EnrichedSample {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if n > rb.size {
		n = rb.size
	}
	result := make([]model.EnrichedSample, n)
	for i := 0; i < n; i++ {
		idx := (rb.head - 1 - i + rb.capacity) % rb.capacity
		result[i] = rb.data[idx]
	}
	return result
}

// LatestWithFix returns the most recent sample carrying a GPS fix, or nil.
// The start/finish command derives its reference point from it.
func (rb *RingBuffer) LatestWithFix() *model.EnrichedSample {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	for i := 0; i < rb.size; i++ {
		idx := (rb.head - 1 - i + rb.capacity) % rb.capacity
		if rb.data[idx].HasFix() {
			s := rb.data[idx]
			return &s
		}
	}
	return nil
}

func (rb *RingBuffer) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

func (rb *RingBuffer) Capacity() int { return rb.capacity }
