package upload

import (
	"context"
	"sync/atomic"
	"time"
)

// queue is a bounded multi-producer multi-consumer queue that tracks how many
// items and how many bytes are waiting to be taken.
type queue[T any] struct {
	items chan T
	count atomic.Int64
	bytes atomic.Int64
	size  func(T) int64
}

func newQueue[T any](capacity int, size func(T) int64) *queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	if size == nil {
		size = func(T) int64 { return 0 }
	}
	return &queue[T]{items: make(chan T, capacity), size: size}
}

// Put adds item, blocking while the queue is full.
func (q *queue[T]) Put(ctx context.Context, item T) error {
	n := q.size(item)
	q.count.Add(1)
	q.bytes.Add(n)
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		q.count.Add(-1)
		q.bytes.Add(-n)
		return ctx.Err()
	}
}

// Take waits up to wait for an item. It returns false when nothing arrived,
// or when stop or ctx fired first.
func (q *queue[T]) Take(ctx context.Context, stop <-chan struct{}, wait time.Duration) (T, bool) {
	var zero T
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case item := <-q.items:
		q.count.Add(-1)
		q.bytes.Add(-q.size(item))
		return item, true
	case <-timer.C:
	case <-stop:
	case <-ctx.Done():
	}
	return zero, false
}

// TryTake removes an item without waiting.
func (q *queue[T]) TryTake() (T, bool) {
	select {
	case item := <-q.items:
		q.count.Add(-1)
		q.bytes.Add(-q.size(item))
		return item, true
	default:
		var zero T
		return zero, false
	}
}

// Drain removes and returns everything still queued.
func (q *queue[T]) Drain() []T {
	var out []T
	for {
		item, ok := q.TryTake()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

// Len is the number of items not yet taken.
func (q *queue[T]) Len() int {
	return int(q.count.Load())
}

// Bytes is the summed size of the items not yet taken.
func (q *queue[T]) Bytes() int64 {
	return q.bytes.Load()
}
