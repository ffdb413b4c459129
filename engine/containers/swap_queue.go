package containers

import "sync"

// SwapQueue is a double-buffered message queue. Producers on any goroutine
// Push into the back buffer; the single consumer calls Drain once per frame,
// which swaps the buffers under the lock and hands back the front one.
type SwapQueue[T any] struct {
	mu    sync.Mutex
	back  []T
	front []T
}

func NewSwapQueue[T any](capacity int) *SwapQueue[T] {
	return &SwapQueue[T]{
		back:  make([]T, 0, capacity),
		front: make([]T, 0, capacity),
	}
}

func (q *SwapQueue[T]) Push(msgs ...T) {
	q.mu.Lock()
	q.back = append(q.back, msgs...)
	q.mu.Unlock()
}

// Drain returns every message pushed since the previous Drain, in push order.
// The returned slice is only valid until the next Drain.
func (q *SwapQueue[T]) Drain() []T {
	q.mu.Lock()
	clear(q.front)
	q.front, q.back = q.back, q.front[:0]
	q.mu.Unlock()
	return q.front
}

func (q *SwapQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.back)
}
