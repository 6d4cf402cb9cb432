package coordinator

import (
	"context"
	"sync"
)

// Queue is a FIFO Dispatcher drained by Run on the caller's goroutine.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	wakeCh  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wakeCh: make(chan struct{}, 1)}
}

// Do enqueues fn and returns immediately.
func (q *Queue) Do(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// Run executes queued functions in order until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wakeCh:
		}
	}
}

// drain runs everything queued so far and reports how many functions ran.
func (q *Queue) drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// FuncDispatcher adapts a scheduling function such as fyne.Do.
type FuncDispatcher func(fn func())

func (f FuncDispatcher) Do(fn func()) {
	f(fn)
}
