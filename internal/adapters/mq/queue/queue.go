// Package queue holds pending cycle requests between the triggers (ticker,
// manual refresh) and the single cycle worker.
//
// The queue is deliberately tiny: with the default capacity of one, a
// trigger that arrives while a cycle is already waiting is skipped rather
// than stacked, so cycles never pile up behind a slow backend.
package queue

import (
	"context"
	"sync"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/pkg/metrics"
)

const defaultCapacity = 1

// Request is the payload type flowing through the queue.
type Request = model.CycleRequest

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// TryEnqueue adds a request. It returns ErrPending when the queue is
	// full and ErrClosed after Close.
	TryEnqueue(ctx context.Context, r Request) error

	// Dequeue returns the channel requests are delivered on. It is closed
	// when the queue is closed.
	Dequeue(ctx context.Context) <-chan Request

	// Len returns the number of waiting requests.
	Len() int

	// Close stops accepting requests and closes the dequeue channel.
	Close() error
}

// TriggerQueue implements Queue using a buffered channel.
type TriggerQueue struct {
	requests chan Request
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewTriggerQueue creates a queue with the given options.
func NewTriggerQueue(opts ...Option) *TriggerQueue {
	q := &TriggerQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)
	metrics.UpdateTriggerPending(0)
	return q
}

// TryEnqueue adds a request without blocking.
func (q *TriggerQueue) TryEnqueue(ctx context.Context, r Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.requests <- r:
		metrics.UpdateTriggerPending(len(q.requests))
		return nil
	default:
		metrics.RecordCycleSkipped()
		return ErrPending
	}
}

// Dequeue returns the request channel. Requests are handed out directly from
// the buffer, so a request being received no longer counts as pending.
func (q *TriggerQueue) Dequeue(_ context.Context) <-chan Request {
	return q.requests
}

// Len returns the number of waiting requests.
func (q *TriggerQueue) Len() int {
	return len(q.requests)
}

// Close shuts the queue. It is safe to call more than once.
func (q *TriggerQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *TriggerQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
