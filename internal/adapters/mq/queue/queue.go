// Package queue provides the bounded in-memory queue that carries session
// frames to the workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Frame is the payload flowing through the queue.
type Frame = model.Frame

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a frame. It returns an error wrapping ErrFull or
	// ErrClosed when the frame was not accepted.
	Enqueue(ctx context.Context, f Frame) error

	// Dequeue returns the channel frames are delivered on. It is closed by
	// Close once the remaining frames are drained.
	Dequeue() <-chan Frame

	// Len returns the number of queued frames.
	Len() int

	// Close stops accepting frames.
	Close() error

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	frames   chan Frame
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     "frames",
	}
	for _, opt := range opts {
		opt(q)
	}
	q.frames = make(chan Frame, q.capacity)
	return q
}

// Enqueue adds a frame without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, f Frame) error { //nolint:gocritic // hugeParam: frames travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return err
	}

	select {
	case q.frames <- f:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.frames))
		return nil
	default:
		metrics.RecordQueueRejected("full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the delivery channel.
func (q *InMemoryQueue) Dequeue() <-chan Frame {
	return q.frames
}

// Len returns the number of queued frames.
func (q *InMemoryQueue) Len() int {
	return len(q.frames)
}

// Capacity returns the maximum number of queued frames.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Name identifies the queue in logs.
func (q *InMemoryQueue) Name() string {
	return q.name
}

// Close stops accepting frames. Frames already queued stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.frames)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
