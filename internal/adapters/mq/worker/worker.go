// Package worker applies queued frames to their sessions. Frames are sharded
// by session so one session is always served by the same worker, in
// submission order.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/posematch/internal/adapters/mq/queue"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/pkg/logger"
	"github.com/okian/posematch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultQueueCapacity = 1024
	poolShutdownTimeout  = 30 * time.Second
)

// Frame is what workers read off their queue.
type Frame = model.Frame

// Processor applies one frame.
type Processor interface {
	Process(ctx context.Context, f Frame) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, f Frame) error

// Process calls fn.
func (fn ProcessorFunc) Process(ctx context.Context, f Frame) error { return fn(ctx, f) } //nolint:gocritic // hugeParam: frames travel by value

// Queue defines how a worker receives frames.
type Queue interface {
	Dequeue() <-chan Frame
}

// InMemoryWorker drains one queue.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string
	done      chan struct{}
	logger    logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run processes frames until the queue is closed and drained or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	frames := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := w.processor.Process(ctx, f); err != nil {
				metrics.RecordErrorByComponent("worker", "process_error")
				w.logger.Error(ctx, "error processing frame",
					logger.String("session", f.SessionID),
					logger.String("frame", f.FrameID),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Pool owns one queue and one worker per shard.
type Pool struct {
	queues  []*queue.InMemoryQueue
	workers []*InMemoryWorker
	logger  logger.Logger
}

// NewPool creates workerCount shards, each with a queue of queueCapacity
// frames. workerCount < 1 uses runtime.NumCPU().
func NewPool(workerCount, queueCapacity int, p Processor, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	if queueCapacity < 1 {
		queueCapacity = defaultQueueCapacity
	}

	pool := &Pool{
		queues:  make([]*queue.InMemoryQueue, workerCount),
		workers: make([]*InMemoryWorker, workerCount),
	}
	for _, opt := range opts {
		opt(pool)
	}
	if pool.logger == nil {
		pool.logger = logger.Named("worker-pool")
	}

	for i := 0; i < workerCount; i++ {
		name := "worker-" + strconv.Itoa(i)
		pool.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(queueCapacity), queue.WithName(name))
		pool.workers[i] = NewInMemoryWorker(pool.queues[i], p, WithName(name), WithLogger(pool.logger.Named(name)))
	}
	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Submit routes f to the shard owning its session.
func (p *Pool) Submit(ctx context.Context, f Frame) error { //nolint:gocritic // hugeParam: frames travel by value
	q := p.queues[p.shard(f.SessionID)]
	if err := q.Enqueue(ctx, f); err != nil {
		return fmt.Errorf("submit to %s: %w", q.Name(), err)
	}
	return nil
}

// Len returns the number of frames waiting across all shards.
func (p *Pool) Len() int {
	n := 0
	for _, q := range p.queues {
		n += q.Len()
	}
	metrics.UpdateQueueSize(n)
	return n
}

// Size returns the number of shards.
func (p *Pool) Size() int { return len(p.workers) }

func (p *Pool) shard(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(p.queues))) //nolint:gosec // shard count is small
}

// Shutdown closes every queue and waits for the workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
