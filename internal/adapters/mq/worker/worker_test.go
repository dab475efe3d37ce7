package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/posematch/internal/adapters/mq/queue"
	"github.com/okian/posematch/internal/adapters/mq/worker"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	frames chan model.Frame
}

func newMockQueue() *mockQueue {
	return &mockQueue{frames: make(chan model.Frame, 10)}
}

func (mq *mockQueue) Dequeue() <-chan model.Frame { return mq.frames }

// recorder remembers the frame ids each session received, in order.
type recorder struct {
	mu       sync.Mutex
	sessions map[string][]string
	fail     map[string]error
	count    int
}

func newRecorder() *recorder {
	return &recorder{sessions: make(map[string][]string), fail: make(map[string]error)}
}

func (r *recorder) Process(_ context.Context, f model.Frame) error { //nolint:gocritic // hugeParam: test fake
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if err, ok := r.fail[f.FrameID]; ok {
		return err
	}
	r.sessions[f.SessionID] = append(r.sessions[f.SessionID], f.FrameID)
	return nil
}

func (r *recorder) frames(session string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sessions[session]...)
}

func (r *recorder) processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := newMockQueue()
		rec := newRecorder()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("worker-test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When frames arrive and one fails", func() {
			rec.fail["bad"] = errors.New("boom")
			q.frames <- model.Frame{SessionID: "s", FrameID: "1"}
			q.frames <- model.Frame{SessionID: "s", FrameID: "bad"}
			q.frames <- model.Frame{SessionID: "s", FrameID: "2"}
			close(q.frames)

			convey.Convey("Then the failure is logged and processing continues", func() {
				select {
				case <-w.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not stop after queue close")
				}
				convey.So(rec.frames("s"), convey.ShouldResemble, []string{"1", "2"})
				convey.So(rec.processed(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not stop after cancel")
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four shards", t, func() {
		rec := newRecorder()
		pool := worker.NewPool(4, 256, rec)
		ctx := context.Background()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When frames of several sessions are interleaved", func() {
			for i := 0; i < 50; i++ {
				for s := 0; s < 6; s++ {
					err := pool.Submit(ctx, model.Frame{SessionID: fmt.Sprintf("session-%d", s), FrameID: fmt.Sprint(i)})
					convey.So(err, convey.ShouldBeNil)
				}
			}
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then every session sees its frames in submission order", func() {
				for s := 0; s < 6; s++ {
					got := rec.frames(fmt.Sprintf("session-%d", s))
					convey.So(got, convey.ShouldHaveLength, 50)
					for i, id := range got {
						convey.So(id, convey.ShouldEqual, fmt.Sprint(i))
					}
				}
				convey.So(pool.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When submitting after shutdown", func() {
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			err := pool.Submit(ctx, model.Frame{SessionID: "late", FrameID: "1"})

			convey.Convey("Then the frame is rejected as closed", func() {
				convey.So(errors.Is(err, queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with a tiny queue and a blocked processor", t, func() {
		release := make(chan struct{})
		blocked := worker.ProcessorFunc(func(ctx context.Context, _ model.Frame) error {
			<-release
			return nil
		})
		pool := worker.NewPool(1, 1, blocked)
		ctx := context.Background()
		pool.Start(ctx)

		convey.Convey("When more frames arrive than fit", func() {
			var full error
			for i := 0; i < 5 && full == nil; i++ {
				full = pool.Submit(ctx, model.Frame{SessionID: "s", FrameID: fmt.Sprint(i)})
			}
			close(release)
			_ = pool.Shutdown(ctx)

			convey.Convey("Then the pool reports backpressure", func() {
				convey.So(errors.Is(full, queue.ErrFull), convey.ShouldBeTrue)
			})
		})
	})
}
