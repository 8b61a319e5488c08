package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/chargeview/internal/adapters/mq/queue"
	"github.com/okian/chargeview/internal/adapters/mq/worker"
	"github.com/okian/chargeview/internal/domain/model"
	logging "github.com/okian/chargeview/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockRunner struct {
	mu      sync.Mutex
	seen    []string
	err     error
	block   chan struct{}
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (m *mockRunner) RunCycle(ctx context.Context, r model.CycleRequest) error {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxSeen.Load()
		if n <= cur || m.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, r.ID)
	return m.err
}

func (m *mockRunner) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestCycleWorker(t *testing.T) {
	convey.Convey("Given a cycle worker on a trigger queue", t, func() {
		_ = logging.Init()

		q := queue.NewTriggerQueue()
		runner := &mockRunner{}
		w := worker.NewCycleWorker(q, runner, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When requests arrive one after another", func() {
			for _, id := range []string{"a", "b", "c"} {
				convey.So(q.TryEnqueue(ctx, model.CycleRequest{ID: id}), convey.ShouldBeNil)
				convey.So(waitFor(func() bool { return len(runner.ids()) > 0 && runner.ids()[len(runner.ids())-1] == id }), convey.ShouldBeTrue)
			}

			convey.Convey("Then each cycle runs in order", func() {
				convey.So(runner.ids(), convey.ShouldResemble, []string{"a", "b", "c"})
				convey.So(w.Stats().Runs, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When a cycle fails", func() {
			runner.err = errors.New("backend down")
			convey.So(q.TryEnqueue(ctx, model.CycleRequest{ID: "f"}), convey.ShouldBeNil)

			convey.Convey("Then the failure is counted and the worker keeps going", func() {
				convey.So(waitFor(func() bool { return w.Stats().Failures == 1 }), convey.ShouldBeTrue)
				runner.mu.Lock()
				runner.err = nil
				runner.mu.Unlock()
				convey.So(q.TryEnqueue(ctx, model.CycleRequest{ID: "g"}), convey.ShouldBeNil)
				convey.So(waitFor(func() bool { return len(runner.ids()) == 2 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestCycleWorkerSerializes(t *testing.T) {
	convey.Convey("Given a slow runner", t, func() {
		_ = logging.Init()

		q := queue.NewTriggerQueue()
		runner := &mockRunner{block: make(chan struct{})}
		w := worker.NewCycleWorker(q, runner)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.So(q.TryEnqueue(ctx, model.CycleRequest{ID: "first"}), convey.ShouldBeNil)
		convey.So(waitFor(func() bool { return w.Stats().InFlight }), convey.ShouldBeTrue)

		convey.Convey("When triggers keep arriving during the cycle", func() {
			accepted := 0
			for range 5 {
				if q.TryEnqueue(ctx, model.CycleRequest{ID: "next"}) == nil {
					accepted++
				}
			}
			close(runner.block)

			convey.Convey("Then only one waits and cycles never overlap", func() {
				convey.So(accepted, convey.ShouldEqual, 1)
				convey.So(waitFor(func() bool { return len(runner.ids()) == 2 }), convey.ShouldBeTrue)
				convey.So(runner.maxSeen.Load(), convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given a cycle in flight during shutdown", t, func() {
		_ = logging.Init()

		q := queue.NewTriggerQueue()
		runner := &mockRunner{block: make(chan struct{})}
		w := worker.NewCycleWorker(q, runner)
		go w.Run(context.Background())

		convey.So(q.TryEnqueue(context.Background(), model.CycleRequest{ID: "stuck"}), convey.ShouldBeNil)
		convey.So(waitFor(func() bool { return w.Stats().InFlight }), convey.ShouldBeTrue)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()

		convey.Convey("Then the cycle is cancelled and shutdown completes", func() {
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(runner.ids(), convey.ShouldBeEmpty)
		})
	})
}
