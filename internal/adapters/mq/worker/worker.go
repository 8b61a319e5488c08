// Package worker runs fetch-reconcile cycles one at a time as requests
// arrive on the trigger queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/pkg/logger"
	"github.com/okian/chargeview/pkg/metrics"
)

// Cycle results recorded in metrics.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Runner executes one cycle.
type Runner interface {
	RunCycle(ctx context.Context, r model.CycleRequest) error
}

// Queue defines how the worker receives requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.CycleRequest
	Len() int
}

// CycleWorker consumes cycle requests sequentially, so at most one cycle is
// ever in flight.
type CycleWorker struct {
	queue  Queue
	runner Runner
	name   string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	mu       sync.Mutex
	inFlight bool
	runs     uint64
	failures uint64

	logger logger.Logger
}

// Stats is a point in time view of the worker.
type Stats struct {
	InFlight bool   `json:"inFlight"`
	Runs     uint64 `json:"runs"`
	Failures uint64 `json:"failures"`
}

// NewCycleWorker creates a worker.
func NewCycleWorker(q Queue, runner Runner, opts ...Option) *CycleWorker {
	w := &CycleWorker{
		queue:    q,
		runner:   runner,
		name:     "cycle-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes requests until ctx is cancelled, Shutdown is called, or the
// queue is closed. A cycle in flight is cancelled on shutdown and its result
// is discarded by the runner.
func (w *CycleWorker) Run(ctx context.Context) {
	defer close(w.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-runCtx.Done():
		}
	}()

	requests := w.queue.Dequeue(runCtx)
	for {
		select {
		case <-runCtx.Done():
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			metrics.UpdateTriggerPending(w.queue.Len())
			w.process(runCtx, r)
		}
	}
}

func (w *CycleWorker) process(ctx context.Context, r model.CycleRequest) {
	w.setInFlight(true)
	defer w.setInFlight(false)

	start := time.Now()
	err := w.runner.RunCycle(ctx, r)
	elapsed := float64(time.Since(start).Milliseconds())

	switch {
	case err == nil:
		metrics.RecordCycle(ResultOK, elapsed)
	case errors.Is(err, context.Canceled):
		metrics.RecordCycle(ResultCancelled, elapsed)
		w.logger.Debug(ctx, "cycle cancelled", logger.String("cycle_id", r.ID))
	default:
		w.mu.Lock()
		w.failures++
		w.mu.Unlock()
		metrics.RecordCycle(ResultError, elapsed)
		metrics.RecordErrorByComponent("worker", "cycle_failed")
		w.logger.Error(ctx, "cycle failed",
			logger.String("cycle_id", r.ID),
			logger.String("reason", r.Reason),
			logger.Error(err),
		)
	}
}

func (w *CycleWorker) setInFlight(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = v
	if v {
		w.runs++
	}
}

// Stats returns the worker counters.
func (w *CycleWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{InFlight: w.inFlight, Runs: w.runs, Failures: w.failures}
}

// Shutdown stops the worker and waits for Run to return.
func (w *CycleWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
