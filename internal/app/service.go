// Package service wires the fetch-reconcile pipeline and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/chargeview/internal/adapters/backend"
	"github.com/okian/chargeview/internal/adapters/mq/queue"
	"github.com/okian/chargeview/internal/adapters/mq/worker"
	"github.com/okian/chargeview/internal/adapters/repository"
	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/internal/domain/reconcile"
	"github.com/okian/chargeview/pkg/logger"
	"github.com/okian/chargeview/pkg/metrics"
)

// Sentinel errors returned by the service.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrRefreshPending     = errors.New("refresh already pending")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrCyclePanic         = errors.New("cycle panicked")
)

const (
	workerShutdownTimeout = 5 * time.Second
	defaultSubscriberBuf  = 1
)

// Service runs periodic fetch-reconcile cycles and serves the resulting
// snapshot.
type Service struct {
	mu sync.RWMutex

	// Components
	store    *repository.MemoryStore
	fetcher  *backend.Fetcher
	triggers *queue.TriggerQueue
	worker   *worker.CycleWorker

	// Configuration
	backendURL     string
	pollInterval   time.Duration
	fetchTimeout   time.Duration
	queueSize      int
	reconcilerOpts []reconcile.Option
	mirror         repository.Mirror
	httpDoer       backend.HTTPDoer

	// State
	started bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackendURL sets the data source base URL.
func WithBackendURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.backendURL = url
		}
	}
}

// WithPollInterval sets the period between scheduled cycles.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithFetchTimeout bounds each endpoint fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithTriggerQueueSize sets how many cycle requests may wait.
func WithTriggerQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithReconcilerOptions configures the derived views.
func WithReconcilerOptions(opts ...reconcile.Option) Option {
	return func(s *Service) {
		s.reconcilerOpts = append(s.reconcilerOpts, opts...)
	}
}

// WithMirror enables snapshot mirroring and warm start.
func WithMirror(m repository.Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithHTTPClient sets the client used to reach the backend.
func WithHTTPClient(d backend.HTTPDoer) Option {
	return func(s *Service) {
		if d != nil {
			s.httpDoer = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		backendURL:   "http://localhost:5000",
		pollInterval: 30 * time.Second,
		fetchTimeout: 10 * time.Second,
		queueSize:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components, restores mirrored state and starts the
// worker and the poll ticker. The first cycle is requested immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting dashboard service",
		logger.String("backend", s.backendURL),
		logger.Duration("poll_interval", s.pollInterval),
	)

	storeOpts := []repository.Option{
		repository.WithReconciler(reconcile.New(s.reconcilerOpts...)),
	}
	if s.mirror != nil {
		storeOpts = append(storeOpts, repository.WithMirror(s.mirror))
	}
	s.store = repository.NewMemoryStore(storeOpts...)
	if _, err := s.store.Warm(ctx); err != nil {
		s.logger.Warn(ctx, "warm start skipped", logger.Error(err))
	}

	doer := s.httpDoer
	if doer == nil {
		doer = backend.NewDefaultHTTPClient(0)
	}
	s.fetcher = backend.NewFetcher(
		backend.NewClient(s.backendURL, doer),
		backend.WithTimeout(s.fetchTimeout),
	)
	s.triggers = queue.NewTriggerQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.NewCycleWorker(s.triggers, s)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	go s.worker.Run(runCtx)
	s.loops.Add(1)
	go s.poll(runCtx)

	s.started = true
	if err := s.trigger(runCtx, model.ReasonStartup); err != nil {
		s.logger.Warn(ctx, "startup cycle not queued", logger.Error(err))
	}

	s.logger.Info(ctx, "dashboard service started")
	return nil
}

// poll requests a cycle every poll interval until ctx is done.
func (s *Service) poll(ctx context.Context) {
	defer s.loops.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.trigger(ctx, model.ReasonTicker); err != nil && !errors.Is(err, ErrRefreshPending) {
				s.logger.Warn(ctx, "scheduled cycle not queued", logger.Error(err))
			}
		}
	}
}

func (s *Service) trigger(ctx context.Context, reason string) error {
	r := model.CycleRequest{
		ID:          uuid.NewString(),
		Reason:      reason,
		RequestedAt: time.Now(),
	}
	err := s.triggers.TryEnqueue(ctx, r)
	switch {
	case err == nil:
		s.logger.Debug(ctx, "cycle queued", logger.String("cycle_id", r.ID), logger.String("reason", reason))
		return nil
	case errors.Is(err, queue.ErrPending):
		s.logger.Debug(ctx, "cycle skipped, one is already pending", logger.String("reason", reason))
		return fmt.Errorf("%w: %w", ErrRefreshPending, err)
	default:
		return err
	}
}

// Stop cancels any in-flight cycle and releases every component.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping dashboard service")

	s.cancel()
	s.loops.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	defer cancel()
	if err := s.worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
	}
	_ = s.triggers.Close()
	_ = s.store.Close()

	s.started = false
	s.logger.Info(ctx, "dashboard service stopped")
}

// RunCycle fetches every endpoint and applies the outcome to the store. A
// cycle cancelled mid-flight writes nothing.
func (s *Service) RunCycle(ctx context.Context, r model.CycleRequest) error {
	attempted := time.Now()
	batch, err := s.fetch(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	snap, applyErr := s.store.Apply(ctx, repository.Update{
		CycleID:     r.ID,
		AttemptedAt: attempted,
		Latest:      batch.Latest,
		History:     batch.History,
		Clusters:    batch.Clusters,
		Err:         err,
	})
	if applyErr != nil {
		return fmt.Errorf("apply cycle %s: %w", r.ID, applyErr)
	}

	s.logger.Info(ctx, "cycle applied",
		logger.String("cycle_id", r.ID),
		logger.String("reason", r.Reason),
		logger.Int64("version", int64(snap.Version)),
		logger.Int("history", len(snap.History)),
		logger.Int("merged", len(snap.Merged)),
		logger.Int("clusters", len(snap.ClusterStats)),
		logger.Strings("failed", snap.Status.FailedEndpoints),
	)

	if err != nil {
		return err
	}
	if batch.AllFailed() {
		return ErrBackendUnavailable
	}
	return nil
}

// fetch runs FetchAll and turns a panic, in the barrier or in any fetch
// task, into a cycle error.
func (s *Service) fetch(ctx context.Context) (b backend.Batch, err error) {
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordErrorByComponent("service", "cycle_panic")
			err = fmt.Errorf("%w: %v", ErrCyclePanic, p)
		}
	}()
	b = s.fetcher.FetchAll(ctx)
	if perr := b.Panicked(); perr != nil {
		metrics.RecordErrorByComponent("service", "cycle_panic")
		return b, fmt.Errorf("%w: %w", ErrCyclePanic, perr)
	}
	return b, nil
}

// Refresh requests a manual cycle.
func (s *Service) Refresh(ctx context.Context) (model.CycleRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.CycleRequest{}, ErrNotStarted
	}
	r := model.CycleRequest{ID: uuid.NewString(), Reason: model.ReasonManual, RequestedAt: time.Now()}
	if err := s.triggers.TryEnqueue(ctx, r); err != nil {
		if errors.Is(err, queue.ErrPending) {
			return model.CycleRequest{}, fmt.Errorf("%w: %w", ErrRefreshPending, err)
		}
		return model.CycleRequest{}, err
	}
	return r, nil
}

// Snapshot returns the current dashboard snapshot.
func (s *Service) Snapshot(ctx context.Context) model.Snapshot {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return model.Empty()
	}
	return store.Snapshot(ctx)
}

// Subscribe returns a channel of snapshots and its cancel func. Before
// Start the channel is already closed.
func (s *Service) Subscribe() (<-chan model.Snapshot, func()) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		ch := make(chan model.Snapshot)
		close(ch)
		return ch, func() {}
	}
	return store.Subscribe(defaultSubscriberBuf)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"backendUrl":     s.backendURL,
		"pollIntervalMs": s.pollInterval.Milliseconds(),
		"fetchTimeoutMs": s.fetchTimeout.Milliseconds(),
		"mirrorEnabled":  s.mirror != nil,
	}

	if s.started {
		snap := s.store.Snapshot(context.Background())
		ws := s.worker.Stats()
		stats["pendingTriggers"] = s.triggers.Len()
		stats["cycleInFlight"] = ws.InFlight
		stats["cyclesRun"] = ws.Runs
		stats["cyclesFailed"] = ws.Failures
		stats["snapshotVersion"] = snap.Version
		stats["connected"] = snap.Status.Connected
		stats["stale"] = snap.Status.Stale
		stats["lastAttemptAt"] = snap.Status.LastAttemptAt
		stats["fetchedAt"] = snap.FetchedAt
		stats["subscribers"] = s.store.Subscribers()
		stats["historyRecords"] = len(snap.History)
		stats["mergedRecords"] = len(snap.Merged)
	}

	return stats
}
