package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/internal/domain/reconcile"
	"github.com/okian/chargeview/pkg/logger"
	"github.com/okian/chargeview/pkg/metrics"
)

const defaultMirrorTimeout = 2 * time.Second

// MemoryStore keeps the snapshot in memory. Apply is the only mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	inputs   reconcile.Inputs
	snapshot model.Snapshot
	closed   bool

	subs   map[int]chan model.Snapshot
	nextID int

	reconciler    *reconcile.Reconciler
	mirror        Mirror
	mirrorTimeout time.Duration
	now           func() time.Time
	logger        logger.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		snapshot:      model.Empty(),
		subs:          make(map[int]chan model.Snapshot),
		reconciler:    reconcile.New(),
		mirrorTimeout: defaultMirrorTimeout,
		now:           time.Now,
		logger:        logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply merges the successful parts of u into the stored inputs, derives
// every view again and publishes the result.
func (s *MemoryStore) Apply(ctx context.Context, u Update) (model.Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Snapshot{}, ErrClosed
	}

	failed := slices.Clone(model.Endpoints)
	if u.Err == nil {
		failed = s.merge(u)
	}

	attempted := u.AttemptedAt
	if attempted.IsZero() {
		attempted = s.now()
	}

	prev := s.snapshot
	next, excluded := s.derive(s.inputs)
	next.Version = prev.Version + 1
	next.FetchedAt = prev.FetchedAt
	if len(failed) < len(model.Endpoints) {
		next.FetchedAt = attempted
	}
	next.Status = status(u, failed, attempted)

	s.snapshot = next
	s.publish(next)
	state := State{Version: next.Version, FetchedAt: next.FetchedAt, Inputs: s.inputs, Snapshot: next}
	s.mu.Unlock()

	s.record(next, excluded)
	s.save(ctx, state)
	return next, nil
}

// Restore seeds the store from mirrored state. The restored snapshot is
// marked stale until the next cycle.
func (s *MemoryStore) Restore(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.inputs = st.Inputs
	next, _ := s.derive(st.Inputs)
	next.Version = st.Version
	next.FetchedAt = st.FetchedAt
	next.Status = model.Status{
		Connected:     st.Snapshot.Status.Connected,
		Stale:         true,
		Message:       "restored from mirror",
		LastAttemptAt: st.Snapshot.Status.LastAttemptAt,
		CycleID:       st.Snapshot.Status.CycleID,
	}
	s.snapshot = next
	s.publish(next)
	return nil
}

// Warm loads state from the mirror, if any, and restores it.
func (s *MemoryStore) Warm(ctx context.Context) (bool, error) {
	if s.mirror == nil {
		return false, nil
	}
	st, ok, err := s.mirror.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load mirror: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := s.Restore(st); err != nil {
		return false, err
	}
	s.logger.Info(ctx, "snapshot restored from mirror", logger.Int64("version", int64(st.Version)))
	return true, nil
}

// merge copies every successful endpoint result into the inputs and returns
// the endpoints that failed. Must be called with s.mu held.
func (s *MemoryStore) merge(u Update) []string {
	var failed []string
	if v, ok := u.Latest.Get(); ok {
		s.inputs.Latest = v
	} else {
		failed = append(failed, model.EndpointLatest)
	}
	if v, ok := u.History.Get(); ok {
		s.inputs.History = v
	} else {
		failed = append(failed, model.EndpointHistory)
	}
	if v, ok := u.Clusters.Get(); ok {
		s.inputs.Clusters = v
	} else {
		failed = append(failed, model.EndpointClusters)
	}
	return failed
}

func (s *MemoryStore) derive(in reconcile.Inputs) (model.Snapshot, reconcile.Exclusions) {
	d := s.reconciler.Reconcile(in)
	snap := model.Empty()
	snap.Latest = d.Latest
	snap.History = d.History
	snap.Clusters = d.Assignments
	snap.Merged = d.Merged
	snap.ClusterStats = d.Stats
	snap.Summary = d.Summary
	snap.Reports = d.Reports
	return snap, d.Excluded
}

func status(u Update, failed []string, attempted time.Time) model.Status {
	st := model.Status{
		Connected:       len(failed) < len(model.Endpoints),
		Stale:           len(failed) > 0,
		FailedEndpoints: failed,
		LastAttemptAt:   attempted,
		CycleID:         u.CycleID,
	}
	switch {
	case u.Err != nil:
		st.Message = "cycle failed: " + u.Err.Error()
	case !st.Connected:
		st.Message = "backend unreachable: all endpoints failed"
	case st.Stale:
		st.Message = "partial update: " + strings.Join(failed, ", ") + " unavailable"
	}
	return st
}

// publish hands snap to every subscriber without blocking. A subscriber
// that has not consumed the previous snapshot gets the newer one instead.
// Must be called with s.mu held.
func (s *MemoryStore) publish(snap model.Snapshot) {
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *MemoryStore) record(snap model.Snapshot, ex reconcile.Exclusions) {
	metrics.UpdateExcluded("unclustered", ex.Unclustered)
	metrics.UpdateExcluded("invalid_features", ex.InvalidFeatures)
	metrics.UpdateExcluded("invalid_assignment", ex.InvalidCluster)
	metrics.UpdateSnapshotVersion(snap.Version)
	metrics.UpdateSnapshotSizes(len(snap.History), len(snap.Merged), len(snap.ClusterStats), len(snap.Clusters))
	metrics.UpdateConnected(snap.Status.Connected)
	if !snap.FetchedAt.IsZero() {
		metrics.UpdateSnapshotLastSuccess(snap.FetchedAt.Unix())
	}
}

func (s *MemoryStore) save(ctx context.Context, st State) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTimeout)
	defer cancel()
	if err := s.mirror.Save(ctx, st); err != nil {
		metrics.RecordMirrorWrite("error")
		s.logger.Warn(ctx, "mirror write failed", logger.Error(err))
		return
	}
	metrics.RecordMirrorWrite("ok")
}

// Snapshot returns the current snapshot. Its slices are shared and must
// not be modified.
func (s *MemoryStore) Snapshot(_ context.Context) model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Subscribe registers a subscriber. The channel is closed by the returned
// cancel func or by Close.
func (s *MemoryStore) Subscribe(buffer int) (<-chan model.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan model.Snapshot, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (s *MemoryStore) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close closes every subscription. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	return nil
}
