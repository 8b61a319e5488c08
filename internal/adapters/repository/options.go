package repository

import (
	"time"

	"github.com/okian/chargeview/internal/domain/reconcile"
	"github.com/okian/chargeview/pkg/logger"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithReconciler sets the reconciler used to derive views.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *MemoryStore) {
		if r != nil {
			s.reconciler = r
		}
	}
}

// WithMirror mirrors every applied state.
func WithMirror(m Mirror) Option {
	return func(s *MemoryStore) {
		s.mirror = m
	}
}

// WithMirrorTimeout bounds a single mirror write.
func WithMirrorTimeout(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.mirrorTimeout = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
