// Package repository holds the reconciled dashboard snapshot. The store is
// the single place the snapshot changes: a cycle outcome goes in, the
// derived views are recomputed and subscribers are notified.
package repository

import (
	"context"
	"time"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/internal/domain/reconcile"
	"github.com/okian/chargeview/internal/domain/types"
)

// Update is the outcome of one fetch cycle. Each endpoint result is applied
// only when it succeeded. Err marks a cycle that failed as a whole.
type Update struct {
	CycleID     string
	AttemptedAt time.Time
	Latest      types.Result[model.RawRecord]
	History     types.Result[[]model.RawRecord]
	Clusters    types.Result[[]model.RawRecord]
	Err         error
}

// Store provides access to the dashboard snapshot.
type Store interface {
	// Apply merges a cycle outcome and returns the new snapshot.
	// Returns ErrClosed after Close.
	Apply(ctx context.Context, u Update) (model.Snapshot, error)

	// Snapshot returns the current snapshot.
	Snapshot(ctx context.Context) model.Snapshot

	// Subscribe returns a channel receiving every new snapshot and a func
	// that cancels the subscription.
	Subscribe(buffer int) (<-chan model.Snapshot, func())

	// Close releases subscribers; later Apply calls fail.
	Close() error
}

// Mirror persists store state outside the process for warm starts.
type Mirror interface {
	Save(ctx context.Context, s State) error
	Load(ctx context.Context) (State, bool, error)
}

// State is what a Mirror persists: the raw inputs, so the store can
// re-derive every view after a restart, plus the snapshot for external
// readers.
type State struct {
	Version   uint64           `json:"version"`
	FetchedAt time.Time        `json:"fetchedAt"`
	Inputs    reconcile.Inputs `json:"inputs"`
	Snapshot  model.Snapshot   `json:"snapshot"`
}
