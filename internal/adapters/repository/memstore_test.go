package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/chargeview/internal/adapters/repository"
	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/internal/domain/reconcile"
	"github.com/okian/chargeview/internal/domain/types"
	logging "github.com/okian/chargeview/pkg/logger"
	"github.com/okian/chargeview/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(30 * time.Second)
)

func history() []model.RawRecord {
	return []model.RawRecord{
		{"id": 2.0, "timestamp": "2024-01-01T11:00:00Z", "temperature_c": 30.0, "energy_consumed_kwh": 6.0, "charging_cost_eur": 3.0},
		{"id": 1.0, "timestamp": "2024-01-01T10:00:00Z", "temperature_c": 20.0, "energy_consumed_kwh": 4.0, "charging_cost_eur": 2.0},
	}
}

func fullUpdate(id string, at time.Time, clusters []model.RawRecord) repository.Update {
	return repository.Update{
		CycleID:     id,
		AttemptedAt: at,
		Latest:      types.Ok(model.RawRecord{"id": 2.0}),
		History:     types.Ok(history()),
		Clusters:    types.Ok(clusters),
	}
}

// excluded reads the records_excluded gauge for reason from the service registry.
func excluded(reason string) float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != "chargeview_dashboard_records_excluded" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return -1
}

type memMirror struct {
	mu     sync.Mutex
	saved  []repository.State
	state  *repository.State
	err    error
	loadEr error
}

func (m *memMirror) Save(_ context.Context, st repository.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, st)
	return nil
}

func (m *memMirror) Load(_ context.Context) (repository.State, bool, error) {
	if m.loadEr != nil {
		return repository.State{}, false, m.loadEr
	}
	if m.state == nil {
		return repository.State{}, false, nil
	}
	return *m.state, true, nil
}

func TestMemoryStoreApply(t *testing.T) {
	Convey("Given an empty store", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		s := repository.NewMemoryStore()

		Convey("Then the initial snapshot is empty", func() {
			snap := s.Snapshot(ctx)
			So(snap.Version, ShouldEqual, 0)
			So(snap.History, ShouldBeEmpty)
			So(snap.Latest, ShouldBeNil)
		})

		Convey("When a full cycle is applied", func() {
			snap, err := s.Apply(ctx, fullUpdate("c1", t0, []model.RawRecord{
				{"device_id": 1.0, "cluster": 0.0},
				{"device_id": "2", "cluster": 1.0},
			}))
			So(err, ShouldBeNil)

			Convey("Then every view is derived", func() {
				So(snap.Version, ShouldEqual, 1)
				So(snap.History[0].Key, ShouldEqual, "1")
				So(snap.Merged, ShouldHaveLength, 2)
				So(snap.ClusterStats, ShouldHaveLength, 2)
				So(snap.Summary.TotalCost, ShouldEqual, 5)
				So(snap.Latest, ShouldNotBeNil)
				So(snap.FetchedAt, ShouldEqual, t0)
				So(snap.Status.Connected, ShouldBeTrue)
				So(snap.Status.Stale, ShouldBeFalse)
				So(s.Snapshot(ctx).Version, ShouldEqual, snap.Version)
			})

			Convey("And a later cycle loses history", func() {
				u := fullUpdate("c2", t1, []model.RawRecord{{"device_id": 1.0, "cluster": 5.0}})
				u.History = types.Fail[[]model.RawRecord](errors.New("timeout"))
				snap, err := s.Apply(ctx, u)
				So(err, ShouldBeNil)

				Convey("Then history keeps its previous value and derived views follow the new clusters", func() {
					So(snap.Version, ShouldEqual, 2)
					So(snap.History, ShouldHaveLength, 2)
					So(snap.Merged, ShouldHaveLength, 1)
					So(snap.Merged[0].Cluster, ShouldEqual, 5)
					So(snap.Status.Stale, ShouldBeTrue)
					So(snap.Status.Connected, ShouldBeTrue)
					So(snap.Status.FailedEndpoints, ShouldResemble, []string{model.EndpointHistory})
					So(snap.Status.Message, ShouldContainSubstring, "history")
					So(snap.FetchedAt, ShouldEqual, t1)
				})
			})

			Convey("And a later cycle fails on every endpoint", func() {
				boom := errors.New("connection refused")
				snap, err := s.Apply(ctx, repository.Update{
					CycleID:     "c3",
					AttemptedAt: t1,
					Latest:      types.Fail[model.RawRecord](boom),
					History:     types.Fail[[]model.RawRecord](boom),
					Clusters:    types.Fail[[]model.RawRecord](boom),
				})
				So(err, ShouldBeNil)

				Convey("Then data is kept and the snapshot reports disconnected", func() {
					So(snap.Merged, ShouldHaveLength, 2)
					So(snap.Status.Connected, ShouldBeFalse)
					So(snap.Status.LastAttemptAt, ShouldEqual, t1)
					So(snap.FetchedAt, ShouldEqual, t0)
					So(snap.Status.FailedEndpoints, ShouldResemble, model.Endpoints)
				})
			})

			Convey("And a later cycle fails as a whole", func() {
				u := fullUpdate("c4", t1, nil)
				u.Err = errors.New("panic in fetch")
				snap, err := s.Apply(ctx, u)
				So(err, ShouldBeNil)

				Convey("Then even the successful parts are ignored", func() {
					So(snap.ClusterStats, ShouldHaveLength, 2)
					So(snap.Status.Connected, ShouldBeFalse)
					So(snap.Status.Message, ShouldContainSubstring, "panic in fetch")
				})
			})
		})

		Convey("When the same inputs are applied twice", func() {
			clusters := []model.RawRecord{{"device_id": 1.0, "cluster": 0.0}}
			a, _ := s.Apply(ctx, fullUpdate("a", t0, clusters))
			b, _ := s.Apply(ctx, fullUpdate("b", t0, clusters))

			Convey("Then the derived views are identical", func() {
				So(b.Merged, ShouldResemble, a.Merged)
				So(b.ClusterStats, ShouldResemble, a.ClusterStats)
				So(b.Reports, ShouldResemble, a.Reports)
				So(b.Version, ShouldEqual, a.Version+1)
			})

			Convey("Then exclusions describe the snapshot, not the number of cycles", func() {
				So(excluded("unclustered"), ShouldEqual, 1)

				u := fullUpdate("c", t1, clusters)
				u.History = types.Fail[[]model.RawRecord](errors.New("timeout"))
				_, err := s.Apply(ctx, u)
				So(err, ShouldBeNil)
				So(excluded("unclustered"), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a store with a custom reconciler", t, func() {
		_ = logging.Init()
		s := repository.NewMemoryStore(repository.WithReconciler(reconcile.New(reconcile.WithPalette([]string{"#123456"}))))
		snap, _ := s.Apply(context.Background(), fullUpdate("c", t0, []model.RawRecord{{"device_id": 1.0, "cluster": 9.0}}))
		So(snap.Merged[0].Color, ShouldEqual, "#123456")
	})
}

func TestMemoryStoreSubscribe(t *testing.T) {
	Convey("Given a store with a subscriber", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		s := repository.NewMemoryStore()
		ch, cancel := s.Subscribe(1)
		So(s.Subscribers(), ShouldEqual, 1)

		Convey("When snapshots are applied faster than they are read", func() {
			for i := range 3 {
				_, err := s.Apply(ctx, fullUpdate("c", t0.Add(time.Duration(i)*time.Second), nil))
				So(err, ShouldBeNil)
			}

			Convey("Then the subscriber sees the newest one", func() {
				snap := <-ch
				So(snap.Version, ShouldEqual, 3)
			})
		})

		Convey("When the subscription is cancelled", func() {
			cancel()
			cancel()

			Convey("Then the channel is closed", func() {
				_, ok := <-ch
				So(ok, ShouldBeFalse)
				So(s.Subscribers(), ShouldEqual, 0)
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			Convey("Then subscribers are released and Apply fails", func() {
				_, ok := <-ch
				So(ok, ShouldBeFalse)
				_, err := s.Apply(ctx, fullUpdate("late", t1, nil))
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				So(s.Snapshot(ctx).Version, ShouldEqual, 0)
				cancel()
			})

			Convey("Then new subscriptions are closed immediately", func() {
				late, _ := s.Subscribe(1)
				_, ok := <-late
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestMemoryStoreMirror(t *testing.T) {
	Convey("Given a store with a mirror", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		m := &memMirror{}
		s := repository.NewMemoryStore(repository.WithMirror(m))

		Convey("When a cycle is applied", func() {
			_, err := s.Apply(ctx, fullUpdate("c1", t0, []model.RawRecord{{"device_id": 1.0, "cluster": 0.0}}))
			So(err, ShouldBeNil)

			Convey("Then the raw inputs are mirrored", func() {
				So(m.saved, ShouldHaveLength, 1)
				So(m.saved[0].Version, ShouldEqual, 1)
				So(m.saved[0].Inputs.History, ShouldHaveLength, 2)
				So(m.saved[0].Snapshot.Merged, ShouldHaveLength, 1)
			})
		})

		Convey("When the mirror fails", func() {
			m.err = errors.New("redis down")
			_, err := s.Apply(ctx, fullUpdate("c1", t0, nil))

			Convey("Then the cycle still succeeds", func() {
				So(err, ShouldBeNil)
				So(s.Snapshot(ctx).Version, ShouldEqual, 1)
			})
		})

		Convey("When warming from mirrored state", func() {
			m.state = &repository.State{
				Version:   7,
				FetchedAt: t0,
				Inputs: reconcile.Inputs{
					History:  history(),
					Clusters: []model.RawRecord{{"device_id": 2.0, "cluster": 3.0}},
				},
			}
			ok, err := s.Warm(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			Convey("Then views are derived again and marked stale", func() {
				snap := s.Snapshot(ctx)
				So(snap.Version, ShouldEqual, 7)
				So(snap.Merged, ShouldHaveLength, 1)
				So(snap.Merged[0].Cluster, ShouldEqual, 3)
				So(snap.Status.Stale, ShouldBeTrue)
			})

			Convey("And the next cycle continues the version sequence", func() {
				snap, _ := s.Apply(ctx, fullUpdate("next", t1, nil))
				So(snap.Version, ShouldEqual, 8)
			})
		})

		Convey("When the mirror is empty", func() {
			ok, err := s.Warm(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("When the mirror cannot be read", func() {
			m.loadEr = errors.New("denied")
			_, err := s.Warm(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}
