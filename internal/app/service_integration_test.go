package service_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	service "github.com/okian/chargeview/internal/app"
	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/internal/domain/reconcile"
	"github.com/okian/chargeview/internal/fakebackend"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service polling a fake backend", t, func() {
		cfg := fakebackend.DefaultConfig()
		fb := fakebackend.NewServer(fakebackend.NewGenerator(cfg).Generate())
		srv := httptest.NewServer(fb.Handler())
		defer srv.Close()

		svc := service.New(
			service.WithBackendURL(srv.URL),
			service.WithPollInterval(time.Hour),
			service.WithFetchTimeout(time.Second),
			service.WithReconcilerOptions(reconcile.WithCostWindow(3)),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		first, ok := waitVersion(svc, 0)
		So(ok, ShouldBeTrue)

		Convey("Then the first snapshot is complete", func() {
			So(first.Status.Connected, ShouldBeTrue)
			So(first.Status.Stale, ShouldBeFalse)
			So(first.History, ShouldHaveLength, cfg.Sessions)
			So(first.Latest, ShouldNotBeNil)
			So(first.Merged, ShouldNotBeEmpty)
			So(len(first.Merged), ShouldBeLessThan, cfg.Sessions)
			So(first.Reports.CostDistribution, ShouldHaveLength, 3)
			So(first.Summary.RecordCount, ShouldEqual, cfg.Sessions)

			for i := 1; i < len(first.History); i++ {
				if first.History[i].TimestampValid {
					So(first.History[i-1].At.After(first.History[i].At), ShouldBeFalse)
				}
			}
			for _, m := range first.Merged {
				So(m.Temperature.Valid(), ShouldBeTrue)
				So(m.Energy.Valid(), ShouldBeTrue)
				So(m.Color, ShouldNotBeEmpty)
			}
		})

		Convey("When history starts failing and a refresh is requested", func() {
			fb.SetFailing(fakebackend.PathHistory, true)
			fb.SetDataset(fakebackend.Dataset{History: nil, Clusters: nil})

			_, err := svc.Refresh(ctx)
			So(err, ShouldBeNil)
			snap, ok := waitVersion(svc, first.Version)
			So(ok, ShouldBeTrue)

			Convey("Then history is kept while clusters are updated", func() {
				So(snap.Status.Stale, ShouldBeTrue)
				So(snap.Status.Connected, ShouldBeTrue)
				So(snap.Status.FailedEndpoints, ShouldResemble, []string{model.EndpointHistory})
				So(snap.History, ShouldHaveLength, cfg.Sessions)
				So(snap.Clusters, ShouldBeEmpty)
				So(snap.Merged, ShouldBeEmpty)
				So(snap.FetchedAt.After(first.FetchedAt) || snap.FetchedAt.Equal(first.FetchedAt), ShouldBeTrue)
			})
		})

		Convey("When every endpoint fails", func() {
			for _, p := range []string{fakebackend.PathLatest, fakebackend.PathHistory, fakebackend.PathClusters} {
				fb.SetFailing(p, true)
			}
			_, err := svc.Refresh(ctx)
			So(err, ShouldBeNil)
			snap, ok := waitVersion(svc, first.Version)
			So(ok, ShouldBeTrue)

			Convey("Then the snapshot keeps its data and reports disconnected", func() {
				So(snap.Status.Connected, ShouldBeFalse)
				So(snap.Status.Message, ShouldNotBeEmpty)
				So(snap.History, ShouldHaveLength, len(first.History))
				So(snap.Merged, ShouldHaveLength, len(first.Merged))
				So(snap.FetchedAt, ShouldEqual, first.FetchedAt)
				So(waitUntil(func() bool { return svc.GetStats()["cyclesFailed"] == uint64(1) }), ShouldBeTrue)
			})
		})

		Convey("When subscribed", func() {
			ch, cancel := svc.Subscribe()
			defer cancel()

			_, err := svc.Refresh(ctx)
			So(err, ShouldBeNil)

			Convey("Then the next snapshot is pushed", func() {
				select {
				case snap := <-ch:
					So(snap.Version, ShouldBeGreaterThan, first.Version)
				case <-time.After(3 * time.Second):
					So("no snapshot pushed", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestServiceRefreshCoalescing(t *testing.T) {
	Convey("Given a slow backend", t, func() {
		fb := fakebackend.NewServer(fakebackend.NewGenerator(fakebackend.DefaultConfig()).Generate())
		fb.SetLatency(300 * time.Millisecond)
		srv := httptest.NewServer(fb.Handler())
		defer srv.Close()

		svc := service.New(service.WithBackendURL(srv.URL), service.WithPollInterval(time.Hour))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(waitUntil(func() bool { return svc.GetStats()["cycleInFlight"] == true }), ShouldBeTrue)

		Convey("When refreshes pile up during the startup cycle", func() {
			_, first := svc.Refresh(ctx)
			_, second := svc.Refresh(ctx)

			Convey("Then one waits and the rest are rejected", func() {
				So(first, ShouldBeNil)
				So(errors.Is(second, service.ErrRefreshPending), ShouldBeTrue)
			})
		})
	})

	Convey("Given a cycle in flight when the service stops", t, func() {
		fb := fakebackend.NewServer(fakebackend.NewGenerator(fakebackend.DefaultConfig()).Generate())
		fb.SetLatency(2 * time.Second)
		srv := httptest.NewServer(fb.Handler())
		defer srv.Close()

		svc := service.New(service.WithBackendURL(srv.URL), service.WithPollInterval(time.Hour))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		So(waitUntil(func() bool { return svc.GetStats()["cycleInFlight"] == true }), ShouldBeTrue)

		start := time.Now()
		svc.Stop()

		Convey("Then the fetch is abandoned and nothing is written", func() {
			So(time.Since(start), ShouldBeLessThan, 1500*time.Millisecond)
			So(svc.Snapshot(ctx).Version, ShouldEqual, 0)
		})
	})
}
