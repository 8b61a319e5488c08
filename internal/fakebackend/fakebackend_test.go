package fakebackend_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/chargeview/internal/fakebackend"
	logging "github.com/okian/chargeview/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator(t *testing.T) {
	Convey("Given a generator", t, func() {
		cfg := fakebackend.DefaultConfig()
		d := fakebackend.NewGenerator(cfg).Generate()

		Convey("Then it produces the configured sizes", func() {
			So(d.History, ShouldHaveLength, cfg.Sessions)
			So(d.Clusters, ShouldHaveLength, cfg.Devices-cfg.Unclustered)
		})

		Convey("Then the same seed gives the same labels", func() {
			again := fakebackend.NewGenerator(cfg).Generate()
			So(again.Clusters, ShouldResemble, d.Clusters)
		})

		Convey("Then latest is the newest session", func() {
			latest := d.Latest()
			So(latest, ShouldNotBeNil)
			for _, r := range d.History {
				So(r["timestamp"].(string) <= latest["timestamp"].(string), ShouldBeTrue)
			}
		})
	})

	Convey("Given an empty dataset", t, func() {
		So(fakebackend.Dataset{}.Latest(), ShouldBeNil)
	})
}

func TestServer(t *testing.T) {
	Convey("Given a fake backend", t, func() {
		_ = logging.Init()
		fb := fakebackend.NewServer(fakebackend.NewGenerator(fakebackend.DefaultConfig()).Generate())
		srv := httptest.NewServer(fb.Handler())
		defer srv.Close()

		Convey("When history is requested", func() {
			resp, err := http.Get(srv.URL + fakebackend.PathHistory)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			var out []map[string]any
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(out, ShouldNotBeEmpty)
			So(fb.Hits(fakebackend.PathHistory), ShouldEqual, 1)
		})

		Convey("When an endpoint is failing", func() {
			resp, err := http.Post(srv.URL+fakebackend.PathFail+"?path=/api/clusters&on=true", "", nil)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)

			resp, err = http.Get(srv.URL + fakebackend.PathClusters)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)

			resp, err = http.Get(srv.URL + fakebackend.PathLatest)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("When the toggle is malformed", func() {
			resp, err := http.Post(srv.URL+fakebackend.PathFail+"?path=/api/clusters", "", nil)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}
