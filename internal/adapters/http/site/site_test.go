package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler", t, func() {
		mux := http.NewServeMux()

		Convey("When registering the site handler", func() {
			Register(context.Background(), mux)

			get := func(path string) *httptest.ResponseRecorder {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				return w
			}

			Convey("Then it should serve the dashboard at /", func() {
				w := get("/")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, `id="status-banner"`)
				So(w.Body.String(), ShouldContainSubstring, `id="refresh-control"`)
			})

			Convey("And it should serve the same page at /dashboard", func() {
				w := get("/dashboard")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `id="last-update"`)
			})

			Convey("And it should serve static assets", func() {
				w := get("/static/app.js")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "/api/stream")

				So(get("/static/style.css").Code, ShouldEqual, http.StatusOK)
			})

			Convey("And it should not handle unknown paths", func() {
				So(get("/some-asset").Code, ShouldEqual, http.StatusNotFound)
				So(get("/dashboard/extra").Code, ShouldEqual, http.StatusNotFound)
				So(get("/static/missing.js").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And it should reject writes", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestRegisterNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		Convey("Then Register panics", func() {
			So(func() { Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}
