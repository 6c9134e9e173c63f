package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/rankstream/internal/adapters/http/api"
	"github.com/okian/rankstream/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		provider := &mockStatsProvider{stats: map[string]interface{}{
			"started": true,
			"runs":    3,
		}}
		server := api.NewServer(provider)
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)

		Convey("When requesting /healthz", func() {
			w := serve(mux, http.MethodGet, "/healthz")

			Convey("Then it should report ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
			})
		})

		Convey("When posting to /healthz", func() {
			w := serve(mux, http.MethodPost, "/healthz")

			Convey("Then it should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Body.String(), ShouldContainSubstring, "method_not_allowed")
			})
		})

		Convey("When requesting /stats", func() {
			w := serve(mux, http.MethodGet, "/stats")

			Convey("Then it should return the provider's stats", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["started"], ShouldEqual, true)
				So(body["runs"], ShouldEqual, 3.0)
			})
		})

		Convey("When requesting /metrics after some traffic", func() {
			metrics.RecordRun("hot_score", "ok")
			_ = serve(mux, http.MethodGet, "/healthz")
			w := serve(mux, http.MethodGet, "/metrics")

			Convey("Then the exposition should include ranking and http metrics", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := w.Body.String()
				So(body, ShouldContainSubstring, "rankstream_ranking_runs_total")
				So(body, ShouldContainSubstring, "rankstream_ranking_http_requests_total")
				So(body, ShouldContainSubstring, `endpoint="healthz"`)
			})
		})

		Convey("When requesting an unknown path", func() {
			w := serve(mux, http.MethodGet, "/leaderboard")

			Convey("Then it should not be found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})

	Convey("Given a server without a stats provider", t, func() {
		h := api.NewServer(nil).Handler(context.Background())

		Convey("Then /stats should be unavailable", func() {
			w := serve(h, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped by the metrics middleware", t, func() {
		var called bool
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}, "teapot")

		Convey("When it serves a request", func() {
			w := serve(h, http.MethodGet, "/teapot")

			Convey("Then the status and body should pass through", func() {
				So(called, ShouldBeTrue)
				So(w.Code, ShouldEqual, http.StatusTeapot)
				So(w.Body.String(), ShouldEqual, "short and stout")
			})
		})
	})
}

func TestServer_Serve(t *testing.T) {
	Convey("Given a server listening on a random port", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- api.NewServer(&mockStatsProvider{}).Serve(ctx, ln) }()

		Convey("When a client requests /healthz", func() {
			resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
			So(err, ShouldBeNil)
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			Convey("Then it should answer", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(string(body)), ShouldEqual, `{"status":"ok"}`)
			})
		})

		cancel()
		select {
		case err := <-done:
			So(err, ShouldBeNil)
		case <-time.After(5 * time.Second):
			So("server did not stop", ShouldBeEmpty)
		}
	})

	Convey("Given an address that cannot be bound", t, func() {
		err := api.NewServer(nil).ListenAndServe(context.Background(), "256.0.0.1:bad")

		Convey("Then it should fail with a serve error", func() {
			So(errors.Is(err, api.ErrServe), ShouldBeTrue)
		})
	})
}
