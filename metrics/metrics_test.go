package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func TestMetrics(t *testing.T) {
	c := quicktest.New(t)
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessagesEnqueued.WithLabelValues("dhcp_server_leases").Inc()
	m.RowsPersisted.WithLabelValues("dhcp_server_leases").Add(3)
	m.MessagesDropped.WithLabelValues("nope", ReasonUnknownFlow).Inc()

	c.Assert(testutil.ToFloat64(m.RowsPersisted.WithLabelValues("dhcp_server_leases")), quicktest.Equals, 3.0)
	c.Assert(testutil.ToFloat64(m.MessagesDropped.WithLabelValues("nope", ReasonUnknownFlow)), quicktest.Equals, 1.0)

	length := 4
	m.WatchQueue(func() int { return length })
	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP netcollector_queue_length Batches waiting for the persistence worker
# TYPE netcollector_queue_length gauge
netcollector_queue_length 4
`), "netcollector_queue_length")
	c.Assert(err, quicktest.IsNil)
}

func TestServerEndpoints(t *testing.T) {
	c := quicktest.New(t)
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.WorkerUp.WithLabelValues("router").Set(1)

	srv := NewServer("127.0.0.1:0", reg, zaptest.NewLogger(t).Sugar())
	up := true
	srv.AddWorkerCheck("router", func() bool { return up })
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	c.Assert(rec.Code, quicktest.Equals, http.StatusOK)

	up = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	c.Assert(rec.Code, quicktest.Equals, http.StatusServiceUnavailable)

	// Liveness checks count towards readiness too.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	c.Assert(rec.Code, quicktest.Equals, http.StatusServiceUnavailable)

	// A failing readiness check leaves liveness alone.
	up = true
	var storeErr error = errors.New("store is disconnected")
	srv.AddReadinessCheck("store", func() error { return storeErr })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	c.Assert(rec.Code, quicktest.Equals, http.StatusServiceUnavailable)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	c.Assert(rec.Code, quicktest.Equals, http.StatusOK)

	storeErr = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	c.Assert(rec.Code, quicktest.Equals, http.StatusOK)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	c.Assert(rec.Code, quicktest.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), quicktest.Contains, `netcollector_worker_up{worker="router"} 1`)
}
