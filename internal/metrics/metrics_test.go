package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/metrics"
	"github.com/rijan-wa/gateway/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type fakeHeartbeater struct{ at time.Time }

func (f fakeHeartbeater) LastHeartbeat() time.Time { return f.at }

func TestHealthAlwaysReturns200(t *testing.T) {
	st := newStore(t)
	reg := metrics.New(st)
	srv := metrics.NewServer(reg, st, nil, time.Minute)
	mux := http.NewServeMux()
	srv.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReturns503WhenWorkerHeartbeatIsStale(t *testing.T) {
	st := newStore(t)
	reg := metrics.New(st)
	workers := map[string]metrics.Heartbeater{
		"sender": fakeHeartbeater{at: time.Now().Add(-time.Hour)},
	}
	srv := metrics.NewServer(reg, st, workers, time.Minute)
	mux := http.NewServeMux()
	srv.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyReturns200WhenEverythingFresh(t *testing.T) {
	st := newStore(t)
	reg := metrics.New(st)
	workers := map[string]metrics.Heartbeater{
		"sender": fakeHeartbeater{at: time.Now()},
		"fanout": fakeHeartbeater{at: time.Now()},
	}
	srv := metrics.NewServer(reg, st, workers, time.Minute)
	mux := http.NewServeMux()
	srv.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshPopulatesDeviceStatusGauge(t *testing.T) {
	st := newStore(t)
	tenant, err := st.CreateTenant("tenant_1", "Acme", "hash")
	require.NoError(t, err)
	_, err = st.CreateDevice("device_1", tenant.ID, "Primary")
	require.NoError(t, err)

	reg := metrics.New(st)
	require.NoError(t, reg.Refresh())

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.DevicesByStatus.WithLabelValues(store.DeviceStatusDisconnected)))
}

func TestRunRefreshStopsOnContextCancel(t *testing.T) {
	st := newStore(t)
	reg := metrics.New(st)
	srv := metrics.NewServer(reg, st, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.RunRefresh(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRefresh did not stop after cancel")
	}
}
