package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/store"
)

// TestRetryExhaustionMakesRetryCountPlusOneAttempts pins down spec.md's
// I7/S4: retry_count is retries *in addition to* the initial attempt,
// so a webhook with retry_count=3 against an always-failing receiver
// must be attempted exactly four times before the DLQ row is written.
func TestRetryExhaustionMakesRetryCountPlusOneAttempts(t *testing.T) {
	original := backoffSchedule
	backoffSchedule = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { backoffSchedule = original })

	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tenant, err := s.CreateTenant("tenant_retry", "Acme", "hash")
	require.NoError(t, err)
	_, err = s.CreateWebhook("wh_retry", tenant.ID, srv.URL, "", []string{"message.received"}, 3, 2000)
	require.NoError(t, err)

	p := New(s, 1, nil)
	defer p.Shutdown()

	p.Capture(context.Background(), "evt_retry", tenant.ID, "device_1", "message.received", map[string]string{})

	require.Eventually(t, func() bool {
		n, err := s.CountDLQ()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, int32(4), atomic.LoadInt32(&attempts))

	logs, err := s.ListWebhookLogs("wh_retry", 10)
	require.NoError(t, err)
	require.Len(t, logs, 4)
}
