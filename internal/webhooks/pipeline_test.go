package webhooks_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/store"
	"github.com/rijan-wa/gateway/internal/webhooks"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCaptureDeliversToMatchingWebhookWithValidSignature(t *testing.T) {
	var received int32
	var gotSig, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotSig = r.Header.Get("X-Rijan-Signature")
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestStore(t)
	tenant, err := s.CreateTenant("tenant_1", "Acme", "hash")
	require.NoError(t, err)
	_, err = s.CreateWebhook("wh_1", tenant.ID, srv.URL, "top-secret", []string{"message.received"}, 3, 2000)
	require.NoError(t, err)

	p := webhooks.New(s, 2, nil)
	defer p.Shutdown()

	p.Capture(context.Background(), "evt_1", tenant.ID, "device_1", "message.received", map[string]string{"text": "hi"})

	require.Eventually(t, func() bool { return atomic.LoadInt32(&received) == 1 }, time.Second, 10*time.Millisecond)

	var payload webhooks.Payload
	require.NoError(t, json.Unmarshal([]byte(gotBody), &payload))
	assert.Equal(t, "evt_1", payload.ID)
	assert.Equal(t, crypto.SignWebhookPayload("top-secret", []byte(gotBody)), gotSig)

	logs, err := s.ListWebhookLogs("wh_1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 200, *logs[0].StatusCode)
}

func TestCaptureSkipsNonMatchingWebhook(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestStore(t)
	tenant, _ := s.CreateTenant("tenant_2", "Globex", "hash2")
	_, err := s.CreateWebhook("wh_2", tenant.ID, srv.URL, "", []string{"device.connected"}, 3, 2000)
	require.NoError(t, err)

	p := webhooks.New(s, 1, nil)
	defer p.Shutdown()

	p.Capture(context.Background(), "evt_2", tenant.ID, "device_1", "message.received", map[string]string{})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&received))

	logs, err := s.ListWebhookLogs("wh_2", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 0)
}

func TestCaptureSendsToDLQAfterPermanentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := newTestStore(t)
	tenant, _ := s.CreateTenant("tenant_3", "Initech", "hash3")
	_, err := s.CreateWebhook("wh_3", tenant.ID, srv.URL, "", []string{"message.received"}, 3, 2000)
	require.NoError(t, err)

	p := webhooks.New(s, 1, nil)
	defer p.Shutdown()

	p.Capture(context.Background(), "evt_3", tenant.ID, "device_1", "message.received", map[string]string{})

	require.Eventually(t, func() bool {
		n, err := s.CountDLQ()
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}
