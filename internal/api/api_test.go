package api_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/api"
	"github.com/rijan-wa/gateway/internal/authstore"
	"github.com/rijan-wa/gateway/internal/config"
	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/device"
	"github.com/rijan-wa/gateway/internal/lock"
	"github.com/rijan-wa/gateway/internal/outbox"
	"github.com/rijan-wa/gateway/internal/protocolclient"
	"github.com/rijan-wa/gateway/internal/ratelimit"
	"github.com/rijan-wa/gateway/internal/store"
	"github.com/rijan-wa/gateway/internal/webhooks"
)

const testMasterKey = "let-me-in"

type harness struct {
	server *httptest.Server
	store  *store.Store
	prim   *crypto.Primitives
	tenant *store.Tenant
	token  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sum := sha256.Sum256([]byte(testMasterKey))
	prim, err := crypto.New(hex.EncodeToString(sum[:]))
	require.NoError(t, err)

	token, err := prim.IssueTenantToken("tenant_1", time.Hour)
	require.NoError(t, err)
	tenant, err := st.CreateTenant("tenant_1", "Acme", crypto.TokenFingerprint(token))
	require.NoError(t, err)

	auth, err := authstore.New(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	fo := webhooks.New(st, 1, nil)
	t.Cleanup(fo.Shutdown)

	eng := device.New(st, auth, fo, lock.New(st, "instance_test"),
		protocolclient.NewFakeFactory(), "instance_test", device.Config{
			LockTTL: 5 * time.Second, LockRefreshInterval: 50 * time.Millisecond,
			LockAcquireTimeout: 200 * time.Millisecond, ReconnectMaxBackoff: 200 * time.Millisecond,
			ReconnectMaxRetries: 1, QRExpiry: time.Second,
		}, nil)

	producer := outbox.NewProducer(st, ratelimit.NewMemory())

	cfg := &config.Config{}
	cfg.Server.Env = "development"

	srv := api.New(st, prim, eng, producer, fo, nil, cfg, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &harness{server: ts, store: st, prim: prim, tenant: tenant, token: token}
}

func (h *harness) adminRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return h.request(t, method, path, body, map[string]string{"X-Master-Key": testMasterKey})
}

func (h *harness) tenantRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return h.request(t, method, path, body, map[string]string{"Authorization": "Bearer " + h.token})
}

func (h *harness) request(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestAdminGateRejectsMissingMasterKey(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.server.URL + "/admin/tenants")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminCreateAndListTenants(t *testing.T) {
	h := newHarness(t)
	resp := h.adminRequest(t, http.MethodPost, "/admin/tenants", map[string]string{"name": "Globex"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.adminRequest(t, http.MethodGet, "/admin/tenants", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Tenants []store.Tenant `json:"tenants"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Tenants, 2) // tenant_1 from the harness + Globex
}

func TestTenantGateRejectsMissingToken(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.server.URL + "/v1/devices")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeviceOwnershipIsNotAnExistenceOracle(t *testing.T) {
	h := newHarness(t)

	otherTenant, err := h.store.CreateTenant("tenant_2", "Other", "hash_2")
	require.NoError(t, err)
	otherDev, err := h.store.CreateDevice("device_2", otherTenant.ID, "Not mine")
	require.NoError(t, err)

	resp := h.tenantRequest(t, http.MethodGet, "/v1/devices/"+otherDev.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "a device owned by another tenant must 404, never 403")

	resp = h.tenantRequest(t, http.MethodGet, "/v1/devices/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "a nonexistent device must be indistinguishable from one owned by another tenant")
}

func TestSendMessageRejectsUnconnectedDevice(t *testing.T) {
	h := newHarness(t)
	dev, err := h.store.CreateDevice("device_3", h.tenant.ID, "Mine")
	require.NoError(t, err)

	resp := h.tenantRequest(t, http.MethodPost, "/v1/devices/"+dev.ID+"/messages/text",
		map[string]string{"jid": "628@s.whatsapp.net", "text": "hi"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSendMediaRejectsSSRFTargetedURL(t *testing.T) {
	h := newHarness(t)
	dev, err := h.store.CreateDevice("device_4", h.tenant.ID, "Mine")
	require.NoError(t, err)
	require.NoError(t, h.store.UpdateDeviceStatus(dev.ID, store.DeviceStatusConnected))

	resp := h.tenantRequest(t, http.MethodPost, "/v1/devices/"+dev.ID+"/messages/media",
		map[string]string{"jid": "628@s.whatsapp.net", "mediaUrl": "http://127.0.0.1:9999/secret"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAndTestWebhook(t *testing.T) {
	h := newHarness(t)

	resp := h.tenantRequest(t, http.MethodPost, "/v1/webhooks", map[string]any{
		"url":    "https://1.1.1.1/hooks/gateway",
		"events": []string{"device.connected"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var hook store.Webhook
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hook))
	assert.NotEmpty(t, hook.ID)

	resp = h.tenantRequest(t, http.MethodPost, "/v1/webhooks/"+hook.ID+"/test", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
