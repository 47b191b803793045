package device_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/authstore"
	"github.com/rijan-wa/gateway/internal/device"
	"github.com/rijan-wa/gateway/internal/lock"
	"github.com/rijan-wa/gateway/internal/protocolclient"
	"github.com/rijan-wa/gateway/internal/store"
	"github.com/rijan-wa/gateway/internal/webhooks"
)

func newHarness(t *testing.T) (*store.Store, *authstore.Store, *webhooks.Pipeline) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	auth, err := authstore.New(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	fo := webhooks.New(st, 1, nil)
	t.Cleanup(fo.Shutdown)

	return st, auth, fo
}

func testConfig() device.Config {
	return device.Config{
		LockTTL:             5 * time.Second,
		LockRefreshInterval: 50 * time.Millisecond,
		LockAcquireTimeout:  200 * time.Millisecond,
		ReconnectMaxBackoff: 200 * time.Millisecond,
		ReconnectMaxRetries: 2,
		QRExpiry:            time.Second,
	}
}

func TestStartAcquiresLockAndMarksConnected(t *testing.T) {
	st, auth, fo := newHarness(t)
	tenant, err := st.CreateTenant("tenant_1", "Acme", "hash")
	require.NoError(t, err)
	dev, err := st.CreateDevice("device_1", tenant.ID, "Primary")
	require.NoError(t, err)

	eng := device.New(st, auth, fo, lock.New(st, "instance_a"), protocolclient.NewFakeFactory(), "instance_a", testConfig(), nil)

	require.NoError(t, eng.Start(context.Background(), dev.ID, tenant.ID))

	h, err := eng.Health(dev.ID)
	require.NoError(t, err)
	assert.True(t, h.IsConnected)

	lock, err := st.FindLock(dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "instance_a", lock.InstanceID)
}

func TestStartFailsWhenLockHeldByAnotherInstance(t *testing.T) {
	st, auth, fo := newHarness(t)
	tenant, _ := st.CreateTenant("tenant_2", "Globex", "hash2")
	dev, _ := st.CreateDevice("device_2", tenant.ID, "Primary")

	require.NoError(t, st.UpsertDeviceSession(dev.ID, tenant.ID, "/tmp/x", "active"))
	ok, err := st.AcquireLock(dev.ID, "other_instance", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	eng := device.New(st, auth, fo, lock.New(st, "instance_b"), protocolclient.NewFakeFactory(), "instance_b", testConfig(), nil)
	err = eng.Start(context.Background(), dev.ID, tenant.ID)
	assert.Error(t, err)
}

func TestStopReleasesLockAndMarksDisconnected(t *testing.T) {
	st, auth, fo := newHarness(t)
	tenant, _ := st.CreateTenant("tenant_3", "Initech", "hash3")
	dev, _ := st.CreateDevice("device_3", tenant.ID, "Primary")

	eng := device.New(st, auth, fo, lock.New(st, "instance_c"), protocolclient.NewFakeFactory(), "instance_c", testConfig(), nil)
	require.NoError(t, eng.Start(context.Background(), dev.ID, tenant.ID))
	require.NoError(t, eng.Stop(context.Background(), dev.ID))

	_, err := st.FindLock(dev.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.FindDeviceByID(dev.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DeviceStatusDisconnected, got.Status)
}

func TestLogoutDeletesCredentialDirectory(t *testing.T) {
	st, auth, fo := newHarness(t)
	tenant, _ := st.CreateTenant("tenant_4", "Umbrella", "hash4")
	dev, _ := st.CreateDevice("device_4", tenant.ID, "Primary")

	eng := device.New(st, auth, fo, lock.New(st, "instance_d"), protocolclient.NewFakeFactory(), "instance_d", testConfig(), nil)
	require.NoError(t, eng.Start(context.Background(), dev.ID, tenant.ID))

	dir, err := auth.Resolve(tenant.ID, dev.ID)
	require.NoError(t, err)
	require.DirExists(t, dir)

	require.NoError(t, eng.Logout(context.Background(), dev.ID, tenant.ID))
	assert.NoDirExists(t, dir)

	got, err := st.FindDeviceByID(dev.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DeviceStatusNeedsPairing, got.Status)
}

func TestInboundMessageIsPersistedAndFannedOut(t *testing.T) {
	st, auth, fo := newHarness(t)
	tenant, _ := st.CreateTenant("tenant_5", "Hooli", "hash5")
	dev, _ := st.CreateDevice("device_5", tenant.ID, "Primary")

	factory := protocolclient.NewFakeFactory()
	var fake *protocolclient.FakeClient
	wrapped := func() protocolclient.Client {
		c := factory().(*protocolclient.FakeClient)
		fake = c
		return c
	}

	eng := device.New(st, auth, fo, lock.New(st, "instance_e"), wrapped, "instance_e", testConfig(), nil)
	require.NoError(t, eng.Start(context.Background(), dev.ID, tenant.ID))

	fake.Deliver(context.Background(), protocolclient.InboundMessage{
		JID: "628123@s.whatsapp.net", MessageID: "wamid.1", MessageType: "text",
		Payload: []byte(`{"text":"hi"}`), ReceivedAt: time.Now(),
	})

	require.Eventually(t, func() bool {
		rows, err := st.ListInboxByDevice(tenant.ID, dev.ID, 10)
		return err == nil && len(rows) == 1
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		events, err := st.ListEvents(tenant.ID, dev.ID, store.EventQuery{Limit: 10})
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}
