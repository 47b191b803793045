package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTenantCascadeAndScoping(t *testing.T) {
	s := newTestStore(t)

	tenantA, err := s.CreateTenant("tenant_a", "Acme", "hash_a")
	require.NoError(t, err)
	tenantB, err := s.CreateTenant("tenant_b", "Globex", "hash_b")
	require.NoError(t, err)

	devB, err := s.CreateDevice("device_b1", tenantB.ID, "Sales")
	require.NoError(t, err)

	// I3: tenant A cannot see tenant B's device via the scoped lookup.
	_, err = s.FindDeviceByTenant(tenantA.ID, devB.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Its rightful owner can.
	got, err := s.FindDeviceByTenant(tenantB.ID, devB.ID)
	require.NoError(t, err)
	assert.Equal(t, devB.ID, got.ID)

	// I6: tombstoning filters the tenant from reads.
	require.NoError(t, s.SoftDeleteTenant(tenantB.ID))
	_, err = s.FindTenantByID(tenantB.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	tenants, err := s.ListTenants()
	require.NoError(t, err)
	for _, tn := range tenants {
		assert.NotEqual(t, tenantB.ID, tn.ID)
	}

	// Hard delete cascades to devices via ON DELETE CASCADE.
	require.NoError(t, s.HardDeleteTenant(tenantB.ID))
	_, err = s.FindDeviceByID(devB.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOutboxIdempotency(t *testing.T) {
	s := newTestStore(t)
	tenant, err := s.CreateTenant("tenant_x", "X", "hash_x")
	require.NoError(t, err)
	dev, err := s.CreateDevice("device_x1", tenant.ID, "Primary")
	require.NoError(t, err)

	key := "k-1"
	row1, err := s.CreateOutboxRow("out_1", tenant.ID, dev.ID, "62812@s.whatsapp.net", "text", []byte(`{"text":"hi"}`), &key)
	require.NoError(t, err)

	// Simulated re-submission: handler checks for an existing row first.
	existing, err := s.FindOutboxByIdempotencyKey(dev.ID, key)
	require.NoError(t, err)
	assert.Equal(t, row1.ID, existing.ID)

	// The unique index also rejects a raw duplicate insert outright.
	_, err = s.CreateOutboxRow("out_2", tenant.ID, dev.ID, "62812@s.whatsapp.net", "text", []byte(`{"text":"hi"}`), &key)
	assert.Error(t, err)
}

func TestOutboxCAS(t *testing.T) {
	s := newTestStore(t)
	tenant, _ := s.CreateTenant("tenant_y", "Y", "hash_y")
	dev, _ := s.CreateDevice("device_y1", tenant.ID, "Primary")

	row, err := s.CreateOutboxRow("out_3", tenant.ID, dev.ID, "jid", "text", []byte(`{}`), nil)
	require.NoError(t, err)

	ok, err := s.CASOutboxStatus(row.ID, store.OutboxStatusPending, store.OutboxStatusSending)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second CAS from the same "from" state misses because the row has
	// already moved on.
	ok, err = s.CASOutboxStatus(row.ID, store.OutboxStatusPending, store.OutboxStatusSending)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeviceLockSingleWriter(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.AcquireLock("device_z", "instance_1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// I5: a second instance cannot acquire the still-live lock.
	ok, err = s.AcquireLock("device_z", "instance_2", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// The original holder can re-enter and extend it.
	ok, err = s.AcquireLock("device_z", "instance_1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// instance_2 cannot release a lock it doesn't own...
	require.NoError(t, s.ReleaseLock("device_z", "instance_2"))
	l, err := s.FindLock("device_z")
	require.NoError(t, err)
	assert.Equal(t, "instance_1", l.InstanceID)

	// ...but the true holder can.
	require.NoError(t, s.ReleaseLock("device_z", "instance_1"))
	_, err = s.FindLock("device_z")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLockExpiryAllowsTakeover(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.AcquireLock("device_w", "instance_1", -1*time.Second) // already expired
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLock("device_w", "instance_2", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	l, err := s.FindLock("device_w")
	require.NoError(t, err)
	assert.Equal(t, "instance_2", l.InstanceID)
}

func TestWebhookAliasExpansion(t *testing.T) {
	s := newTestStore(t)
	tenant, _ := s.CreateTenant("tenant_v", "V", "hash_v")

	_, err := s.CreateWebhook("wh_1", tenant.ID, "https://example.com/hook", "secret",
		[]string{"message.status"}, 3, 5000)
	require.NoError(t, err)

	// I8: alias subscribers are matched for every member of the alias set...
	for _, et := range store.MessageStatusAlias {
		matches, err := s.MatchingWebhooks(tenant.ID, et)
		require.NoError(t, err)
		assert.Len(t, matches, 1, "expected a match for %s", et)
	}

	// ...and for no other type.
	matches, err := s.MatchingWebhooks(tenant.ID, "message.received")
	require.NoError(t, err)
	assert.Len(t, matches, 0)
}

func TestMigrationsAreIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.db")
	s1, err := store.Open(path)
	require.NoError(t, err)
	_, err = s1.CreateTenant("tenant_m", "M", "hash_m")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.FindTenantByID("tenant_m")
	require.NoError(t, err)
	assert.Equal(t, "M", got.Name)
}
