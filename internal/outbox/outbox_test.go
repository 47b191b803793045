package outbox_test

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
	"github.com/rijan-wa/gateway/internal/outbox"
	"github.com/rijan-wa/gateway/internal/protocolclient"
	"github.com/rijan-wa/gateway/internal/ratelimit"
	"github.com/rijan-wa/gateway/internal/store"
	"github.com/rijan-wa/gateway/internal/webhooks"
)

func newHarness(t *testing.T) (*store.Store, *store.Tenant, *store.Device) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tenant, err := st.CreateTenant("tenant_1", "Acme", "hash")
	require.NoError(t, err)
	dev, err := st.CreateDevice("device_1", tenant.ID, "Primary")
	require.NoError(t, err)
	return st, tenant, dev
}

func TestEnqueueRejectsUnsupportedMessageType(t *testing.T) {
	st, tenant, dev := newHarness(t)
	p := outbox.NewProducer(st, ratelimit.NewMemory())

	_, created, _, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "sticker", []byte(`{}`), nil)
	assert.Error(t, err)
	assert.False(t, created)
}

func TestEnqueueExpandsBareDigitsToUserDomainJID(t *testing.T) {
	st, tenant, dev := newHarness(t)
	p := outbox.NewProducer(st, ratelimit.NewMemory())

	row, created, _, err := p.Enqueue(tenant.ID, dev.ID, "6281234567890", "text", []byte(`{"text":"hi"}`), nil)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "6281234567890@s.whatsapp.net", row.JID)
}

func TestEnqueueRejectsMalformedJID(t *testing.T) {
	st, tenant, dev := newHarness(t)
	p := outbox.NewProducer(st, ratelimit.NewMemory())

	_, created, _, err := p.Enqueue(tenant.ID, dev.ID, "not-a-jid", "text", []byte(`{"text":"hi"}`), nil)
	assert.Error(t, err)
	assert.False(t, created)
}

func TestEnqueueRejectsUnrecognizedDomain(t *testing.T) {
	st, tenant, dev := newHarness(t)
	p := outbox.NewProducer(st, ratelimit.NewMemory())

	_, created, _, err := p.Enqueue(tenant.ID, dev.ID, "628@evil.example.com", "text", []byte(`{"text":"hi"}`), nil)
	assert.Error(t, err)
	assert.False(t, created)
}

func TestEnqueueIsIdempotentOnRepeatKey(t *testing.T) {
	st, tenant, dev := newHarness(t)
	p := outbox.NewProducer(st, ratelimit.NewMemory())
	key := "client-key-1"

	first, created1, _, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "text", []byte(`{"text":"hi"}`), &key)
	require.NoError(t, err)
	assert.True(t, created1)

	second, created2, _, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "text", []byte(`{"text":"hi again"}`), &key)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, first.ID, second.ID)

	rows, err := st.ReadyOutboxRows(100, time.Minute)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEnqueueRejectsWhenRateLimited(t *testing.T) {
	st, tenant, dev := newHarness(t)
	p := outbox.NewProducer(st, ratelimit.NewMemory())

	limit := ratelimit.LimitFor("poll")
	for i := 0; i < limit; i++ {
		_, _, _, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "poll", []byte(`{}`), nil)
		require.NoError(t, err)
	}

	_, created, decision, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "poll", []byte(`{}`), nil)
	assert.Error(t, err)
	assert.False(t, created)
	assert.False(t, decision.Allowed)
}

func newDeviceEngine(t *testing.T, st *store.Store, factory protocolclient.Factory) (*device.Engine, *authstore.Store) {
	t.Helper()
	auth, err := authstore.New(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	fo := webhooks.New(st, 1, nil)
	t.Cleanup(fo.Shutdown)

	eng := device.New(st, auth, fo, lock.New(st, "instance_a"), factory, "instance_a", device.Config{
		LockTTL:             5 * time.Second,
		LockRefreshInterval: 50 * time.Millisecond,
		LockAcquireTimeout:  200 * time.Millisecond,
		ReconnectMaxBackoff: 200 * time.Millisecond,
		ReconnectMaxRetries: 2,
		QRExpiry:            time.Second,
	}, nil)
	return eng, auth
}

func TestSenderDeliversPendingRowAndMarksSent(t *testing.T) {
	st, tenant, dev := newHarness(t)
	factory := protocolclient.NewFakeFactory()
	eng, _ := newDeviceEngine(t, st, factory)
	require.NoError(t, eng.Start(context.Background(), dev.ID, tenant.ID))

	p := outbox.NewProducer(st, ratelimit.NewMemory())
	row, created, _, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "text", []byte(`{"text":"hi"}`), nil)
	require.NoError(t, err)
	require.True(t, created)

	sender := outbox.NewSender(st, eng, outbox.SenderConfig{PollInterval: 20 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sender.Run(ctx)

	require.Eventually(t, func() bool {
		got, err := st.FindOutboxByTenant(tenant.ID, row.ID)
		return err == nil && got.Status == store.OutboxStatusSent && got.WAMessageID != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSenderRevertsToPendingWhenDeviceNotConnected(t *testing.T) {
	st, tenant, dev := newHarness(t)
	// no device.Start call: the device is never registered locally, so
	// Engine.Send reports the transient "not connected" failure.
	eng, _ := newDeviceEngine(t, st, protocolclient.NewFakeFactory())

	p := outbox.NewProducer(st, ratelimit.NewMemory())
	row, _, _, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "text", []byte(`{"text":"hi"}`), nil)
	require.NoError(t, err)

	sender := outbox.NewSender(st, eng, outbox.SenderConfig{PollInterval: 20 * time.Millisecond, MaxRetries: 3}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sender.Run(ctx)

	require.Eventually(t, func() bool {
		got, err := st.FindOutboxByTenant(tenant.ID, row.ID)
		return err == nil && got.Status == store.OutboxStatusPending && got.Retries >= 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSenderMarksFailedOnPermanentProtocolRejection(t *testing.T) {
	st, tenant, dev := newHarness(t)
	factory := protocolclient.NewFakeFactory()
	var fake *protocolclient.FakeClient
	wrapped := func() protocolclient.Client {
		c := factory().(*protocolclient.FakeClient)
		c.FailSend = assertSendRejected{}
		fake = c
		return c
	}
	eng, _ := newDeviceEngine(t, st, wrapped)
	require.NoError(t, eng.Start(context.Background(), dev.ID, tenant.ID))
	require.NotNil(t, fake)

	p := outbox.NewProducer(st, ratelimit.NewMemory())
	row, _, _, err := p.Enqueue(tenant.ID, dev.ID, "628@s.whatsapp.net", "text", []byte(`{"text":"hi"}`), nil)
	require.NoError(t, err)

	sender := outbox.NewSender(st, eng, outbox.SenderConfig{PollInterval: 20 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sender.Run(ctx)

	require.Eventually(t, func() bool {
		got, err := st.FindOutboxByTenant(tenant.ID, row.ID)
		return err == nil && got.Status == store.OutboxStatusFailed
	}, 2*time.Second, 20*time.Millisecond)
}

type assertSendRejected struct{}

func (assertSendRejected) Error() string { return "recipient not on protocol" }
