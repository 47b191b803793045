package device

import (
	"context"
	"math"
	"time"

	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/protocolclient"
	"github.com/rijan-wa/gateway/internal/store"
)

// buildHooks wires the protocol client's async callbacks for one
// instance. Each hook runs in its own goroutine so a slow or panicking
// handler can never block the client's own event loop (spec.md §4.D).
// Every hook funnels through capture, which persists the event and
// enqueues fan-out; capture itself never returns an error to the
// caller — failures are logged and swallowed, per spec.md §7's
// "event capture layer swallows per-handler errors" policy.
func (e *Engine) buildHooks(inst *instance) protocolclient.Hooks {
	return protocolclient.Hooks{
		OnMessage: func(ctx context.Context, msg protocolclient.InboundMessage) {
			go e.safely(func() {
				inboxID := crypto.MustMintID("inbox")
				if err := e.store.CreateInboxRow(inboxID, inst.tenantID, inst.deviceID, msg.JID, msg.MessageID, msg.MessageType, msg.Payload, msg.ReceivedAt.Unix()); err != nil {
					e.log.Error("device: persist inbox row", "device_id", inst.deviceID, "error", err)
				}
				if e.metrics != nil {
					e.metrics.RecordMessageReceived(msg.MessageType)
				}
				e.capture(ctx, inst, "message.received", msg)
			})
		},
		OnMessageUpdate: func(ctx context.Context, u protocolclient.MessageUpdate) {
			go e.safely(func() { e.capture(ctx, inst, "message.updated", u) })
		},
		OnDeliveryReceipt: func(ctx context.Context, r protocolclient.Receipt) {
			go e.safely(func() {
				if err := e.store.AdvanceOutboxByWAMessageID(r.MessageID, store.OutboxStatusDelivered); err != nil {
					e.log.Warn("device: advance outbox on delivery receipt", "message_id", r.MessageID, "error", err)
				}
				e.capture(ctx, inst, "receipt.delivery", r)
			})
		},
		OnReadReceipt: func(ctx context.Context, r protocolclient.Receipt) {
			go e.safely(func() {
				if err := e.store.AdvanceOutboxByWAMessageID(r.MessageID, store.OutboxStatusRead); err != nil {
					e.log.Warn("device: advance outbox on read receipt", "message_id", r.MessageID, "error", err)
				}
				e.capture(ctx, inst, "receipt.read", r)
			})
		},
		OnGroupMetadata: func(ctx context.Context, g protocolclient.GroupEvent) {
			go e.safely(func() { e.capture(ctx, inst, "group.updated", g) })
		},
		OnParticipantChange: func(ctx context.Context, c protocolclient.ParticipantEvent) {
			go e.safely(func() {
				if len(c.Added) > 0 {
					e.capture(ctx, inst, "participant.added", c)
				}
				if len(c.Removed) > 0 {
					e.capture(ctx, inst, "participant.removed", c)
				}
			})
		},
		OnContactUpdate: func(ctx context.Context, c protocolclient.ContactEvent) {
			go e.safely(func() { e.capture(ctx, inst, "contact.updated", c) })
		},
		OnChatUpsert: func(ctx context.Context, c protocolclient.ChatEvent) {
			go e.safely(func() { e.persistChat(inst, c) })
		},
		OnChatUpdate: func(ctx context.Context, c protocolclient.ChatEvent) {
			go e.safely(func() { e.persistChat(inst, c) })
		},
		OnChatDelete: func(ctx context.Context, c protocolclient.ChatEvent) {
			go e.safely(func() {
				if err := e.store.DeleteChat(inst.deviceID, c.JID); err != nil {
					e.log.Warn("device: delete chat", "device_id", inst.deviceID, "error", err)
				}
			})
		},
		OnConnectionState: func(ctx context.Context, cs protocolclient.ConnectionState) {
			go e.safely(func() { e.handleConnectionState(ctx, inst, cs) })
		},
		OnCredentialsUpdated: func(ctx context.Context) {
			go e.safely(func() {
				identity, err := e.auth.Identity(inst.tenantID, inst.deviceID)
				if err != nil || identity == nil {
					return
				}
				if err := e.store.SetDeviceIdentity(inst.deviceID, identity.JID, identity.Name); err != nil {
					e.log.Warn("device: set identity", "device_id", inst.deviceID, "error", err)
				}
				if err := e.store.SetDevicePhoneNumber(inst.deviceID, identity.JID); err != nil {
					e.log.Warn("device: set phone number", "device_id", inst.deviceID, "error", err)
				}
			})
		},
		OnQR: func(ctx context.Context, qr string) {
			inst.mu.Lock()
			inst.lastQR = qr
			inst.lastQRAt = time.Now()
			inst.mu.Unlock()
			go e.safely(func() {
				e.store.UpdateDeviceStatus(inst.deviceID, store.DeviceStatusPairing)
			})
		},
	}
}

// safely runs fn, recovering a panic so one broken handler can never
// take down the engine or the socket's event loop.
func (e *Engine) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("device: event hook panicked", "recovered", r)
		}
	}()
	fn()
}

func (e *Engine) capture(ctx context.Context, inst *instance, eventType string, data any) {
	eventID := crypto.MustMintID("evt")
	e.fanout.Capture(ctx, eventID, inst.tenantID, inst.deviceID, eventType, data)
}

func (e *Engine) persistChat(inst *instance, c protocolclient.ChatEvent) {
	if err := e.store.UpsertChat(inst.deviceID, c.JID, "", nil, 0); err != nil {
		e.log.Warn("device: upsert chat", "device_id", inst.deviceID, "error", err)
	}
}

// handleConnectionState implements the reconnect policy of spec.md
// §4.D: on unexpected disconnect, retry with bounded exponential
// backoff while retaining the lock, transitioning to failed only after
// the retry ceiling is exhausted.
func (e *Engine) handleConnectionState(ctx context.Context, inst *instance, cs protocolclient.ConnectionState) {
	if cs.Connected {
		inst.mu.Lock()
		inst.retries = 0
		inst.mu.Unlock()
		e.store.UpdateDeviceStatus(inst.deviceID, store.DeviceStatusConnected)
		e.capture(ctx, inst, "device.connected", cs)
		return
	}

	e.capture(ctx, inst, "device.disconnected", cs)

	inst.mu.Lock()
	if inst.cancelReconnect != nil {
		inst.mu.Unlock()
		return // a reconnect loop is already in flight
	}
	reconnectCtx, cancel := context.WithCancel(context.Background())
	inst.cancelReconnect = cancel
	inst.mu.Unlock()

	go e.reconnectLoop(reconnectCtx, inst)
}

func (e *Engine) reconnectLoop(ctx context.Context, inst *instance) {
	defer func() {
		inst.mu.Lock()
		inst.cancelReconnect = nil
		inst.mu.Unlock()
	}()

	for {
		inst.mu.Lock()
		inst.retries++
		attempt := inst.retries
		inst.mu.Unlock()

		if attempt > e.cfg.ReconnectMaxRetries {
			e.log.Error("device: reconnect retries exhausted, marking failed", "device_id", inst.deviceID)
			e.store.UpdateDeviceStatus(inst.deviceID, store.DeviceStatusFailed)
			e.locks.Release(inst.deviceID)
			e.remove(inst.deviceID)
			return
		}

		backoff := time.Duration(math.Min(
			float64(e.cfg.ReconnectMaxBackoff),
			float64(time.Second)*math.Pow(2, float64(attempt)),
		))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		sessionDir, err := e.auth.Resolve(inst.tenantID, inst.deviceID)
		if err != nil {
			e.log.Error("device: reconnect resolve session dir", "device_id", inst.deviceID, "error", err)
			continue
		}
		if err := inst.client.Connect(ctx, sessionDir, e.buildHooks(inst)); err != nil {
			e.log.Warn("device: reconnect attempt failed", "device_id", inst.deviceID, "attempt", attempt, "error", err)
			continue
		}
		return // a successful Connect will report device.connected via OnConnectionState
	}
}
