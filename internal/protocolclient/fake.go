package protocolclient

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory Client used by internal/device and
// internal/outbox tests. It never touches the network or filesystem;
// Connect always succeeds and reports connected via hooks unless
// configured otherwise.
type FakeClient struct {
	mu        sync.Mutex
	hooks     Hooks
	connected bool

	// FailConnect, when set, is returned by Connect instead of succeeding.
	FailConnect error
	// FailSend, when set, is returned by Send instead of succeeding.
	FailSend error
	// Sent records every accepted send for assertions.
	Sent []SendRequest

	nextMessageID int
	nextGroupID   int
	privacy       map[string]string
}

// NewFakeFactory returns a Factory that hands out independent FakeClients.
func NewFakeFactory() Factory {
	return func() Client {
		return &FakeClient{}
	}
}

func (f *FakeClient) Connect(ctx context.Context, sessionDir string, hooks Hooks) error {
	if f.FailConnect != nil {
		return f.FailConnect
	}
	f.mu.Lock()
	f.hooks = hooks
	f.connected = true
	f.mu.Unlock()

	if hooks.OnConnectionState != nil {
		hooks.OnConnectionState(ctx, ConnectionState{Connected: true})
	}
	return nil
}

func (f *FakeClient) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = false
	hooks := f.hooks
	f.mu.Unlock()

	if hooks.OnConnectionState != nil {
		hooks.OnConnectionState(ctx, ConnectionState{Connected: false, Reason: "disconnect requested"})
	}
	return nil
}

func (f *FakeClient) RequestQR(ctx context.Context) error {
	f.mu.Lock()
	hooks := f.hooks
	f.mu.Unlock()

	if hooks.OnQR != nil {
		hooks.OnQR(ctx, "fake-qr-payload")
	}
	return nil
}

func (f *FakeClient) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	return "ABCD-1234", nil
}

func (f *FakeClient) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if f.FailSend != nil {
		return SendResult{}, f.FailSend
	}

	f.mu.Lock()
	f.nextMessageID++
	id := fmt.Sprintf("wamid.FAKE%d", f.nextMessageID)
	f.Sent = append(f.Sent, req)
	f.mu.Unlock()

	return SendResult{MessageID: id}, nil
}

func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeClient) CreateGroup(ctx context.Context, subject string, participants []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextGroupID++
	return fmt.Sprintf("120363FAKE%d@g.us", f.nextGroupID), nil
}

func (f *FakeClient) UpdateGroupParticipants(ctx context.Context, groupJID string, add, remove []string) error {
	return nil
}

func (f *FakeClient) GetPrivacySettings(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.privacy))
	for k, v := range f.privacy {
		out[k] = v
	}
	return out, nil
}

func (f *FakeClient) SetPrivacySettings(ctx context.Context, settings map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.privacy == nil {
		f.privacy = make(map[string]string)
	}
	for k, v := range settings {
		f.privacy[k] = v
	}
	return nil
}

// Deliver lets a test simulate an inbound protocol event by invoking
// the registered hook directly, as the real client would from its own
// read loop.
func (f *FakeClient) Deliver(ctx context.Context, msg InboundMessage) {
	f.mu.Lock()
	hooks := f.hooks
	f.mu.Unlock()
	if hooks.OnMessage != nil {
		hooks.OnMessage(ctx, msg)
	}
}

// DeliverReceipt simulates an inbound delivery or read receipt.
func (f *FakeClient) DeliverReceipt(ctx context.Context, read bool, r Receipt) {
	f.mu.Lock()
	hooks := f.hooks
	f.mu.Unlock()
	if read {
		if hooks.OnReadReceipt != nil {
			hooks.OnReadReceipt(ctx, r)
		}
		return
	}
	if hooks.OnDeliveryReceipt != nil {
		hooks.OnDeliveryReceipt(ctx, r)
	}
}
