// Package protocolclient defines the boundary to the chat-protocol
// client library, which spec.md §1 places out of scope ("assumed
// available"). This package holds only the interface the rest of the
// gateway programs against, plus a minimal in-memory fake. The fake is
// the only implementation in this module; the tests and cmd/server both
// wire it.
package protocolclient

import (
	"context"
	"time"
)

// Hooks are the callbacks a Client invokes as protocol events arrive.
// Each hook MUST be treated by the caller as asynchronous relative to
// the client's own event loop (spec.md §4.D) — the client dispatches
// these without holding any internal lock, and the receiver here must
// not block the client's read loop.
type Hooks struct {
	OnMessage           func(ctx context.Context, msg InboundMessage)
	OnMessageUpdate      func(ctx context.Context, update MessageUpdate)
	OnDeliveryReceipt    func(ctx context.Context, receipt Receipt)
	OnReadReceipt        func(ctx context.Context, receipt Receipt)
	OnGroupMetadata      func(ctx context.Context, group GroupEvent)
	OnParticipantChange  func(ctx context.Context, change ParticipantEvent)
	OnContactUpdate      func(ctx context.Context, contact ContactEvent)
	OnChatUpsert         func(ctx context.Context, chat ChatEvent)
	OnChatUpdate         func(ctx context.Context, chat ChatEvent)
	OnChatDelete         func(ctx context.Context, chat ChatEvent)
	OnConnectionState    func(ctx context.Context, state ConnectionState)
	OnCredentialsUpdated func(ctx context.Context)
	OnQR                 func(ctx context.Context, qr string)
}

// InboundMessage is a message received from the chat protocol.
type InboundMessage struct {
	JID         string
	MessageID   string
	MessageType string
	Payload     []byte
	ReceivedAt  time.Time
}

// MessageUpdate reflects an edit/revoke of a previously sent message.
type MessageUpdate struct {
	JID       string
	MessageID string
	Payload   []byte
}

// Receipt carries a delivery or read acknowledgement keyed by the
// protocol-assigned message id, matching spec.md §4.E step 4.
type Receipt struct {
	JID         string
	MessageID   string
	ReceivedAt  time.Time
}

type GroupEvent struct {
	JID     string
	Payload []byte
}

type ParticipantEvent struct {
	GroupJID string
	Added    []string
	Removed  []string
}

type ContactEvent struct {
	JID     string
	Payload []byte
}

type ChatEvent struct {
	JID     string
	Payload []byte
}

// ConnectionState mirrors the socket's own lifecycle, independent of
// the device supervisor's view (spec.md §4.D reconnect policy consumes
// this to decide when to retry).
type ConnectionState struct {
	Connected bool
	Reason    string
}

// SendRequest is a normalized outbound send, already validated and
// idempotency-resolved by component E's producer path.
type SendRequest struct {
	JID         string
	MessageType string
	Payload     []byte
}

// SendResult carries the protocol-assigned message id on success.
type SendResult struct {
	MessageID string
}

// Client is the boundary interface to the chat-protocol client
// library. A production implementation wraps the real library (out of
// scope here); internal/device and internal/outbox depend only on this
// interface.
type Client interface {
	// Connect opens the socket using the credential directory at
	// sessionDir, registering hooks for async event delivery. Connect
	// returns once the initial handshake is underway; final connection
	// state arrives via hooks.OnConnectionState.
	Connect(ctx context.Context, sessionDir string, hooks Hooks) error

	// Disconnect closes the socket without deleting credentials.
	Disconnect(ctx context.Context) error

	// RequestQR asks the client for a fresh pairing QR string. The
	// client delivers it asynchronously via hooks.OnQR.
	RequestQR(ctx context.Context) error

	// RequestPairingCode triggers the alternative phone-number pairing
	// flow (spec.md §4.D).
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)

	// Send dispatches one outbound message and blocks for the
	// protocol's synchronous ack (the message id), per spec.md §4.E
	// step 3.
	Send(ctx context.Context, req SendRequest) (SendResult, error)

	// IsConnected reports the socket's last known connection state.
	IsConnected() bool

	// CreateGroup creates a new group with the given subject and initial
	// participant JIDs, returning the protocol-assigned group JID.
	CreateGroup(ctx context.Context, subject string, participants []string) (string, error)

	// UpdateGroupParticipants adds or removes participants from an
	// existing group JID.
	UpdateGroupParticipants(ctx context.Context, groupJID string, add, remove []string) error

	// GetPrivacySettings reads the account's current privacy settings.
	GetPrivacySettings(ctx context.Context) (map[string]string, error)

	// SetPrivacySettings writes one or more privacy settings.
	SetPrivacySettings(ctx context.Context, settings map[string]string) error
}

// Factory constructs a new Client per device. NewFakeFactory (fake.go)
// is the only Factory in this module; cmd/server and the tests pass it.
type Factory func() Client
