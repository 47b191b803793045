package store

// Tenant is an isolated customer account (spec.md §3).
type Tenant struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	APIKeyHash string `db:"api_key_hash" json:"-"`
	Status     string `db:"status" json:"status"`
	CreatedAt  int64  `db:"created_at" json:"createdAt"`
	UpdatedAt  int64  `db:"updated_at" json:"updatedAt"`
}

const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusDeleted   = "deleted"
)

// Device is a logical endpoint bound to one chat-protocol account.
type Device struct {
	ID          string  `db:"id" json:"id"`
	TenantID    string  `db:"tenant_id" json:"tenantId"`
	Label       string  `db:"label" json:"label"`
	PhoneNumber *string `db:"phone_number" json:"phoneNumber,omitempty"`
	Status      string  `db:"status" json:"status"`
	CreatedAt   int64   `db:"created_at" json:"createdAt"`
	LastSeen    *int64  `db:"last_seen" json:"lastSeen,omitempty"`
}

const (
	DeviceStatusDisconnected = "disconnected"
	DeviceStatusConnecting   = "connecting"
	DeviceStatusPairing      = "pairing"
	DeviceStatusNeedsPairing = "needs_pairing"
	DeviceStatusConnected    = "connected"
	DeviceStatusFailed       = "failed"
)

// DeviceSession is the discovery/metadata cache row for a device's
// credential directory (component C owns the directory itself).
type DeviceSession struct {
	DeviceID    string  `db:"device_id" json:"deviceId"`
	TenantID    *string `db:"tenant_id" json:"tenantId,omitempty"`
	SessionKind string  `db:"session_kind" json:"sessionKind"`
	SessionDir  string  `db:"session_dir" json:"-"`
	WAJID       *string `db:"wa_jid" json:"waJid,omitempty"`
	WAName      *string `db:"wa_name" json:"waName,omitempty"`
	UpdatedAt   int64   `db:"updated_at" json:"updatedAt"`
}

// OutboxRow is a durable outbound send request.
type OutboxRow struct {
	ID             string  `db:"id" json:"id"`
	TenantID       string  `db:"tenant_id" json:"tenantId"`
	DeviceID       string  `db:"device_id" json:"deviceId"`
	JID            string  `db:"jid" json:"jid"`
	MessageType    string  `db:"message_type" json:"messageType"`
	Payload        []byte  `db:"payload" json:"-"`
	Status         string  `db:"status" json:"status"`
	Retries        int     `db:"retries" json:"retries"`
	ErrorMessage   *string `db:"error_message" json:"errorMessage,omitempty"`
	IdempotencyKey *string `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	WAMessageID    *string `db:"wa_message_id" json:"waMessageId,omitempty"`
	CreatedAt      int64   `db:"created_at" json:"createdAt"`
	UpdatedAt      int64   `db:"updated_at" json:"updatedAt"`
	SentAt         *int64  `db:"sent_at" json:"sentAt,omitempty"`
}

const (
	OutboxStatusPending   = "pending"
	OutboxStatusQueued    = "queued"
	OutboxStatusSending   = "sending"
	OutboxStatusSent      = "sent"
	OutboxStatusDelivered = "delivered"
	OutboxStatusRead      = "read"
	OutboxStatusFailed    = "failed"
	OutboxStatusExpired   = "expired"
)

// InboxRow is a persisted inbound message.
type InboxRow struct {
	ID          string `db:"id" json:"id"`
	TenantID    string `db:"tenant_id" json:"tenantId"`
	DeviceID    string `db:"device_id" json:"deviceId"`
	JID         string `db:"jid" json:"jid"`
	MessageID   string `db:"message_id" json:"messageId"`
	MessageType string `db:"message_type" json:"messageType"`
	Payload     []byte `db:"payload" json:"-"`
	ReceivedAt  int64  `db:"received_at" json:"receivedAt"`
}

// EventLogRow is an append-only capture of an inbound protocol event.
type EventLogRow struct {
	ID         string `db:"id" json:"id"`
	TenantID   string `db:"tenant_id" json:"tenantId"`
	DeviceID   string `db:"device_id" json:"deviceId"`
	EventType  string `db:"event_type" json:"eventType"`
	Payload    []byte `db:"payload" json:"-"`
	ReceivedAt int64  `db:"received_at" json:"receivedAt"`
}

// Webhook is a tenant-registered HTTP endpoint.
type Webhook struct {
	ID         string `db:"id" json:"id"`
	TenantID   string `db:"tenant_id" json:"tenantId"`
	URL        string `db:"url" json:"url"`
	Secret     string `db:"secret" json:"-"`
	Events     string `db:"events" json:"events"` // comma-joined event tokens
	Enabled    bool   `db:"enabled" json:"enabled"`
	RetryCount int    `db:"retry_count" json:"retryCount"`
	TimeoutMS  int    `db:"timeout_ms" json:"timeoutMs"`
	CreatedAt  int64  `db:"created_at" json:"createdAt"`
	UpdatedAt  int64  `db:"updated_at" json:"updatedAt"`
}

// WebhookLog is one row per delivery attempt.
type WebhookLog struct {
	ID         string  `db:"id" json:"id"`
	WebhookID  string  `db:"webhook_id" json:"webhookId"`
	EventID    *string `db:"event_id" json:"eventId,omitempty"`
	StatusCode *int    `db:"status_code" json:"statusCode,omitempty"`
	Attempts   int     `db:"attempts" json:"attempts"`
	LastError  *string `db:"last_error" json:"lastError,omitempty"`
	SentAt     *int64  `db:"sent_at" json:"sentAt,omitempty"`
}

// DLQRow is the terminal sink for exhausted webhook deliveries.
type DLQRow struct {
	ID           string `db:"id" json:"id"`
	WebhookID    string `db:"webhook_id" json:"webhookId"`
	EventPayload []byte `db:"event_payload" json:"-"`
	Reason       string `db:"reason" json:"reason"`
	CreatedAt    int64  `db:"created_at" json:"createdAt"`
}

// DeviceLock is the row-based distributed lock of component H.
type DeviceLock struct {
	DeviceID   string `db:"device_id"`
	InstanceID string `db:"instance_id"`
	AcquiredAt int64  `db:"acquired_at"`
	ExpiresAt  int64  `db:"expires_at"`
}

// AuditLogRow is an append-only administrative/security event.
type AuditLogRow struct {
	ID           string  `db:"id" json:"id"`
	TenantID     *string `db:"tenant_id" json:"tenantId,omitempty"`
	Actor        string  `db:"actor" json:"actor"`
	Action       string  `db:"action" json:"action"`
	ResourceType *string `db:"resource_type" json:"resourceType,omitempty"`
	ResourceID   *string `db:"resource_id" json:"resourceId,omitempty"`
	Meta         *string `db:"meta" json:"meta,omitempty"`
	IPAddress    *string `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent    *string `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt    int64   `db:"created_at" json:"createdAt"`
}

// LIDPhoneMap caches the chat protocol's LID↔phone-number resolution.
type LIDPhoneMap struct {
	DeviceID    string `db:"device_id"`
	LID         string `db:"lid"`
	PhoneNumber string `db:"phone_number"`
	UpdatedAt   int64  `db:"updated_at"`
}

// Chat is a cached chat-list row, populated from protocol events.
type Chat struct {
	DeviceID      string `db:"device_id" json:"deviceId"`
	JID           string `db:"jid" json:"jid"`
	Name          *string `db:"name" json:"name,omitempty"`
	LastMessageAt *int64  `db:"last_message_at" json:"lastMessageAt,omitempty"`
	UnreadCount   int     `db:"unread_count" json:"unreadCount"`
	UpdatedAt     int64   `db:"updated_at" json:"updatedAt"`
}
