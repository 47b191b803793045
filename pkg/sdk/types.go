package sdk

// Device mirrors the JSON shape returned by GET /v1/devices and
// GET /v1/devices/{deviceId}.
type Device struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId"`
	Label     string `json:"label"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

// QRResult mirrors the response of POST /v1/devices/{deviceId}/pairing/qr.
type QRResult struct {
	QRImage   string `json:"qrImage"`
	ExpiresAt int64  `json:"expiresAt"`
}

// PairingCodeResult mirrors the response of
// POST /v1/devices/{deviceId}/pairing/code.
type PairingCodeResult struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expiresAt"`
}

// SendResult is the common response shape returned by every
// /v1/devices/{deviceId}/messages/* endpoint.
type SendResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Created bool   `json:"created"`
}

// Event mirrors the JSON shape of one row returned by
// GET /v1/devices/{deviceId}/events.
type Event struct {
	ID         string `json:"id"`
	DeviceID   string `json:"deviceId"`
	EventType  string `json:"eventType"`
	Data       any    `json:"data"`
	ReceivedAt int64  `json:"receivedAt"`
}

// Webhook mirrors the JSON shape of a tenant webhook subscription.
type Webhook struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Events    string `json:"events"` // comma-joined event tokens
	Secret    string `json:"secret,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// TextMessage is the request body for POST .../messages/text.
type TextMessage struct {
	JID  string `json:"jid"`
	Text string `json:"text"`
}

// MediaMessage is the request body for POST .../messages/media.
type MediaMessage struct {
	JID      string `json:"jid"`
	MediaURL string `json:"mediaUrl"`
	Caption  string `json:"caption,omitempty"`
}

// apiError is the envelope every non-2xx gateway response is wrapped in.
type apiError struct {
	Error struct {
		Kind      string `json:"kind"`
		SubKind   string `json:"subKind,omitempty"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}
