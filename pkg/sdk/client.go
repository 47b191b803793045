// Package sdk is a thin Go client for the gateway's tenant-scoped HTTP
// API. It embeds in an integrator's own service to avoid hand-rolling
// the bearer-token header and JSON envelope handling that every
// /v1 route shares.
//
// Quick start:
//
//	client := sdk.NewClient(sdk.Config{
//	    BaseURL: "https://gateway.example.com",
//	    Token:   os.Getenv("GATEWAY_TOKEN"),
//	})
//
//	devices, err := client.ListDevices(ctx)
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds the SDK client configuration.
type Config struct {
	// BaseURL is the gateway's address, e.g. "https://gateway.example.com".
	BaseURL string

	// Token is the tenant's bearer token, minted by POST /admin/tenants.
	Token string

	// Timeout bounds every request (default 30s).
	Timeout time.Duration

	// HTTPClient overrides the client used to make requests. Useful for
	// wrapping with WithRequestLogging or a custom transport.
	HTTPClient *http.Client
}

// Client is a gateway API client scoped to a single tenant token.
type Client struct {
	cfg Config
	hc  *http.Client
}

// NewClient constructs a Client. BaseURL and Token are required.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, hc: hc}
}

// ListDevices returns every device owned by this client's tenant.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var body struct {
		Devices []Device `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/devices", nil, &body); err != nil {
		return nil, err
	}
	return body.Devices, nil
}

// GetDevice fetches a single device by ID.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var dev Device
	if err := c.do(ctx, http.MethodGet, "/v1/devices/"+deviceID, nil, &dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

// StartDevice starts the device's protocol socket on the gateway.
func (c *Client) StartDevice(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPost, "/v1/devices/"+deviceID+"/start", nil, nil)
}

// StopDevice stops the device without clearing its pairing credentials.
func (c *Client) StopDevice(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPost, "/v1/devices/"+deviceID+"/stop", nil, nil)
}

// RequestQR requests a fresh pairing QR code for the device.
func (c *Client) RequestQR(ctx context.Context, deviceID string) (*QRResult, error) {
	var res QRResult
	if err := c.do(ctx, http.MethodPost, "/v1/devices/"+deviceID+"/pairing/qr", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RequestPairingCode requests a phone-number pairing code for the device.
func (c *Client) RequestPairingCode(ctx context.Context, deviceID, phone string) (*PairingCodeResult, error) {
	var res PairingCodeResult
	req := map[string]string{"phone": phone}
	if err := c.do(ctx, http.MethodPost, "/v1/devices/"+deviceID+"/pairing/code", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendText sends a text message through a connected device.
func (c *Client) SendText(ctx context.Context, deviceID string, msg TextMessage) (*SendResult, error) {
	var res SendResult
	if err := c.do(ctx, http.MethodPost, "/v1/devices/"+deviceID+"/messages/text", msg, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendMedia sends a media message through a connected device. mediaUrl
// must resolve to a public address; the gateway rejects loopback,
// link-local, and private-range targets.
func (c *Client) SendMedia(ctx context.Context, deviceID string, msg MediaMessage) (*SendResult, error) {
	var res SendResult
	if err := c.do(ctx, http.MethodPost, "/v1/devices/"+deviceID+"/messages/media", msg, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListEvents returns the device's event log, newest first.
func (c *Client) ListEvents(ctx context.Context, deviceID string, since int64, limit int) ([]Event, error) {
	path := fmt.Sprintf("/v1/devices/%s/events?since=%d&limit=%d", deviceID, since, limit)
	var body struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

// CreateWebhook registers a new webhook subscription for this tenant.
func (c *Client) CreateWebhook(ctx context.Context, url string, events []string) (*Webhook, error) {
	var wh Webhook
	req := map[string]any{"url": url, "events": events}
	if err := c.do(ctx, http.MethodPost, "/v1/webhooks", req, &wh); err != nil {
		return nil, err
	}
	return &wh, nil
}

// TestWebhook asks the gateway to deliver one synthetic event to an
// existing webhook, so an integrator can confirm their endpoint works.
func (c *Client) TestWebhook(ctx context.Context, webhookID string) error {
	return c.do(ctx, http.MethodPost, "/v1/webhooks/"+webhookID+"/test", nil, nil)
}

// Error is returned for any non-2xx gateway response.
type Error struct {
	StatusCode int
	Kind       string
	SubKind    string
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("gateway: %s: %s (request %s)", e.Kind, e.Message, e.RequestID)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return fmt.Errorf("sdk: encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("sdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("sdk: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sdk: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope apiError
		_ = json.Unmarshal(raw, &envelope)
		return &Error{
			StatusCode: resp.StatusCode,
			Kind:       envelope.Error.Kind,
			SubKind:    envelope.Error.SubKind,
			Message:    envelope.Error.Message,
			RequestID:  envelope.Error.RequestID,
		}
	}

	if respBody == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return fmt.Errorf("sdk: decode response: %w", err)
	}
	return nil
}
