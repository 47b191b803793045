// Package webhooks implements the Event Fan-out Pipeline (component F):
// event capture, webhook subscription matching (including the
// message.status alias), signed HTTP delivery with bounded retry, and
// dead-letter sinking on exhaustion.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/metrics"
	"github.com/rijan-wa/gateway/internal/store"
)

// backoffSchedule is the fixed retry schedule of spec.md §4.F step 4.
var backoffSchedule = []time.Duration{
	1000 * time.Millisecond,
	5000 * time.Millisecond,
	15000 * time.Millisecond,
}

// Payload is the wire shape POSTed to subscriber URLs (spec.md §6).
type Payload struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	TenantID  string `json:"tenantId"`
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

type deliveryJob struct {
	webhook store.Webhook
	payload Payload
	raw     []byte
	eventID string
	attempt int
}

// Pipeline is the process-local fan-out worker pool. One pipeline is
// shared by every device the process supervises.
type Pipeline struct {
	store      *store.Store
	httpClient *http.Client
	queue      chan deliveryJob
	log        *slog.Logger
	wg         sync.WaitGroup
	metrics    *metrics.Registry

	heartbeatMu sync.Mutex
	lastHeartbeat time.Time
}

// SetMetrics wires the Prometheus registry for delivery-outcome
// counters. Safe to leave unset (nil) in tests.
func (p *Pipeline) SetMetrics(m *metrics.Registry) { p.metrics = m }

// New constructs a Pipeline with workers background delivery goroutines.
func New(st *store.Store, workers int, log *slog.Logger) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		store: st,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		queue: make(chan deliveryJob, 1000),
		log:   log,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Capture persists one event_logs row and enqueues delivery to every
// matching, enabled webhook (spec.md §4.F steps 1-2). Called by
// internal/device's event hooks; errors are logged, never returned,
// so a fan-out failure cannot abort the socket's event loop.
func (p *Pipeline) Capture(ctx context.Context, eventID, tenantID, deviceID, eventType string, data any) {
	rawData, err := json.Marshal(data)
	if err != nil {
		p.log.Error("fanout: marshal event data", "event_type", eventType, "error", err)
		return
	}

	now := time.Now()
	if err := p.store.CreateEventLog(eventID, tenantID, deviceID, eventType, rawData, now.Unix()); err != nil {
		p.log.Error("fanout: persist event log", "event_type", eventType, "error", err)
		return
	}
	p.markHeartbeat()

	hooks, err := p.store.MatchingWebhooks(tenantID, eventType)
	if err != nil {
		p.log.Error("fanout: match webhooks", "event_type", eventType, "error", err)
		return
	}
	if len(hooks) == 0 {
		return
	}

	payload := Payload{
		ID:        eventID,
		EventType: eventType,
		TenantID:  tenantID,
		DeviceID:  deviceID,
		Timestamp: now.Unix(),
		Data:      data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("fanout: marshal payload", "event_type", eventType, "error", err)
		return
	}

	for _, wh := range hooks {
		job := deliveryJob{webhook: wh, payload: payload, raw: raw, eventID: eventID, attempt: 1}
		select {
		case p.queue <- job:
		default:
			p.log.Warn("fanout: delivery queue full, dropping", "webhook_id", wh.ID, "event_id", eventID)
		}
	}
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()
	for job := range p.queue {
		p.deliver(job)
	}
}

func (p *Pipeline) deliver(job deliveryJob) {
	p.markHeartbeat()

	req, err := http.NewRequest(http.MethodPost, job.webhook.URL, bytes.NewReader(job.raw))
	if err != nil {
		p.recordFailure(job, 0, err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rijan-Signature", crypto.SignWebhookPayload(job.webhook.Secret, job.raw))
	req.Header.Set("X-Rijan-Attempt", fmt.Sprintf("%d", job.attempt))
	req.Header.Set("User-Agent", "rijan-wa/1.0")

	client := p.httpClient
	if job.webhook.TimeoutMS > 0 {
		c := *p.httpClient
		c.Timeout = time.Duration(job.webhook.TimeoutMS) * time.Millisecond
		client = &c
	}

	resp, err := client.Do(req)
	if err != nil {
		p.retryOrGiveUp(job, 0, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.recordSuccess(job, resp.StatusCode)
		return
	}

	retryable := resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	if !retryable {
		p.recordFailure(job, resp.StatusCode, fmt.Sprintf("non-retryable status %d", resp.StatusCode))
		return
	}
	p.retryOrGiveUp(job, resp.StatusCode, fmt.Sprintf("status %d", resp.StatusCode))
}

// retryOrGiveUp is reached after a retryable failure. Every attempt,
// retried or not, gets its own webhook_logs row (spec.md I7/S4 count
// entries per attempt, not just the final one); only the attempt that
// exhausts retry_count also writes a DLQ row.
func (p *Pipeline) retryOrGiveUp(job deliveryJob, statusCode int, reason string) {
	p.logAttempt(job, statusCode, reason)

	if job.attempt > job.webhook.RetryCount || job.attempt > len(backoffSchedule) {
		p.sendToDLQ(job, reason)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordWebhookOutcome("retried")
	}

	delay := backoffSchedule[job.attempt-1]
	next := job
	next.attempt++
	time.AfterFunc(delay, func() {
		select {
		case p.queue <- next:
		default:
			p.log.Warn("fanout: retry queue full, dropping", "webhook_id", job.webhook.ID, "event_id", job.eventID)
		}
	})
}

func (p *Pipeline) logAttempt(job deliveryJob, statusCode int, reason string) {
	logID := crypto.MustMintID("whlog")
	var statusPtr *int
	if statusCode != 0 {
		statusPtr = &statusCode
	}
	if err := p.store.CreateWebhookLog(logID, job.webhook.ID, &job.eventID, statusPtr, job.attempt, &reason); err != nil {
		p.log.Error("fanout: record webhook log", "error", err)
	}
}

func (p *Pipeline) sendToDLQ(job deliveryJob, reason string) {
	dlqID := crypto.MustMintID("dlq")
	if err := p.store.CreateDLQRow(dlqID, job.webhook.ID, job.raw, reason); err != nil {
		p.log.Error("fanout: record dlq row", "error", err)
	}
	if p.metrics != nil {
		p.metrics.RecordWebhookOutcome("dlq")
	}
}

func (p *Pipeline) recordSuccess(job deliveryJob, statusCode int) {
	logID := crypto.MustMintID("whlog")
	if err := p.store.CreateWebhookLog(logID, job.webhook.ID, &job.eventID, &statusCode, job.attempt, nil); err != nil {
		p.log.Error("fanout: record webhook log", "error", err)
	}
	if p.metrics != nil {
		p.metrics.RecordWebhookOutcome("delivered")
	}
}

// recordFailure handles a failure that never gets a retry (a
// non-retryable status, or a request that couldn't even be built): one
// webhook_logs row carrying the job's current attempt number, and an
// immediate DLQ row.
func (p *Pipeline) recordFailure(job deliveryJob, statusCode int, reason string) {
	p.logAttempt(job, statusCode, reason)
	p.sendToDLQ(job, reason)
}

// markHeartbeat stamps the last-activity time consumed by /ready.
func (p *Pipeline) markHeartbeat() {
	p.heartbeatMu.Lock()
	p.lastHeartbeat = time.Now()
	p.heartbeatMu.Unlock()
}

// LastHeartbeat reports the last time the pipeline processed work, for
// the /ready liveness check of component I.
func (p *Pipeline) LastHeartbeat() time.Time {
	p.heartbeatMu.Lock()
	defer p.heartbeatMu.Unlock()
	return p.lastHeartbeat
}

// DispatchTest sends a synthetic payload straight to one webhook through
// the normal delivery/retry path, bypassing event_log persistence and
// subscription matching. Used by the admin "test webhook" endpoint to
// let an operator confirm a subscriber URL works without waiting for a
// real device event.
func (p *Pipeline) DispatchTest(wh store.Webhook, eventType string, data any) error {
	payload := Payload{
		ID:        "test-" + wh.ID,
		EventType: eventType,
		TenantID:  wh.TenantID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhooks: marshal test payload: %w", err)
	}
	job := deliveryJob{webhook: wh, payload: payload, raw: raw, eventID: payload.ID, attempt: 1}
	select {
	case p.queue <- job:
		return nil
	default:
		return fmt.Errorf("webhooks: delivery queue full")
	}
}

// Shutdown closes the delivery queue and waits for the workers to
// deliver every job already in it; at-least-once delivery is
// best-effort across restarts (spec.md §4.F).
func (p *Pipeline) Shutdown() {
	close(p.queue)
	p.wg.Wait()
}
