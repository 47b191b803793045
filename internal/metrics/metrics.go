// Package metrics implements component I: the Prometheus registry and
// the /health, /ready, /metrics HTTP surface of spec.md §4.I.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rijan-wa/gateway/internal/store"
)

// Registry holds every Prometheus collector the gateway exposes, over
// its own prometheus.Registry rather than the global default — this
// keeps multiple Registry instances (one per test, or a blue/green
// pair in-process) from colliding on collector names.
type Registry struct {
	store    *store.Store
	registry *prometheus.Registry

	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec

	DevicesByStatus *prometheus.GaugeVec
	ActiveWebhooks  prometheus.Gauge
	DLQSize         prometheus.Gauge
	UptimeSeconds   prometheus.Gauge
	MemoryBytes     prometheus.Gauge

	startedAt time.Time
}

// New constructs a Registry and registers its collectors on a fresh
// prometheus.Registry.
func New(st *store.Store) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		store:    st,
		registry: reg,
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_messages_sent_total",
				Help: "Total outbound messages sent per message type.",
			},
			[]string{"message_type"},
		),
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_messages_received_total",
				Help: "Total inbound messages received per message type.",
			},
			[]string{"message_type"},
		),
		WebhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhook_deliveries_total",
				Help: "Total webhook delivery attempts by outcome.",
			},
			[]string{"outcome"}, // delivered, retried, dlq
		),
		DevicesByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_devices_by_status",
				Help: "Current device count by lifecycle status.",
			},
			[]string{"status"},
		),
		ActiveWebhooks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_webhooks",
			Help: "Number of enabled webhook subscriptions.",
		}),
		DLQSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_webhook_dlq_size",
			Help: "Number of rows in the webhook dead-letter queue.",
		}),
		UptimeSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_uptime_seconds",
			Help: "Seconds since this process started.",
		}),
		MemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_memory_bytes",
			Help: "Current process heap allocation in bytes.",
		}),
		startedAt: time.Now(),
	}
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// RecordMessageSent increments the per-type outbound counter; called
// by internal/outbox's sender after a successful dispatch.
func (r *Registry) RecordMessageSent(messageType string) {
	r.MessagesSent.WithLabelValues(messageType).Inc()
}

// RecordMessageReceived increments the per-type inbound counter;
// called by internal/device's OnMessage hook.
func (r *Registry) RecordMessageReceived(messageType string) {
	r.MessagesReceived.WithLabelValues(messageType).Inc()
}

// RecordWebhookOutcome increments the delivery-outcome counter; called
// by internal/webhooks.Pipeline after each attempt resolves.
func (r *Registry) RecordWebhookOutcome(outcome string) {
	r.WebhookDeliveries.WithLabelValues(outcome).Inc()
}

// Refresh pulls the current store-derived gauges (device counts,
// active webhooks, DLQ size) plus process uptime and heap usage. It is
// cheap enough to call on every scrape interval from a background
// ticker; it does not block a concurrent /metrics read since each
// Prometheus collector is safe for concurrent Set/Inc.
func (r *Registry) Refresh() error {
	counts, err := r.store.DeviceCountsByStatus()
	if err != nil {
		return err
	}
	for _, status := range []string{
		store.DeviceStatusDisconnected, store.DeviceStatusConnecting,
		store.DeviceStatusPairing, store.DeviceStatusNeedsPairing,
		store.DeviceStatusConnected, store.DeviceStatusFailed,
	} {
		r.DevicesByStatus.WithLabelValues(status).Set(float64(counts[status]))
	}

	activeWebhooks, err := r.store.CountEnabledWebhooks()
	if err != nil {
		return err
	}
	r.ActiveWebhooks.Set(float64(activeWebhooks))

	dlqSize, err := r.store.CountDLQ()
	if err != nil {
		return err
	}
	r.DLQSize.Set(float64(dlqSize))

	r.UptimeSeconds.Set(time.Since(r.startedAt).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	r.MemoryBytes.Set(float64(mem.HeapAlloc))

	return nil
}
