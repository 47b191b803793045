// Package api implements component G: the admin and tenant HTTP surface
// of spec.md §4.G, the ownership-check and auth-gate middleware, and the
// supplemented live-events websocket stream. Grounded in the teacher's
// internal/api/server.go (gorilla/mux router, CORS middleware) and
// internal/middleware/tenant.go (bearer-token tenant resolution).
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rijan-wa/gateway/internal/config"
	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/device"
	"github.com/rijan-wa/gateway/internal/metrics"
	"github.com/rijan-wa/gateway/internal/outbox"
	"github.com/rijan-wa/gateway/internal/store"
	"github.com/rijan-wa/gateway/internal/webhooks"
)

// Server wires every component this HTTP surface fronts.
type Server struct {
	store    *store.Store
	crypto   *crypto.Primitives
	devices  *device.Engine
	producer *outbox.Producer
	fanout   *webhooks.Pipeline
	metrics  *metrics.Server
	cfg      *config.Config
	log      *slog.Logger

	mediaGuard *mediaGuard
	events     *eventBroker
}

// New constructs a Server. metricsServer may be nil if health/ready/
// metrics are mounted separately.
func New(st *store.Store, prim *crypto.Primitives, devices *device.Engine, producer *outbox.Producer,
	fanout *webhooks.Pipeline, metricsServer *metrics.Server, cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:      st,
		crypto:     prim,
		devices:    devices,
		producer:   producer,
		fanout:     fanout,
		metrics:    metricsServer,
		cfg:        cfg,
		log:        log,
		mediaGuard: newMediaGuard(),
		events:     newEventBroker(),
	}
}

// Router builds the full gorilla/mux router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(s.requestIDMiddleware)

	if s.metrics != nil {
		observability := http.NewServeMux()
		s.metrics.Register(observability)
		r.PathPrefix("/health").Handler(observability)
		r.PathPrefix("/ready").Handler(observability)
		r.PathPrefix("/metrics").Handler(observability)
	}

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminGate)
	admin.HandleFunc("/tenants", s.handleCreateTenant).Methods(http.MethodPost)
	admin.HandleFunc("/tenants", s.handleListTenants).Methods(http.MethodGet)
	admin.HandleFunc("/tenants/{tenantId}", s.handleGetTenant).Methods(http.MethodGet)
	admin.HandleFunc("/tenants/{tenantId}", s.handlePatchTenant).Methods(http.MethodPatch)
	admin.HandleFunc("/tenants/{tenantId}", s.handleDeleteTenant).Methods(http.MethodDelete)
	admin.HandleFunc("/tenants/{tenantId}/devices", s.handleAdminCreateDevice).Methods(http.MethodPost)
	admin.HandleFunc("/audit", s.handleListAuditLogs).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.tenantGate)

	v1.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceId}", s.withOwnedDevice(s.handleGetDevice)).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceId}/start", s.withOwnedDevice(s.handleStartDevice)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/stop", s.withOwnedDevice(s.handleStopDevice)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/logout", s.withOwnedDevice(s.handleLogoutDevice)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/pairing/qr", s.withOwnedDevice(s.handleRequestQR)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/pairing/code", s.withOwnedDevice(s.handleRequestPairingCode)).Methods(http.MethodPost)

	v1.HandleFunc("/devices/{deviceId}/messages/text", s.withOwnedConnectedDevice(s.handleSendText)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/messages/media", s.withOwnedConnectedDevice(s.handleSendMedia)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/messages/location", s.withOwnedConnectedDevice(s.handleSendLocation)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/messages/contact", s.withOwnedConnectedDevice(s.handleSendContact)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/messages/reaction", s.withOwnedConnectedDevice(s.handleSendReaction)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/messages/poll", s.withOwnedConnectedDevice(s.handleSendPoll)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/messages/{messageId}", s.withOwnedDevice(s.handleDeleteMessage)).Methods(http.MethodDelete)
	v1.HandleFunc("/devices/{deviceId}/messages/{messageId}/status", s.withOwnedDevice(s.handleMessageStatus)).Methods(http.MethodGet)

	v1.HandleFunc("/devices/{deviceId}/events", s.withOwnedDevice(s.handleListEvents)).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceId}/events/stream", s.withOwnedDevice(s.handleEventStream)).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceId}/chats", s.withOwnedDevice(s.handleListChats)).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceId}/contacts/{lid}/phone", s.withOwnedDevice(s.handleLIDToPhone)).Methods(http.MethodGet)

	v1.HandleFunc("/devices/{deviceId}/groups/create", s.withOwnedConnectedDevice(s.handleCreateGroup)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/groups/participants/add", s.withOwnedConnectedDevice(s.handleAddParticipants)).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{deviceId}/groups/participants/remove", s.withOwnedConnectedDevice(s.handleRemoveParticipants)).Methods(http.MethodPost)

	v1.HandleFunc("/devices/{deviceId}/privacy/settings", s.withOwnedConnectedDevice(s.handleGetPrivacySettings)).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceId}/privacy/settings", s.withOwnedConnectedDevice(s.handleSetPrivacySettings)).Methods(http.MethodPost)

	v1.HandleFunc("/webhooks", s.handleCreateWebhook).Methods(http.MethodPost)
	v1.HandleFunc("/webhooks", s.handleListWebhooks).Methods(http.MethodGet)
	v1.HandleFunc("/webhooks/{webhookId}", s.handleGetWebhook).Methods(http.MethodGet)
	v1.HandleFunc("/webhooks/{webhookId}", s.handleUpdateWebhook).Methods(http.MethodPut)
	v1.HandleFunc("/webhooks/{webhookId}", s.handleDeleteWebhook).Methods(http.MethodDelete)
	v1.HandleFunc("/webhooks/{webhookId}/test", s.handleTestWebhook).Methods(http.MethodPost)

	return r
}

// ListenAndServe starts the HTTP server in a background goroutine with
// the read/write timeouts of config.ServerConfig and returns it at once;
// the caller stops it with Shutdown. A listen error is only logged.
func (s *Server) ListenAndServe(addr string) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
	}
	go func() {
		s.log.Info("api: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("api: listen failed", "error", err)
		}
	}()
	return srv
}

// AddrFromPort formats a bare port number as a listen address, so
// cmd/server doesn't need to know the ":" convention itself.
func AddrFromPort(port string) string { return fmt.Sprintf(":%s", port) }
