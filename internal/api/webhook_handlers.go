package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

type webhookRequest struct {
	URL        string   `json:"url"`
	Events     []string `json:"events"`
	Secret     string   `json:"secret,omitempty"`
	RetryCount int      `json:"retryCount,omitempty"`
	TimeoutMS  int      `json:"timeoutMs,omitempty"`
	Enabled    *bool    `json:"enabled,omitempty"`
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.URL == "" || len(req.Events) == 0 {
		s.writeError(w, r, apierr.Validation("url and at least one event are required"))
		return
	}
	if err := s.mediaGuard.ValidateURL(req.URL); err != nil {
		s.writeError(w, r, err)
		return
	}
	secret := req.Secret
	if secret == "" {
		secret = uuid.NewString()
	}
	retryCount := req.RetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	timeoutMS := req.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = 5000
	}
	hook, err := s.store.CreateWebhook(uuid.NewString(), tenant.ID, req.URL, secret, req.Events, retryCount, timeoutMS)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "create webhook"))
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	hooks, err := s.store.ListWebhooksByTenant(tenant.ID)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "list webhooks"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": hooks})
}

func (s *Server) findOwnedWebhook(r *http.Request) (*store.Tenant, *store.Webhook, error) {
	tenant, _ := tenantFromContext(r.Context())
	id := mux.Vars(r)["webhookId"]
	hook, err := s.store.FindWebhookByTenant(tenant.ID, id)
	if err != nil {
		return tenant, nil, apierr.NotFound("webhook not found")
	}
	return tenant, hook, nil
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	_, hook, err := s.findOwnedWebhook(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hook)
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	tenant, hook, err := s.findOwnedWebhook(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.URL == "" || len(req.Events) == 0 {
		s.writeError(w, r, apierr.Validation("url and at least one event are required"))
		return
	}
	if err := s.mediaGuard.ValidateURL(req.URL); err != nil {
		s.writeError(w, r, err)
		return
	}
	secret := req.Secret
	if secret == "" {
		secret = hook.Secret
	}
	enabled := hook.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	retryCount := req.RetryCount
	if retryCount <= 0 {
		retryCount = hook.RetryCount
	}
	timeoutMS := req.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = hook.TimeoutMS
	}
	if err := s.store.UpdateWebhook(tenant.ID, hook.ID, req.URL, secret, req.Events, enabled, retryCount, timeoutMS); err != nil {
		s.writeError(w, r, apierr.Internal(err, "update webhook"))
		return
	}
	updated, err := s.store.FindWebhookByTenant(tenant.ID, hook.ID)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "reload webhook"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	tenant, hook, err := s.findOwnedWebhook(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteWebhook(tenant.ID, hook.ID); err != nil {
		s.writeError(w, r, apierr.Internal(err, "delete webhook"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTestWebhook sends a synthetic device.connected event through the
// real delivery pipeline so an operator can confirm a subscriber URL is
// reachable and signature-verifiable without waiting for a live event.
func (s *Server) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	_, hook, err := s.findOwnedWebhook(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sample := map[string]string{"message": "this is a test delivery"}
	if err := s.fanout.DispatchTest(*hook, "device.connected", sample); err != nil {
		s.writeError(w, r, apierr.Internal(err, "dispatch test delivery"))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
