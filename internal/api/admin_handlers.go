package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/store"
)

type createTenantRequest struct {
	Name string `json:"name"`
}

type createTenantResponse struct {
	Tenant store.Tenant `json:"tenant"`
	Token  string       `json:"token"`
}

// handleCreateTenant creates a tenant and returns its bearer token
// exactly once, per spec.md §4.G. The token is never persisted; only
// its fingerprint is.
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		s.writeError(w, r, apierr.Validation("name is required"))
		return
	}

	id := crypto.MustMintID("tenant")
	token, err := s.crypto.IssueTenantToken(id, s.cfg.TokenTTL())
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "issue tenant token"))
		return
	}

	tenant, err := s.store.CreateTenant(id, req.Name, crypto.TokenFingerprint(token))
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "create tenant"))
		return
	}

	writeJSON(w, http.StatusCreated, createTenantResponse{Tenant: *tenant, Token: token})
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.store.ListTenants()
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "list tenants"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["tenantId"]
	tenant, err := s.store.FindTenantByID(id)
	if err != nil {
		s.writeError(w, r, apierr.NotFound("tenant not found"))
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

type patchTenantRequest struct {
	Status string `json:"status"`
}

// handlePatchTenant suspends or reactivates a tenant.
func (s *Server) handlePatchTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["tenantId"]
	var req patchTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Status != store.TenantStatusActive && req.Status != store.TenantStatusSuspended {
		s.writeError(w, r, apierr.Validation("status must be %q or %q", store.TenantStatusActive, store.TenantStatusSuspended))
		return
	}
	if err := s.store.SetTenantStatus(id, req.Status); err != nil {
		s.writeError(w, r, apierr.NotFound("tenant not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

// handleDeleteTenant soft-deletes (tombstones) a tenant. Hard deletion
// (store.HardDeleteTenant) is not exposed over HTTP.
func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["tenantId"]
	if err := s.store.SoftDeleteTenant(id); err != nil {
		s.writeError(w, r, apierr.NotFound("tenant not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createDeviceRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleAdminCreateDevice(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]
	if _, err := s.store.FindTenantByID(tenantID); err != nil {
		s.writeError(w, r, apierr.NotFound("tenant not found"))
		return
	}

	var req createDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := crypto.MustMintID("device")
	dev, err := s.store.CreateDevice(id, tenantID, req.Label)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "create device"))
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := store.AuditQuery{
		TenantID: r.URL.Query().Get("tenantId"),
		Action:   r.URL.Query().Get("action"),
		Since:    queryInt64(r, "since", 0),
		Limit:    int(queryInt64(r, "limit", 100)),
	}
	rows, err := s.store.ListAuditLogs(q)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "list audit logs"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auditLogs": rows})
}
