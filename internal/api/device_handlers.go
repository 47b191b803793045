package api

import (
	"net/http"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	devices, err := s.store.ListDevicesByTenant(tenant.ID)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "list devices"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

type deviceDetailResponse struct {
	store.Device
	Health any `json:"health"`
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	health, err := s.devices.Health(dev.ID)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "read device health"))
		return
	}
	writeJSON(w, http.StatusOK, deviceDetailResponse{Device: *dev, Health: health})
}

func (s *Server) handleStartDevice(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	if err := s.devices.Start(r.Context(), dev.ID, tenant.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": dev.ID, "status": "starting"})
}

func (s *Server) handleStopDevice(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	if err := s.devices.Stop(r.Context(), dev.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": dev.ID, "status": "stopped"})
}

func (s *Server) handleLogoutDevice(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	if err := s.devices.Logout(r.Context(), dev.ID, tenant.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": dev.ID, "status": "needs_pairing"})
}

func (s *Server) handleRequestQR(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	res, err := s.devices.RequestQR(r.Context(), dev.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type pairingCodeRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleRequestPairingCode(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req pairingCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Phone == "" {
		s.writeError(w, r, apierr.Validation("phone is required"))
		return
	}
	res, err := s.devices.RequestPairingCode(r.Context(), dev.ID, req.Phone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
