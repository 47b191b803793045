package api

import (
	"net/http"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

func (s *Server) handleGetPrivacySettings(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	settings, err := s.devices.GetPrivacySettings(r.Context(), dev.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSetPrivacySettings(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var settings map[string]string
	if err := decodeJSON(r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(settings) == 0 {
		s.writeError(w, r, apierr.Validation("at least one setting is required"))
		return
	}
	if err := s.devices.SetPrivacySettings(r.Context(), dev.ID, settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
