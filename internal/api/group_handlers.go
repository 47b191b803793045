package api

import (
	"net/http"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

type createGroupRequest struct {
	Subject      string   `json:"subject"`
	Participants []string `json:"participants"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Subject == "" || len(req.Participants) == 0 {
		s.writeError(w, r, apierr.Validation("subject and at least one participant are required"))
		return
	}
	jid, err := s.devices.CreateGroup(r.Context(), dev.ID, req.Subject, req.Participants)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"jid": jid})
}

type participantsRequest struct {
	GroupJID     string   `json:"groupJid"`
	Participants []string `json:"participants"`
}

func (s *Server) handleAddParticipants(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req participantsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.GroupJID == "" || len(req.Participants) == 0 {
		s.writeError(w, r, apierr.Validation("groupJid and at least one participant are required"))
		return
	}
	if err := s.devices.UpdateGroupParticipants(r.Context(), dev.ID, req.GroupJID, req.Participants, nil); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveParticipants(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req participantsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.GroupJID == "" || len(req.Participants) == 0 {
		s.writeError(w, r, apierr.Validation("groupJid and at least one participant are required"))
		return
	}
	if err := s.devices.UpdateGroupParticipants(r.Context(), dev.ID, req.GroupJID, nil, req.Participants); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
