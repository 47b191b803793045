package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

type sendResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Created bool   `json:"created"`
}

// enqueueSend runs the common produce-to-Outbox path shared by every
// messages/{type} endpoint: decode the typed body, marshal it back to
// the raw payload the outbox/protocol boundary carries, and hand it to
// the producer with the caller's idempotency key, if any.
func (s *Server) enqueueSend(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device, jid, messageType string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "marshal message payload"))
		return
	}

	var idempotencyKey *string
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		idempotencyKey = &key
	}

	row, created, decision, err := s.producer.Enqueue(tenant.ID, dev.ID, jid, messageType, payload, idempotencyKey)
	if err != nil {
		if decision.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if decision.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
			}
		}
		s.writeError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sendResponse{ID: row.ID, Status: row.Status, Created: created})
}

type textMessageRequest struct {
	JID  string `json:"jid"`
	Text string `json:"text"`
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req textMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.JID == "" || req.Text == "" {
		s.writeError(w, r, apierr.Validation("jid and text are required"))
		return
	}
	s.enqueueSend(w, r, tenant, dev, req.JID, "text", req)
}

type mediaMessageRequest struct {
	JID      string `json:"jid"`
	MediaURL string `json:"mediaUrl"`
	Caption  string `json:"caption,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

func (s *Server) handleSendMedia(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req mediaMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.JID == "" || req.MediaURL == "" {
		s.writeError(w, r, apierr.Validation("jid and mediaUrl are required"))
		return
	}
	if err := s.mediaGuard.ValidateURL(req.MediaURL); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.enqueueSend(w, r, tenant, dev, req.JID, "media", req)
}

type locationMessageRequest struct {
	JID       string  `json:"jid"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

func (s *Server) handleSendLocation(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req locationMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.JID == "" {
		s.writeError(w, r, apierr.Validation("jid is required"))
		return
	}
	s.enqueueSend(w, r, tenant, dev, req.JID, "location", req)
}

type contactMessageRequest struct {
	JID          string `json:"jid"`
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
}

func (s *Server) handleSendContact(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req contactMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.JID == "" || req.ContactPhone == "" {
		s.writeError(w, r, apierr.Validation("jid and contactPhone are required"))
		return
	}
	s.enqueueSend(w, r, tenant, dev, req.JID, "contact", req)
}

type reactionMessageRequest struct {
	JID             string `json:"jid"`
	TargetMessageID string `json:"targetMessageId"`
	Emoji           string `json:"emoji"`
}

func (s *Server) handleSendReaction(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req reactionMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.JID == "" || req.TargetMessageID == "" {
		s.writeError(w, r, apierr.Validation("jid and targetMessageId are required"))
		return
	}
	s.enqueueSend(w, r, tenant, dev, req.JID, "reaction", req)
}

type pollMessageRequest struct {
	JID                  string   `json:"jid"`
	Question             string   `json:"question"`
	Options              []string `json:"options"`
	AllowMultipleAnswers bool     `json:"allowMultipleAnswers,omitempty"`
}

func (s *Server) handleSendPoll(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	var req pollMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.JID == "" || req.Question == "" || len(req.Options) < 2 {
		s.writeError(w, r, apierr.Validation("jid, question, and at least two options are required"))
		return
	}
	s.enqueueSend(w, r, tenant, dev, req.JID, "poll", req)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	id := mux.Vars(r)["messageId"]
	if err := s.store.TombstoneOutboxRow(tenant.ID, id); err != nil {
		s.writeError(w, r, apierr.NotFound("message not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessageStatus(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	id := mux.Vars(r)["messageId"]
	row, err := s.store.FindOutboxByTenant(tenant.ID, id)
	if err != nil {
		s.writeError(w, r, apierr.NotFound("message not found"))
		return
	}
	writeJSON(w, http.StatusOK, row)
}
