package api

import (
	"encoding/json"
	"net/http"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

// eventResponse mirrors EventLogRow but surfaces the payload column
// (hidden from JSON on the store type since it's stored as raw bytes)
// as a decoded object.
type eventResponse struct {
	ID         string `json:"id"`
	DeviceID   string `json:"deviceId"`
	EventType  string `json:"eventType"`
	Data       any    `json:"data"`
	ReceivedAt int64  `json:"receivedAt"`
}

func toEventResponse(row store.EventLogRow) eventResponse {
	resp := eventResponse{ID: row.ID, DeviceID: row.DeviceID, EventType: row.EventType, ReceivedAt: row.ReceivedAt}
	_ = json.Unmarshal(row.Payload, &resp.Data)
	return resp
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	q := store.EventQuery{
		Since:     queryInt64(r, "since", 0),
		EventType: r.URL.Query().Get("type"),
		Limit:     int(queryInt64(r, "limit", 100)),
	}
	rows, err := s.store.ListEvents(tenant.ID, dev.ID, q)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "list events"))
		return
	}
	out := make([]eventResponse, len(rows))
	for i, row := range rows {
		out[i] = toEventResponse(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
