package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	rows, err := s.store.ListChats(dev.ID)
	if err != nil {
		s.writeError(w, r, apierr.Internal(err, "list chats"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": rows})
}

func (s *Server) handleLIDToPhone(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
	lid := mux.Vars(r)["lid"]
	phone, err := s.store.FindPhoneByLID(dev.ID, lid)
	if err != nil {
		s.writeError(w, r, apierr.NotFound("no phone number cached for lid %q", lid))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lid": lid, "phone": phone})
}
