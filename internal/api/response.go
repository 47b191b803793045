package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rijan-wa/gateway/internal/apierr"
)

// errorBody is the JSON envelope of SPEC_FULL.md §1: {error:{kind,
// subKind?, message, requestId}}.
type errorBody struct {
	Kind      string `json:"kind"`
	SubKind   string `json:"subKind,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates any error into the HTTP envelope, masking
// internal detail outside development the way config.IsProduction()
// gates the teacher's own error responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.As(err)
	requestID := requestIDFromContext(r.Context())

	message := apiErr.Message
	if apiErr.Kind == apierr.KindInternal && s.cfg.IsProduction() {
		message = "internal error"
	}

	s.log.Error("api: request failed",
		"path", r.URL.Path, "kind", apiErr.Kind, "sub_kind", apiErr.SubKind, "request_id", requestID, "error", apiErr.Unwrap())

	writeJSON(w, apiErr.Kind.HTTPStatus(), errorEnvelope{Error: errorBody{
		Kind:      string(apiErr.Kind),
		SubKind:   apiErr.SubKind,
		Message:   message,
		RequestID: requestID,
	}})
}

// decodeJSON reads and validates a JSON request body, returning a
// validation apierr on malformed input so handlers never hand
// encoding/json's raw error to writeError directly.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, http.ErrBodyNotAllowed) {
			return apierr.Validation("request body not allowed")
		}
		return apierr.Validation("malformed request body: %v", err)
	}
	return nil
}
