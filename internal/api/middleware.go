package api

import (
	"net/http"
	"strings"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/store"
)

// corsMiddleware mirrors the teacher's permissive dev-mode CORS
// (internal/api/server.go), generalized to the method set this gateway
// actually exposes.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Master-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware stamps every request with an id, minted via
// internal/crypto the way the teacher's X-Request-ID convention does,
// and attaches it to the response header and request context.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = crypto.MustMintID("req")
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// adminGate requires X-Master-Key and verifies it against the
// configured reference, per spec.md §4.G. Failures are audit-logged
// with actor=unknown, action=admin.auth.failed.
func (s *Server) adminGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Master-Key")
		if key == "" || !s.crypto.VerifyMaster(key) {
			s.auditFailedAdminAuth(r)
			s.writeError(w, r, apierr.Auth("invalid or missing master key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auditFailedAdminAuth(r *http.Request) {
	ip := r.RemoteAddr
	ua := r.UserAgent()
	action := "admin.auth.failed"
	if err := s.store.CreateAuditLog(crypto.MustMintID("audit"), store.AuditEntry{
		Actor: "unknown", Action: action, IPAddress: &ip, UserAgent: &ua,
	}); err != nil {
		s.log.Error("api: write admin auth failure audit log", "error", err)
	}
}

// tenantGate requires Authorization: Bearer <token> (or X-API-Key),
// verifies it, and loads the owning tenant by token fingerprint, per
// spec.md §4.G. An expired token reports a distinct sub-kind.
func (s *Server) tenantGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, apierr.Auth("missing bearer token or X-API-Key").WithSubKind("missing_token"))
			return
		}

		verification := s.crypto.VerifyTenantToken(token)
		if !verification.Valid {
			if verification.Expired {
				s.writeError(w, r, apierr.Auth("token expired").WithSubKind("expired"))
				return
			}
			s.writeError(w, r, apierr.Auth("invalid token").WithSubKind("invalid"))
			return
		}

		tenant, err := s.store.FindTenantByAPIKeyHash(crypto.TokenFingerprint(token))
		if err != nil {
			s.writeError(w, r, apierr.Auth("invalid token").WithSubKind("invalid"))
			return
		}
		if tenant.Status != store.TenantStatusActive {
			s.writeError(w, r, apierr.Auth("tenant is not active").WithSubKind("tenant_inactive"))
			return
		}

		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenant)))
	})
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}
