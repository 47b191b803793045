package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/store"
)

// ownedDeviceHandler is a handler already holding the tenant-scoped,
// resolved device row.
type ownedDeviceHandler func(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device)

// withOwnedDevice implements spec.md §4.G's ownership check: the
// resolved tenant must own {deviceId} in the URL, else 404 — never 403,
// so a probing caller cannot distinguish "not yours" from "doesn't
// exist" (the existence-oracle rule, I-level invariant of §4.G).
func (s *Server) withOwnedDevice(next ownedDeviceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFromContext(r.Context())
		if !ok {
			s.writeError(w, r, apierr.Internal(nil, "tenant missing from authenticated request"))
			return
		}
		deviceID := mux.Vars(r)["deviceId"]
		dev, err := s.store.FindDeviceByTenant(tenant.ID, deviceID)
		if err != nil {
			s.writeError(w, r, apierr.NotFound("device not found"))
			return
		}
		next(w, r, tenant, dev)
	}
}

// withOwnedConnectedDevice additionally requires the device to be
// connected on some instance before accepting the request, per the
// "tenant+own+connected" auth column of spec.md §4.G's endpoint table.
func (s *Server) withOwnedConnectedDevice(next ownedDeviceHandler) http.HandlerFunc {
	return s.withOwnedDevice(func(w http.ResponseWriter, r *http.Request, tenant *store.Tenant, dev *store.Device) {
		if dev.Status != store.DeviceStatusConnected {
			s.writeError(w, r, apierr.State("device is not connected").WithSubKind("not_connected"))
			return
		}
		next(w, r, tenant, dev)
	})
}
