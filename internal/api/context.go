package api

import (
	"context"

	"github.com/rijan-wa/gateway/internal/store"
)

type contextKey int

const (
	tenantContextKey contextKey = iota
	requestIDContextKey
)

// withTenant attaches the authenticated tenant to the request context,
// the way the teacher's multitenancy.WithTenant does for its own tenant
// gate (internal/middleware/tenant.go).
func withTenant(ctx context.Context, t *store.Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey, t)
}

func tenantFromContext(ctx context.Context) (*store.Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey).(*store.Tenant)
	return t, ok
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
