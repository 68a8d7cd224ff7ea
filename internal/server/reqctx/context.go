// Package reqctx stores request-scoped values shared by the HTTP middleware,
// the gRPC interceptors, and handlers.
package reqctx

import (
	"context"

	"edu-platform/backend/internal/identity/domain"
)

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// WithPrincipal returns a context carrying p. If ctx already carries a
// principal it is returned unchanged, so attaching is idempotent.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	if p == nil {
		return ctx
	}
	if _, ok := PrincipalFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal from context and true if set; otherwise nil, false.
func PrincipalFrom(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

// UserID returns the authenticated user id and true if a principal is set.
func UserID(ctx context.Context) (int64, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return 0, false
	}
	return p.UserID, true
}
