package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID uuid.UUID
	// Role is the token's role claim. It is informational; admin access is
	// decided by RequireAdmin against stored grants.
	Role string
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom reports the caller set by Auth, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.UserID != uuid.Nil
}

func callerScope(ctx context.Context) string {
	if c, ok := CallerFrom(ctx); ok {
		return c.UserID.String()
	}
	return ""
}
