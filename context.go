package memberAuth

import (
	"context"

	"github.com/google/uuid"
)

type requestIDContextKey struct{}
type authContextKey struct{}

// WithRequestID attaches a request identifier to ctx. Audit events and
// debug logs carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// NewRequestID returns a random request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// NewContext returns a copy of ctx carrying ac. HTTP middleware uses it to
// hand the per-request [AuthContext] to handlers.
func NewContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext returns the [AuthContext] stored by [NewContext].
func FromContext(ctx context.Context) (*AuthContext, bool) {
	if ctx == nil {
		return nil, false
	}

	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok && ac != nil
}
