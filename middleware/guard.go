package middleware

import (
	"errors"
	"net/http"

	memberAuth "github.com/MrEthical07/memberAuth"
)

// RequestIDHeader is read for an incoming request id and echoed on the
// response.
const RequestIDHeader = "X-Request-ID"

// Option configures [Authenticate].
type Option func(*options)

type options struct {
	principal func(*http.Request) *memberAuth.Principal
}

// WithPrincipal sets a resolver for the host application's own signed-in
// user. An administrator principal blocks member logins when the engine's
// BlockAdminPrincipal is set.
func WithPrincipal(fn func(*http.Request) *memberAuth.Principal) Option {
	return func(o *options) { o.principal = fn }
}

// Authenticate runs AuthContext.Init for every request and hands the
// context to next. Requests Init aborts are answered here:
// an administrator conflict with 403 and a rejected clear-sessions link
// with 400, both carrying the context message.
func Authenticate(engine *memberAuth.Engine, opts ...Option) func(http.Handler) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = memberAuth.NewRequestID()
			}
			w.Header().Set(RequestIDHeader, requestID)
			ctx := memberAuth.WithRequestID(r.Context(), requestID)

			req := memberAuth.RequestFromHTTP(r)
			if o.principal != nil {
				req.Principal = o.principal(r)
			}

			ac := engine.Begin(req, memberAuth.ResponseTransport(w))
			if err := ac.Init(ctx); err != nil {
				switch {
				case errors.Is(err, memberAuth.ErrAdminConflict):
					http.Error(w, ac.Message(), http.StatusForbidden)
				case errors.Is(err, memberAuth.ErrClearLinkInvalid):
					http.Error(w, ac.Message(), http.StatusBadRequest)
				default:
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(memberAuth.NewContext(ctx, ac)))
		})
	}
}
