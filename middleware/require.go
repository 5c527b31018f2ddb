package middleware

import (
	"net/http"

	memberAuth "github.com/MrEthical07/memberAuth"
)

// RequireMember passes only requests with a logged-in member. Others are
// redirected to loginURL, or get 401 when loginURL is empty or the request
// is an XMLHttpRequest. It must run after [Authenticate].
func RequireMember(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := memberAuth.FromContext(r.Context())
			if ok && ac.IsLoggedIn() {
				next.ServeHTTP(w, r)
				return
			}

			if loginURL == "" || ac == nil || ac.Request().Async {
				msg := "unauthorized"
				if ac != nil && ac.Message() != "" {
					msg = ac.Message()
				}
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, loginURL, http.StatusFound)
		})
	}
}

// RequireCapability passes only members whose tier grants capability.
func RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := memberAuth.FromContext(r.Context())
			if !ok || !ac.IsLoggedIn() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if perms := ac.Permissions(); perms == nil || !perms.Has(capability) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
