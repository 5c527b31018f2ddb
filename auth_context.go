package memberAuth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// AuthState is the position of an [AuthContext] in the per-request flow.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateValidatingCookie
	StateCookieInvalid
	StateAuthenticating
	StateLoggedIn
	StateRejected
	StateBlocked
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValidatingCookie:
		return "validating_cookie"
	case StateCookieInvalid:
		return "cookie_invalid"
	case StateAuthenticating:
		return "authenticating"
	case StateLoggedIn:
		return "logged_in"
	case StateRejected:
		return "rejected"
	case StateBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// AuthContext is the auth state of one request. It is created by
// [Engine.Begin] and must not be shared between goroutines.
type AuthContext struct {
	engine    *Engine
	req       *Request
	transport Transport

	state       AuthState
	member      *Member
	permissions *PermissionBundle
	message     string
	lastErr     error
	gracePeriod bool
	clearLink   string

	// cookies written during this request; "" marks a deletion
	issued     map[string]string
	secureSlot bool
}

// IsLoggedIn reports whether a member was admitted.
func (c *AuthContext) IsLoggedIn() bool {
	return c != nil && c.state == StateLoggedIn && c.member != nil
}

// Member returns the admitted member, or nil.
func (c *AuthContext) Member() *Member {
	if !c.IsLoggedIn() {
		return nil
	}
	return c.member
}

// Permissions returns the permission bundle of the admitted member's tier.
func (c *AuthContext) Permissions() *PermissionBundle {
	if !c.IsLoggedIn() {
		return nil
	}
	return c.permissions
}

// Message returns the last user-facing status message.
func (c *AuthContext) Message() string { return c.message }

// Err returns the sentinel-wrapped cause of the last failure, or nil.
func (c *AuthContext) Err() error { return c.lastErr }

// State returns the current flow state.
func (c *AuthContext) State() AuthState { return c.state }

// InGracePeriod reports whether the cookie was admitted after its
// expiration because the request was state-changing.
func (c *AuthContext) InGracePeriod() bool { return c.gracePeriod }

// ClearAllLink returns the clear-all-sessions link offered after a login
// was blocked by the session limit, or "".
func (c *AuthContext) ClearAllLink() string { return c.clearLink }

// Request returns the request the context was started with.
func (c *AuthContext) Request() *Request { return c.req }

// Get looks key up in the member record, then in the permission bundle,
// and returns def when neither has it.
func (c *AuthContext) Get(key string, def any) any {
	if !c.IsLoggedIn() || key == "password" {
		return def
	}
	if v, ok := c.member.Field(key); ok {
		return v
	}
	return c.permissions.Get(key, def)
}

// ExpireDate returns the subscription end of the logged-in member. ok is
// false when not logged in or the subscription never expires.
func (c *AuthContext) ExpireDate() (time.Time, bool) {
	if !c.IsLoggedIn() {
		return time.Time{}, false
	}
	return c.member.ExpiresAt()
}

// IsExpiredAccount reports whether the logged-in member is expired or
// inactive. Only reachable when expired logins are allowed.
func (c *AuthContext) IsExpiredAccount() bool {
	if !c.IsLoggedIn() {
		return false
	}
	return c.member.State == AccountExpired || c.member.State == AccountInactive
}

func (c *AuthContext) admit(m *Member, bundle *PermissionBundle) {
	c.member = m
	c.permissions = bundle
	c.state = StateLoggedIn
	c.lastErr = nil
	c.message = "You are logged in as:" + m.Username
}

// fail resets the context to not logged in with state, message and cause.
func (c *AuthContext) fail(state AuthState, message string, err error) {
	c.member = nil
	c.permissions = nil
	c.state = state
	c.message = message
	c.lastErr = err
}

func (c *AuthContext) backendFailure(ctx context.Context, state AuthState, op string, err error) {
	c.engine.logger.WarnContext(ctx, "auth backend failure",
		"op", op,
		"request_id", requestIDFromContext(ctx),
		"error", err,
	)
	c.fail(state, "", fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op, err))
}

func (c *AuthContext) fire(ctx context.Context, name EventName, m *Member, username string, remember bool) {
	e := c.engine
	ev := Event{
		Name:     name,
		Username: username,
		Message:  c.message,
		Remember: remember,
		At:       e.now(),
	}
	if m != nil {
		ev.MemberID = m.ID
		if ev.Username == "" {
			ev.Username = m.Username
		}
	}
	e.notifier.Notify(ctx, ev)
	if id, ok := eventMetric[name]; ok {
		e.metricInc(id)
	}
	var cause error
	if !auditSuccess[name] {
		cause = c.lastErr
	}
	e.emitAudit(ctx, ev, c.req.ClientIP, cause)
}

/*
====================================
COOKIES
====================================
*/

func (c *AuthContext) authCookieName(secure bool) string {
	if secure {
		return c.engine.config.Cookie.SecureName
	}
	return c.engine.config.Cookie.Name
}

// authCookie returns the login cookie of the active slot, preferring one
// issued during this request.
func (c *AuthContext) authCookie() (string, bool) {
	return c.readCookie(c.authCookieName(c.secureSlot))
}

func (c *AuthContext) readCookie(name string) (string, bool) {
	if v, ok := c.issued[name]; ok {
		return v, v != ""
	}
	v, ok := c.req.cookie(name)
	return v, ok && v != ""
}

func (c *AuthContext) setCookie(name, value string, expires time.Time, sessionOnly, secure bool) {
	cfg := c.engine.config.Cookie
	hc := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   secure,
		SameSite: c.engine.sameSite,
	}
	if !sessionOnly {
		hc.Expires = expires.UTC()
	}
	c.issued[name] = value
	c.transport.SetCookie(hc)
}

func (c *AuthContext) deleteCookie(name string) {
	cfg := c.engine.config.Cookie
	c.issued[name] = ""
	c.transport.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
	})
}

// clearAuthCookies deletes both login cookie slots and the in-use marker.
func (c *AuthContext) clearAuthCookies() {
	cfg := c.engine.config.Cookie
	c.deleteCookie(cfg.Name)
	c.deleteCookie(cfg.SecureName)
	if cfg.InUseName != "" {
		c.deleteCookie(cfg.InUseName)
	}
}

// SetNextLoginMessage stores msg in the one-shot message cookie. The next
// request shows it through [AuthContext.Message] after [AuthContext.Init].
func (c *AuthContext) SetNextLoginMessage(msg string) {
	name := c.engine.config.Cookie.MessageName
	if name == "" {
		return
	}
	c.setCookie(name, url.QueryEscape(msg), c.engine.now().Add(time.Hour), false, c.req.Secure)
}

func (c *AuthContext) consumeLoginMessage() {
	name := c.engine.config.Cookie.MessageName
	if name == "" {
		return
	}
	if raw, ok := c.req.cookie(name); ok {
		if msg, err := url.QueryUnescape(raw); err == nil && msg != "" {
			c.message = msg
		}
		c.deleteCookie(name)
	}
}
