package memberAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/memberAuth/cookie"
)

// Init runs the per-request flow: it consumes the one-shot login message,
// processes a clear-all-sessions link, validates the login cookie and
// otherwise authenticates a submitted login form.
//
// The returned error is non-nil only when the request must be aborted:
// [ErrAdminConflict] or [ErrClearLinkInvalid]. All other outcomes are
// reported through [AuthContext.IsLoggedIn] and [AuthContext.Message].
func (c *AuthContext) Init(ctx context.Context) error {
	if c == nil || c.engine == nil {
		return ErrEngineNotReady
	}

	c.consumeLoginMessage()

	if err := c.processClearLink(ctx); err != nil {
		return err
	}

	if c.Validate(ctx) {
		return nil
	}

	_, submitted := c.req.formValue(c.engine.config.Form.SubmitField)
	ok := c.Authenticate(ctx, "", "")
	if c.state == StateBlocked && errors.Is(c.lastErr, ErrAdminConflict) {
		return ErrAdminConflict
	}
	if !ok && submitted {
		c.fire(ctx, EventLoginFailed, nil, c.submittedUsername(), false)
	}
	return nil
}

// Validate checks the login cookie of the request and, when it is genuine
// and current, runs the account constraints. It returns true when a member
// was admitted.
func (c *AuthContext) Validate(ctx context.Context) bool {
	if c == nil || c.engine == nil {
		return false
	}
	e := c.engine
	start := time.Now()
	if e.metrics.LatencyEnabled() {
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	ok := c.validate(ctx)
	if ok {
		e.metricInc(MetricValidateSuccess)
	} else if c.state != StateUnauthenticated {
		e.metricInc(MetricValidateFailure)
	}
	return ok
}

func (c *AuthContext) validate(ctx context.Context) bool {
	e := c.engine
	raw, ok := c.authCookie()
	if !ok {
		return false
	}
	c.state = StateValidatingCookie
	c.gracePeriod = false

	v, err := cookie.Decode(raw)
	if err != nil {
		c.rejectCookie(ctx, "", ErrMalformedCookie, "")
		return false
	}

	now := e.now()
	var grace time.Duration
	if c.req.StateChanging() {
		grace = e.config.Cookie.GracePeriod
	}
	if cookie.Expired(v.Expiration, now, grace) {
		c.rejectCookie(ctx, "Session Expired.", ErrExpiredCookie, "")
		return false
	}
	if v.Expiration < now.Unix() {
		c.gracePeriod = true
	}

	m, err := e.members.FindByUsername(ctx, v.Username)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			c.rejectCookie(ctx, "Invalid Username", ErrUnknownUser, "")
			return false
		}
		c.backendFailure(ctx, StateCookieInvalid, "find member", err)
		return false
	}

	secret, err := e.secrets.SiteSecret(ctx, cookie.DefaultScheme)
	if err != nil {
		c.backendFailure(ctx, StateCookieInvalid, "site secret", err)
		return false
	}
	if !cookie.Verify(v, m.PasswordFragment(), secret) {
		c.member = m
		c.rejectCookie(ctx, "Please login again.", ErrSignatureMismatch, EventValidateHashMismatch)
		return false
	}

	if e.limiter.Enabled() {
		// a cookie admitted by grace keeps its lapsed token for the window
		at := now
		if c.gracePeriod {
			at = now.Add(-grace)
		}
		has, err := e.limiter.hasTokenAt(ctx, m.ID, raw, at)
		if err != nil {
			c.backendFailure(ctx, StateCookieInvalid, "session tokens", err)
			return false
		}
		if !has {
			c.member = m
			c.rejectCookie(ctx, "Session Expired! Please login again.", ErrSessionTokenMismatch, EventValidateSessionTokenError)
			return false
		}
	}

	c.member = m
	if c.checkConstraints(ctx) {
		return true
	}
	if errors.Is(c.lastErr, ErrAccountStateRejected) {
		c.clearAuthCookies()
		c.fire(ctx, EventCookiesCleared, m, "", false)
	}
	return false
}

// rejectCookie denies the cookie, fires event when set and clears the
// login cookies. c.member, when set, names the account in the events.
func (c *AuthContext) rejectCookie(ctx context.Context, message string, err error, event EventName) {
	m := c.member
	c.fail(StateCookieInvalid, message, err)
	c.engine.logger.DebugContext(ctx, "login cookie rejected",
		"request_id", requestIDFromContext(ctx),
		"reason", err,
	)
	if event != "" {
		c.fire(ctx, event, m, "", false)
	}
	c.clearAuthCookies()
	c.fire(ctx, EventCookiesCleared, m, "", false)
}

func (c *AuthContext) submittedUsername() string {
	u, _ := c.req.formValue(c.engine.config.Form.UsernameField)
	return sanitizeUsername(u)
}
