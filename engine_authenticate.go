package memberAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/memberAuth/cookie"
	"github.com/MrEthical07/memberAuth/internal/rate"
	"github.com/MrEthical07/memberAuth/session"
)

const adminConflictMessage = "You are logged in as a site administrator. Log out of the administrator session before logging in as a member."

// Authenticate checks a username (or email) and password and, on success,
// issues the login cookie. Empty arguments are read from the submitted
// login form; remember-me is read from the form and the cookie slot follows
// the request scheme. Nothing happens when no credentials were submitted.
func (c *AuthContext) Authenticate(ctx context.Context, username, password string) bool {
	if c == nil || c.engine == nil {
		return false
	}
	_, remember := c.req.formValue(c.engine.config.Form.RememberField)
	return c.authenticate(ctx, username, password, remember, c.req.Secure)
}

// Login authenticates with explicit flags and validates the cookie it
// issued. It is a no-op when a member is already logged in. The status
// message is returned.
func (c *AuthContext) Login(ctx context.Context, username, password string, remember, secure bool) string {
	if c == nil || c.engine == nil {
		return ""
	}
	if c.IsLoggedIn() {
		return c.message
	}
	if c.authenticate(ctx, username, password, remember, secure) {
		c.Validate(ctx)
	}
	return c.message
}

func (c *AuthContext) authenticate(ctx context.Context, username, password string, remember, secure bool) bool {
	e := c.engine
	form := e.config.Form

	userGiven, passGiven := username != "", password != ""
	if !userGiven {
		username, userGiven = c.req.formValue(form.UsernameField)
	}
	if !passGiven {
		password, passGiven = c.req.formValue(form.PasswordField)
	}
	if !userGiven && !passGiven {
		return false
	}

	c.state = StateAuthenticating
	c.clearLink = ""
	if username == "" {
		c.fail(StateUnauthenticated, "Username field cannot be empty.", ErrMissingUsername)
		c.fire(ctx, EventAuthenticateFailed, nil, "", remember)
		return false
	}
	if password == "" {
		c.fail(StateUnauthenticated, "Password field cannot be empty.", ErrMissingPassword)
		c.fire(ctx, EventAuthenticateFailed, nil, username, remember)
		return false
	}

	c.fire(ctx, EventLoginBefore, nil, username, remember)

	if e.config.Security.BlockAdminPrincipal && c.req.Principal != nil && c.req.Principal.Administrator {
		c.fail(StateBlocked, adminConflictMessage, ErrAdminConflict)
		e.metricInc(MetricAdminConflict)
		e.logger.InfoContext(ctx, "member login blocked by administrator session",
			"principal", c.req.Principal.ID,
		)
		return false
	}

	if looksLikeEmail(username) {
		m, err := e.members.FindByEmail(ctx, username)
		switch {
		case err == nil:
			username = m.Username
		case !errors.Is(err, ErrMemberNotFound):
			c.backendFailure(ctx, StateUnauthenticated, "find member by email", err)
			return false
		}
	}
	username = sanitizeUsername(username)
	password = strings.TrimSpace(password)

	attempt := rate.Attempt{Username: username, IP: c.req.ClientIP}
	if e.throttle != nil {
		d, err := e.throttle.Check(ctx, attempt)
		if err != nil {
			c.backendFailure(ctx, StateUnauthenticated, "login throttle", err)
			return false
		}
		if !d.Allowed {
			c.fail(StateUnauthenticated, throttledMessage(d.RetryAfter), ErrLoginRateLimited)
			e.metricInc(MetricLoginRateLimited)
			c.fire(ctx, EventAuthenticateFailed, nil, username, remember)
			return false
		}
	}

	m, err := e.members.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrMemberNotFound) {
			c.backendFailure(ctx, StateUnauthenticated, "find member", err)
			return false
		}
		c.fail(StateUnauthenticated, "No user found with that username or email.", ErrUnknownUser)
		c.loginFailed(ctx, nil, attempt, remember)
		return false
	}

	if !verifyCredential(e.checker, password, m.PasswordHash) {
		c.fail(StateUnauthenticated, "Password empty or invalid.", ErrInvalidCredentials)
		c.loginFailed(ctx, m, attempt, remember)
		return false
	}

	reached, err := e.limiter.ReachedLimit(ctx, m.ID)
	if err != nil {
		c.backendFailure(ctx, StateUnauthenticated, "session tokens", err)
		return false
	}
	if reached {
		c.blockForLimit(ctx, m, remember)
		return false
	}

	c.member = m
	if !c.checkConstraints(ctx) {
		e.metricInc(MetricLoginFailure)
		return false
	}

	if err := c.issueCookie(ctx, m, remember, secure); err != nil {
		c.backendFailure(ctx, StateUnauthenticated, "issue cookie", err)
		return false
	}

	if e.throttle != nil {
		if err := e.throttle.Reset(ctx, attempt); err != nil {
			e.logger.WarnContext(ctx, "reset login throttle", "error", err)
		}
	}

	c.message = "Logged In."
	e.metricInc(MetricLoginSuccess)
	c.fire(ctx, EventLoginSucceeded, m, "", remember)
	return true
}

func (c *AuthContext) loginFailed(ctx context.Context, m *Member, attempt rate.Attempt, remember bool) {
	e := c.engine
	e.metricInc(MetricLoginFailure)
	if e.throttle != nil {
		d, err := e.throttle.RecordFailure(ctx, attempt)
		if err != nil {
			e.logger.WarnContext(ctx, "record failed login", "error", err)
		} else if !d.Allowed {
			e.logger.InfoContext(ctx, "login throttled",
				"username", attempt.Username,
				"failures", d.Failures,
				"retry_after", d.RetryAfter,
			)
		}
	}
	e.logger.DebugContext(ctx, "login failed",
		"username", attempt.Username,
		"reason", c.lastErr,
	)
	c.fire(ctx, EventAuthenticateFailed, m, attempt.Username, remember)
}

func throttledMessage(retryAfter time.Duration) string {
	if retryAfter <= 0 {
		return "Too many failed login attempts. Please try again later."
	}
	minutes := int((retryAfter + time.Minute - 1) / time.Minute)
	if minutes == 1 {
		return "Too many failed login attempts. Please try again in 1 minute."
	}
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d minutes.", minutes)
}

func (c *AuthContext) blockForLimit(ctx context.Context, m *Member, remember bool) {
	e := c.engine
	c.fail(StateBlocked, "Maximum active login limit reached.", ErrSessionLimitReached)
	e.metricInc(MetricSessionLimitReached)
	if e.limiter.Policy() == OverflowAllowClear {
		link, err := e.clearAllLink(ctx, m.ID)
		if err != nil {
			e.logger.WarnContext(ctx, "sign clear sessions link", "member_id", m.ID, "error", err)
		} else {
			c.clearLink = link
			c.message += " Would you like to clear all other active sessions?"
		}
	}
	c.fire(ctx, EventAuthenticateFailed, m, "", remember)
}

// LoginWithEmail logs in the member owning email without a password, for
// sign-in through an external identity that already proved the address.
func (c *AuthContext) LoginWithEmail(ctx context.Context, email string) bool {
	if c == nil || c.engine == nil {
		return false
	}
	e := c.engine
	m, err := e.members.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if !errors.Is(err, ErrMemberNotFound) {
			c.backendFailure(ctx, StateUnauthenticated, "find member by email", err)
			return false
		}
		c.fail(StateUnauthenticated, "No user found with that username or email.", ErrUnknownUser)
		c.fire(ctx, EventAuthenticateFailed, nil, email, false)
		return false
	}

	reached, err := e.limiter.ReachedLimit(ctx, m.ID)
	if err != nil {
		c.backendFailure(ctx, StateUnauthenticated, "session tokens", err)
		return false
	}
	if reached {
		c.blockForLimit(ctx, m, false)
		return false
	}

	c.member = m
	if !c.checkConstraints(ctx) {
		return false
	}
	if err := c.issueCookie(ctx, m, false, c.req.Secure); err != nil {
		c.backendFailure(ctx, StateUnauthenticated, "issue cookie", err)
		return false
	}
	c.message = "Logged In."
	e.metricInc(MetricLoginSuccess)
	c.fire(ctx, EventLoginSucceeded, m, "", false)
	return true
}

// issueCookie signs and sets the login cookie for m and records its
// session token.
func (c *AuthContext) issueCookie(ctx context.Context, m *Member, remember, secure bool) error {
	e := c.engine
	cfg := e.config.Cookie
	now := e.now()

	var expiration, expires time.Time
	sessionOnly := false
	if remember {
		expiration = now.Add(cfg.RememberLifetime)
		expires = expiration.Add(cfg.RememberGrace)
	} else {
		expiration = now.Add(cfg.DefaultLifetime)
		expires = expiration
		sessionOnly = cfg.SessionOnlyWithoutRemember
	}
	if !e.config.Account.AllowExpiredLogin {
		if end, ok := m.ExpiresAt(); ok && end.Before(expiration) {
			expiration = end
			if end.Before(expires) {
				expires = end
			}
		}
	}

	secret, err := e.secrets.SiteSecret(ctx, cookie.DefaultScheme)
	if err != nil {
		return err
	}
	value := cookie.Encode(m.Username, m.PasswordFragment(), expiration.Unix(), secret)

	c.secureSlot = secure
	c.setCookie(c.authCookieName(secure), value, expires, sessionOnly, secure)
	if cfg.InUseName != "" {
		c.setCookie(cfg.InUseName, "1", expires, sessionOnly, secure)
	}

	if e.limiter.Enabled() {
		token := session.Token{
			ExpiresAt: expiration.Unix(),
			CreatedAt: now.Unix(),
			IP:        c.req.ClientIP,
			UserAgent: c.req.UserAgent,
		}
		if err := e.limiter.Purge(ctx, m.ID, value, token); err != nil {
			c.clearAuthCookies()
			return err
		}
	}
	return nil
}
