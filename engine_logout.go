package memberAuth

import (
	"context"
	"fmt"
	"net/url"
)

// Logout clears the login cookies and the current session token. It is a
// no-op when no member is logged in. notify fires the logout event.
func (c *AuthContext) Logout(ctx context.Context, notify bool) {
	if !c.IsLoggedIn() {
		return
	}
	e := c.engine
	m := c.member

	raw, hasCookie := c.authCookie()
	c.clearAuthCookies()
	if hasCookie && e.limiter.Enabled() {
		if err := e.limiter.Clear(ctx, m.ID, raw); err != nil {
			e.logger.WarnContext(ctx, "clear session token", "member_id", m.ID, "error", err)
		}
	}

	c.fail(StateUnauthenticated, "Logged Out Successfully.", nil)
	c.gracePeriod = false
	e.metricInc(MetricLogout)
	if notify {
		c.fire(ctx, EventLogout, m, "", false)
	}
}

// LogoutSilent logs out without the logout event, force-clears the login
// cookies and returns the URL to redirect to.
func (c *AuthContext) LogoutSilent(ctx context.Context) string {
	c.Logout(ctx, false)
	c.clearAuthCookies()

	target := c.engine.config.Account.LogoutRedirectURL
	if target == "" {
		target = "/"
	}
	return appendQuery(target, url.Values{"logged_out": {"1"}})
}

// ReloadMember re-reads the logged-in member from the store.
func (c *AuthContext) ReloadMember(ctx context.Context) error {
	if !c.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	m, err := c.engine.members.FindByID(ctx, c.member.ID)
	if err != nil {
		return err
	}
	c.member = m
	return nil
}

// MatchPassword reports whether plain is the logged-in member's password.
func (c *AuthContext) MatchPassword(plain string) bool {
	if !c.IsLoggedIn() {
		return false
	}
	return verifyCredential(c.engine.checker, plain, c.member.PasswordHash)
}

// ResetAfterPasswordChange re-issues the login cookie after the member's
// password hash changed to newHash. Every other session of the account is
// cleared, since their cookies no longer verify.
func (c *AuthContext) ResetAfterPasswordChange(ctx context.Context, newHash string, remember, secure bool) error {
	if !c.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	e := c.engine
	m := c.member
	m.PasswordHash = newHash

	if err := e.limiter.Clear(ctx, m.ID, ""); err != nil {
		return err
	}
	if err := c.issueCookie(ctx, m, remember, secure); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	c.fire(ctx, EventSessionsCleared, m, "", remember)
	return nil
}

// ChangePassword hashes and stores a new password for the logged-in member
// and re-issues the login cookie.
func (c *AuthContext) ChangePassword(ctx context.Context, newPassword string, remember bool) error {
	if !c.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	e := c.engine
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.members.Update(ctx, c.member.ID, MemberUpdate{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return c.ResetAfterPasswordChange(ctx, hash, remember, c.secureSlot)
}

// DeleteAccount logs the member out, clears every session and deletes the
// record.
func (c *AuthContext) DeleteAccount(ctx context.Context) error {
	if !c.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	e := c.engine
	id := c.member.ID

	c.Logout(ctx, true)
	if err := e.limiter.Clear(ctx, id, ""); err != nil {
		return err
	}
	if err := e.members.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
