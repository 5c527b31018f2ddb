package memberAuth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	clearSessionsPurpose = "clear_sessions"
	linkSecretScheme     = "nonce"
	clearLinkClaimPrefix = "clear:"

	queryClearAll = "clear_all_session_tokens"
	queryMemberID = "member_id"
	queryToken    = "token"
)

// clearAllLink signs a one-time link that clears every session of memberID.
func (e *Engine) clearAllLink(ctx context.Context, memberID int64) (string, error) {
	key, err := e.secrets.SiteSecret(ctx, linkSecretScheme)
	if err != nil {
		return "", err
	}
	id := strconv.FormatInt(memberID, 10)
	token, _, err := e.links.Sign(key, id, clearSessionsPurpose)
	if err != nil {
		return "", err
	}

	base := e.config.ClearLink.BaseURL
	if base == "" {
		base = "/"
	}
	return appendQuery(base, url.Values{
		queryClearAll: {"1"},
		queryMemberID: {id},
		queryToken:    {token},
	}), nil
}

// processClearLink handles a clear-all-sessions link on the request. It is
// ignored when the session limiter is off.
func (c *AuthContext) processClearLink(ctx context.Context) error {
	e := c.engine
	if c.req.queryValue(queryClearAll) != "1" || !e.limiter.Enabled() {
		return nil
	}

	rawID := c.req.queryValue(queryMemberID)
	key, err := e.secrets.SiteSecret(ctx, linkSecretScheme)
	if err != nil {
		return c.rejectLink(ctx, "Nonce verification failed!", fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
	}
	claims, err := e.links.Parse(key, c.req.queryValue(queryToken), clearSessionsPurpose)
	if err != nil {
		return c.rejectLink(ctx, "Nonce verification failed!", err)
	}
	if claims.Subject != rawID {
		return c.rejectLink(ctx, "Invalid Member ID", errors.New("member id does not match link"))
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return c.rejectLink(ctx, "Invalid Member ID", err)
	}
	m, err := e.members.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return c.rejectLink(ctx, "Invalid Member ID", err)
		}
		return c.rejectLink(ctx, "Nonce verification failed!", fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
	}

	ttl := e.links.TTL()
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(e.now()) + time.Minute
	}
	first, err := e.limiter.claimOnce(ctx, clearLinkClaimPrefix+claims.ID, ttl)
	if err != nil {
		return c.rejectLink(ctx, "Nonce verification failed!", err)
	}
	if !first {
		return c.rejectLink(ctx, "This link has already been used.", errors.New("link already used"))
	}

	if err := e.limiter.Clear(ctx, m.ID, ""); err != nil {
		return c.rejectLink(ctx, "Nonce verification failed!", err)
	}

	c.message = "All session tokens cleared, try to log in now."
	c.fire(ctx, EventSessionsCleared, m, "", false)
	e.logger.InfoContext(ctx, "all sessions cleared by link", "member_id", m.ID)
	return nil
}

func (c *AuthContext) rejectLink(ctx context.Context, message string, cause error) error {
	err := fmt.Errorf("%w: %w", ErrClearLinkInvalid, cause)
	c.fail(StateBlocked, message, err)
	c.engine.logger.DebugContext(ctx, "clear sessions link rejected", "reason", cause)
	return err
}
