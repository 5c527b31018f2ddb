package memberAuth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/MrEthical07/memberAuth/permission"
)

// checkConstraints applies the account state machine to c.member. The
// last-accessed stamp is written before any gate so rejected accounts
// still record the visit.
func (c *AuthContext) checkConstraints(ctx context.Context) bool {
	e := c.engine
	m := c.member
	if m == nil {
		c.fail(StateUnauthenticated, "", ErrUnknownUser)
		return false
	}

	now := e.now()
	ip := c.req.ClientIP
	if err := e.members.Update(ctx, m.ID, MemberUpdate{LastAccessed: &now, LastAccessedIP: &ip}); err != nil {
		e.logger.WarnContext(ctx, "update last accessed",
			"member_id", m.ID,
			"error", err,
		)
	} else {
		m.LastAccessed = now
		m.LastAccessedIP = ip
	}

	override := e.config.Account.AllowExpiredLogin
	switch m.State {
	case AccountInactive:
		if !override {
			return c.rejectState(ctx, m, "Account is inactive.")
		}
	case AccountExpired:
		if !override {
			return c.rejectState(ctx, m, "Account has expired.")
		}
	case AccountPending:
		return c.rejectState(ctx, m, "Account is pending.")
	case AccountActivationRequired:
		return c.rejectState(ctx, m, c.activationMessage(m))
	}

	if m.SubscriptionExpired(now) {
		if m.State == AccountActive {
			expired := AccountExpired
			if err := e.members.Update(ctx, m.ID, MemberUpdate{State: &expired}); err != nil {
				e.logger.WarnContext(ctx, "persist expired state",
					"member_id", m.ID,
					"error", err,
				)
			}
			m.State = AccountExpired
			c.fire(ctx, EventAccountExpired, m, "", false)
		}
		if !override {
			return c.rejectState(ctx, m, "Account has expired.")
		}
	}

	bundle, err := e.permissions.LoadForTier(ctx, m.TierID)
	if err != nil {
		c.backendFailure(ctx, StateRejected, "load permissions", err)
		return false
	}
	if bundle == nil {
		bundle = permission.EmptyBundle(m.TierID)
	}

	c.admit(m, bundle)
	return true
}

func (c *AuthContext) rejectState(ctx context.Context, m *Member, message string) bool {
	c.fail(StateRejected, message, fmt.Errorf("%w: %s", ErrAccountStateRejected, m.State))
	c.engine.metricInc(MetricAccountRejected)
	c.engine.logger.DebugContext(ctx, "account rejected",
		"username", m.Username,
		"state", string(m.State),
	)
	return false
}

func (c *AuthContext) activationMessage(m *Member) string {
	msg := "You need to activate your account. If you didn't receive an email then click here to resend the activation email."
	base := c.engine.config.Account.ActivationResendURL
	if base == "" {
		return msg
	}
	q := url.Values{}
	q.Set("resend_activation_email", "1")
	q.Set("member_id", strconv.FormatInt(m.ID, 10))
	return msg + " " + appendQuery(base, q)
}

func appendQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
