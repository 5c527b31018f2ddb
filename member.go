package memberAuth

import (
	"strconv"
	"time"

	"github.com/MrEthical07/memberAuth/cookie"
)

// Member is the typed member record read from a [MemberStore].
type Member struct {
	ID                int64
	Username          string
	Email             string
	FirstName         string
	LastName          string
	PasswordHash      string
	State             AccountState
	TierID            int64
	SubscriptionStart time.Time
	Subscription      Duration
	LastAccessed      time.Time
	LastAccessedIP    string
	Extra             map[string]string
}

// MemberUpdate carries the fields to change in [MemberStore.Update]. Nil
// fields are left untouched.
type MemberUpdate struct {
	State          *AccountState
	LastAccessed   *time.Time
	LastAccessedIP *string
	PasswordHash   *string
}

// ExpiresAt returns the end of the subscription. ok is false for
// subscriptions that never expire.
func (m *Member) ExpiresAt() (time.Time, bool) {
	if m == nil || m.Subscription.NoExpiry() || m.SubscriptionStart.IsZero() {
		return time.Time{}, false
	}
	start := m.SubscriptionStart
	n := m.Subscription.Period
	switch m.Subscription.Unit {
	case UnitDays:
		return start.AddDate(0, 0, n), true
	case UnitWeeks:
		return start.AddDate(0, 0, 7*n), true
	case UnitMonths:
		return start.AddDate(0, n, 0), true
	case UnitYears:
		return start.AddDate(n, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// SubscriptionExpired reports whether the subscription ended before now.
func (m *Member) SubscriptionExpired(now time.Time) bool {
	end, ok := m.ExpiresAt()
	return ok && now.After(end)
}

// PasswordFragment returns the slice of the password hash bound into login
// cookies.
func (m *Member) PasswordFragment() string {
	if m == nil {
		return ""
	}
	return cookie.Fragment(m.PasswordHash)
}

// Field returns a named member field. Keys follow the stored column names;
// the password hash is never exposed. Unknown keys fall back to Extra.
func (m *Member) Field(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	switch key {
	case "member_id", "id":
		return m.ID, true
	case "user_name", "username":
		return m.Username, true
	case "email":
		return m.Email, true
	case "first_name":
		return m.FirstName, true
	case "last_name":
		return m.LastName, true
	case "account_state":
		return string(m.State), true
	case "membership_level":
		return m.TierID, true
	case "subscription_starts":
		if m.SubscriptionStart.IsZero() {
			return "", true
		}
		return m.SubscriptionStart.Format(time.DateOnly), true
	case "subscription_period":
		return strconv.Itoa(m.Subscription.Period), true
	case "subscription_duration_type":
		return string(m.Subscription.Unit), true
	case "last_accessed":
		return m.LastAccessed, true
	case "last_accessed_from_ip":
		return m.LastAccessedIP, true
	case "password":
		return nil, false
	}
	if v, ok := m.Extra[key]; ok {
		return v, true
	}
	return nil, false
}

func (m *Member) clone() *Member {
	if m == nil {
		return nil
	}
	out := *m
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}
