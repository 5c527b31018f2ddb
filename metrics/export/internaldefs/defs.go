package internaldefs

import (
	memberAuth "github.com/MrEthical07/memberAuth"
)

// Family is one exported counter family. Its members differ in the value of
// Label.
type Family struct {
	Name  string
	Help  string
	Label string
}

// Families in render order.
var (
	Logins = Family{
		Name:  "memberauth_logins_total",
		Help:  "Login attempts by outcome.",
		Label: "outcome",
	}
	CookieChecks = Family{
		Name:  "memberauth_cookie_checks_total",
		Help:  "Login cookie validations by result.",
		Label: "result",
	}
	CookieRejections = Family{
		Name:  "memberauth_cookie_rejections_total",
		Help:  "Genuine-looking cookies refused after decoding, by reason.",
		Label: "reason",
	}
	AccountEvents = Family{
		Name:  "memberauth_account_events_total",
		Help:  "Account state gate outcomes.",
		Label: "event",
	}
	SessionEvents = Family{
		Name:  "memberauth_session_events_total",
		Help:  "Session ends by cause.",
		Label: "cause",
	}
)

// FamilyOrder lists the families as they are rendered.
var FamilyOrder = []Family{Logins, CookieChecks, CookieRejections, AccountEvents, SessionEvents}

// CounterDef binds one engine counter to a family member.
type CounterDef struct {
	ID     memberAuth.MetricID
	Family Family
	Value  string
}

// CounterDefs lists every exported counter, grouped by family in
// FamilyOrder.
var CounterDefs = []CounterDef{
	{ID: memberAuth.MetricLoginSuccess, Family: Logins, Value: "success"},
	{ID: memberAuth.MetricLoginFailure, Family: Logins, Value: "failure"},
	{ID: memberAuth.MetricLoginRateLimited, Family: Logins, Value: "throttled"},
	{ID: memberAuth.MetricSessionLimitReached, Family: Logins, Value: "session_limit"},
	{ID: memberAuth.MetricAdminConflict, Family: Logins, Value: "admin_conflict"},

	{ID: memberAuth.MetricValidateSuccess, Family: CookieChecks, Value: "admitted"},
	{ID: memberAuth.MetricValidateFailure, Family: CookieChecks, Value: "rejected"},

	{ID: memberAuth.MetricHashMismatch, Family: CookieRejections, Value: "hash_mismatch"},
	{ID: memberAuth.MetricSessionTokenMismatch, Family: CookieRejections, Value: "session_token"},

	{ID: memberAuth.MetricAccountRejected, Family: AccountEvents, Value: "rejected"},
	{ID: memberAuth.MetricAccountExpiredTransition, Family: AccountEvents, Value: "expired"},

	{ID: memberAuth.MetricLogout, Family: SessionEvents, Value: "logout"},
	{ID: memberAuth.MetricSessionsCleared, Family: SessionEvents, Value: "cleared_all"},
}

// AuditDropped is the counter for audit events lost to backpressure.
var AuditDropped = Family{
	Name: "memberauth_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher queue was full.",
}

// ValidateLatency describes the cookie validation histogram.
var ValidateLatency = struct {
	ID   memberAuth.MetricID
	Name string
	Help string
}{
	ID:   memberAuth.MetricValidateLatency,
	Name: "memberauth_validate_latency_seconds",
	Help: "Time spent validating a login cookie, store lookups included.",
}

// HistogramBounds are the upper bounds of the latency buckets, in seconds,
// matching the engine's millisecond buckets.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// CumulativeBuckets turns raw per-bucket counts into running totals.
// Missing buckets count as zero.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
