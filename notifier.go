package memberAuth

import (
	"context"
	"time"
)

// EventName is one of the fixed auth lifecycle events.
type EventName string

const (
	EventLoginBefore               EventName = "login.before"
	EventLoginSucceeded            EventName = "login.succeeded"
	EventLoginFailed               EventName = "login.failed"
	EventAuthenticateFailed        EventName = "authenticate.failed"
	EventLogout                    EventName = "logout"
	EventValidateHashMismatch      EventName = "validate.hash_mismatch"
	EventValidateSessionTokenError EventName = "validate.session_token_error"
	EventCookiesCleared            EventName = "cookies.cleared"
	EventSessionsCleared           EventName = "sessions.cleared"
	EventAccountExpired            EventName = "account.expired"
)

// Event is delivered synchronously to the [Notifier].
type Event struct {
	Name     EventName
	Username string
	MemberID int64
	Message  string
	Remember bool
	At       time.Time
}

// Notifier observes auth lifecycle events. Notify runs on the request
// goroutine and must not block for long.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, ev Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

var eventMetric = map[EventName]MetricID{
	EventValidateHashMismatch:      MetricHashMismatch,
	EventValidateSessionTokenError: MetricSessionTokenMismatch,
	EventSessionsCleared:           MetricSessionsCleared,
	EventAccountExpired:            MetricAccountExpiredTransition,
}
