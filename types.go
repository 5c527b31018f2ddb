package memberAuth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	internalaudit "github.com/MrEthical07/memberAuth/internal/audit"
	"github.com/MrEthical07/memberAuth/permission"
)

// AccountState is the lifecycle state of a member account.
type AccountState string

const (
	AccountActive             AccountState = "active"
	AccountInactive           AccountState = "inactive"
	AccountExpired            AccountState = "expired"
	AccountPending            AccountState = "pending"
	AccountActivationRequired AccountState = "activation_required"
)

// ParseAccountState maps a stored value to an [AccountState]. Matching is
// case-insensitive; unknown values are an error.
func ParseAccountState(s string) (AccountState, error) {
	switch st := AccountState(strings.ToLower(strings.TrimSpace(s))); st {
	case AccountActive, AccountInactive, AccountExpired, AccountPending, AccountActivationRequired:
		return st, nil
	default:
		return "", fmt.Errorf("unknown account state %q", s)
	}
}

// DurationUnit is the unit of a subscription [Duration].
type DurationUnit string

const (
	UnitNoExpiry DurationUnit = ""
	UnitDays     DurationUnit = "days"
	UnitWeeks    DurationUnit = "weeks"
	UnitMonths   DurationUnit = "months"
	UnitYears    DurationUnit = "years"
)

// Duration is a subscription length. A zero Period or [UnitNoExpiry] never
// expires.
type Duration struct {
	Period int
	Unit   DurationUnit
}

// NoExpiry reports whether d describes a subscription without an end.
func (d Duration) NoExpiry() bool {
	return d.Period <= 0 || d.Unit == UnitNoExpiry
}

// MemberStore is the persistence boundary for member records. Lookups of
// missing records return [ErrMemberNotFound].
type MemberStore interface {
	FindByUsername(ctx context.Context, username string) (*Member, error)
	FindByEmail(ctx context.Context, email string) (*Member, error)
	FindByID(ctx context.Context, id int64) (*Member, error)
	Update(ctx context.Context, id int64, update MemberUpdate) error
	Insert(ctx context.Context, m *Member) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// PasswordChecker compares a plaintext password with a stored hash.
// [password.Multi] satisfies it.
type PasswordChecker interface {
	Check(plain, hash string) bool
}

// PasswordHasher produces stored hashes for new passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// PermissionBundle is the resolved permission set of a membership tier.
type PermissionBundle = permission.Bundle

// PermissionProvider resolves the permission bundle of a tier. An unknown
// tier should yield an empty bundle, not an error.
type PermissionProvider interface {
	LoadForTier(ctx context.Context, tierID int64) (*PermissionBundle, error)
}

// SecretProvider returns the site secret for a scheme ("auth" for login
// cookies, "nonce" for signed links).
type SecretProvider interface {
	SiteSecret(ctx context.Context, scheme string) ([]byte, error)
}

// Transport receives the cookies an [AuthContext] sets or clears.
type Transport interface {
	SetCookie(c *http.Cookie)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes events as structured log records.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] that logs through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
