package memberAuth

import (
	"context"
	"errors"
	"strconv"
)

// AuditErrorCode is the stable error label attached to audit events.
type AuditErrorCode string

const (
	auditErrMalformedCookie      AuditErrorCode = "malformed_cookie"
	auditErrExpiredCookie        AuditErrorCode = "expired_cookie"
	auditErrSignatureMismatch    AuditErrorCode = "signature_mismatch"
	auditErrUnknownUser          AuditErrorCode = "unknown_user"
	auditErrInvalidCredentials   AuditErrorCode = "invalid_credentials"
	auditErrMissingField         AuditErrorCode = "missing_field"
	auditErrAccountState         AuditErrorCode = "account_state"
	auditErrSessionLimitExceeded AuditErrorCode = "session_limit_exceeded"
	auditErrAdminConflict        AuditErrorCode = "admin_conflict"
	auditErrSessionTokenMismatch AuditErrorCode = "session_token_mismatch"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrClearLinkInvalid     AuditErrorCode = "clear_link_invalid"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

var auditSuccess = map[EventName]bool{
	EventLoginSucceeded:  true,
	EventLogout:          true,
	EventSessionsCleared: true,
	EventAccountExpired:  true,
}

// Cookie forgery signals and session wipes survive a full audit queue.
var auditKeep = map[EventName]bool{
	EventValidateHashMismatch:      true,
	EventValidateSessionTokenError: true,
	EventSessionsCleared:           true,
}

func keepAuditEvent(ev AuditEvent) bool {
	return auditKeep[EventName(ev.EventType)] || ev.Error == string(auditErrAdminConflict)
}

func (e *Engine) emitAudit(ctx context.Context, ev Event, ip string, err error) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: ev.At.UTC(),
		EventType: string(ev.Name),
		Username:  ev.Username,
		RequestID: requestIDFromContext(ctx),
		IP:        ip,
		Success:   auditSuccess[ev.Name],
	}
	if ev.MemberID != 0 {
		event.MemberID = strconv.FormatInt(ev.MemberID, 10)
	}
	if ev.Name == EventLoginSucceeded || ev.Name == EventLoginBefore {
		event.Metadata = map[string]string{"remember": strconv.FormatBool(ev.Remember)}
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMalformedCookie):
		return auditErrMalformedCookie
	case errors.Is(err, ErrExpiredCookie):
		return auditErrExpiredCookie
	case errors.Is(err, ErrSignatureMismatch):
		return auditErrSignatureMismatch
	case errors.Is(err, ErrUnknownUser), errors.Is(err, ErrMemberNotFound):
		return auditErrUnknownUser
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrMissingUsername), errors.Is(err, ErrMissingPassword):
		return auditErrMissingField
	case errors.Is(err, ErrAccountStateRejected):
		return auditErrAccountState
	case errors.Is(err, ErrSessionLimitReached):
		return auditErrSessionLimitExceeded
	case errors.Is(err, ErrAdminConflict):
		return auditErrAdminConflict
	case errors.Is(err, ErrSessionTokenMismatch):
		return auditErrSessionTokenMismatch
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrClearLinkInvalid):
		return auditErrClearLinkInvalid
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
