package memberAuth

import "errors"

var (
	// ErrMalformedCookie is set when the login cookie is not a well formed
	// username|expiration|digest triple.
	ErrMalformedCookie = errors.New("malformed login cookie")
	// ErrExpiredCookie is set when the cookie expiration passed outside the
	// grace window.
	ErrExpiredCookie = errors.New("login cookie expired")
	// ErrSignatureMismatch is set when the cookie digest does not match the
	// member's current password fragment and site secret.
	ErrSignatureMismatch = errors.New("login cookie signature mismatch")
	// ErrUnknownUser is set when a cookie or credential names no member.
	ErrUnknownUser = errors.New("unknown user")
	// ErrInvalidCredentials is set when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingUsername is set when the login form was submitted without a username.
	ErrMissingUsername = errors.New("username missing")
	// ErrMissingPassword is set when the login form was submitted without a password.
	ErrMissingPassword = errors.New("password missing")
	// ErrAccountStateRejected wraps the account state that denied access.
	ErrAccountStateRejected = errors.New("account state rejected")
	// ErrSessionLimitReached is set when the account already holds the
	// maximum number of valid session tokens.
	ErrSessionLimitReached = errors.New("active session limit reached")
	// ErrAdminConflict is returned when a site administrator principal tries
	// to log in as a member in the same browser.
	ErrAdminConflict = errors.New("administrator principal active")
	// ErrSessionTokenMismatch is set when a correctly signed cookie has no
	// matching server-side session token.
	ErrSessionTokenMismatch = errors.New("session token mismatch")
	// ErrLoginRateLimited is set when the failed-login throttle denies an attempt.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrClearLinkInvalid is returned when a clear-all-sessions link fails
	// verification or was already used.
	ErrClearLinkInvalid = errors.New("clear sessions link invalid")
	// ErrMemberNotFound is returned by [MemberStore] implementations for
	// missing records.
	ErrMemberNotFound = errors.New("member not found")
	// ErrBackendUnavailable is set when a store, secret or session backend
	// call fails. Authentication is denied, never crashed.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
	// ErrNotLoggedIn is returned by operations that need a logged-in member.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrEngineNotReady is returned when the engine or context is nil or
	// missing a required collaborator.
	ErrEngineNotReady = errors.New("engine not initialized")
)
