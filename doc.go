// Package memberAuth decides, on every request, whether a visitor is a valid
// logged-in member of a membership site.
//
// It issues and validates signed login cookies (HMAC-MD5 over the username,
// the expiration and a fragment of the stored password hash), enforces the
// account state machine (active, inactive, expired, pending,
// activation_required) with lazy subscription expiry, and bounds the number
// of concurrent sessions per account.
//
// # Architecture boundaries
//
// [Engine] is built once through [Builder.Build] and shared by all request
// goroutines. Per-request state lives in an [AuthContext] returned by
// [Engine.Begin]; it is never global and must be used by one goroutine.
//
// Persistence is reached only through the collaborator interfaces
// [MemberStore], [PasswordChecker], [PermissionProvider], [SecretProvider]
// and [Notifier]. Session tokens live behind [session.Backend] (Redis or
// bbolt). Cookie wire encoding is in package cookie.
//
// # What this package must NOT do
//
//   - Write response headers other than Set-Cookie through a [Transport].
//   - Terminate the request. Blocking conditions are returned from
//     [AuthContext.Init] as errors for the HTTP layer to act on.
//   - Hash passwords itself. Checkers live in package password.
package memberAuth
