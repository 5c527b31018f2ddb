// Package internal contains helper utilities that are intentionally private to
// memberAuth, such as secure random generation for site secrets and
// generated passwords.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - cli: the memberauth command (cobra)
//   - logging: slog logger construction with attribute redaction
//   - rate: Redis-backed failed-login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public memberAuth API.
//   - Be imported by any package outside the memberAuth module.
package internal
