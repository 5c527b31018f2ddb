// Package middleware adapts memberAuth.Engine to net/http.
//
// # Middleware
//
//   - [Authenticate] runs the per-request flow (cookie validation, login
//     form, clear-sessions link) and stores the resulting
//     memberAuth.AuthContext in the request context.
//   - [RequireMember] rejects requests without a logged-in member.
//   - [RequireCapability] rejects members whose tier lacks a capability.
//
// Handlers read the context with memberAuth.FromContext.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every decision is delegated to
// AuthContext.Init.
//
// # What this package must NOT do
//
//   - Read or write the login cookie directly (the Engine owns the jar).
//   - Access Redis or the member store.
package middleware
