// Package jwt signs and verifies short-lived, single-purpose link tokens
// (for example the "clear all sessions" link offered when a member hits the
// active login limit). Tokens are HS256 JWTs keyed by a caller-supplied
// secret, so a secret rotation invalidates every outstanding link.
package jwt
