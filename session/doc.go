// Package session stores the per-member set of active login tokens.
//
// Each member owns a small map from verifier hash (hex sha256 of the full
// login cookie) to a [Token]. Two backends are provided: [Store] keeps the
// set in a Redis hash and applies every write through one Lua script, and
// [BoltStore] keeps it in a bbolt sub-bucket and applies every write inside
// one write transaction. Either way a write is a single atomic
// read-merge-write, so concurrent logins for the same member never lose
// each other's tokens.
//
// # Binary encoding
//
// Tokens are stored as a compact versioned record:
//
//	version(1) | expires_at(int64 BE) | created_at(int64 BE) | ip_len(1) ip | ua_len(uint16 BE) ua
//
// The expiration sits at a fixed offset so the Redis script can read it
// without decoding the rest.
//
// # Architecture boundaries
//
// This package owns token persistence only. It does NOT decide whether a
// login may proceed, how many tokens are allowed or what a valid cookie is;
// those rules belong to the root package limiter.
//
// # What this package must NOT do
//
//   - Import memberAuth or cookie (no upward imports).
//   - Store raw cookie values; callers pass [VerifierHash] results.
package session
