package session

import (
	"context"
	"errors"
	"time"
)

// ErrRedisUnavailable is returned when the Redis backend cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrBoltUnavailable is returned when a bbolt transaction fails.
var ErrBoltUnavailable = errors.New("bolt store unavailable")

// Backend persists per-member token sets. Every mutating call is a single
// atomic operation against the backing store.
type Backend interface {
	// Tokens returns every stored token for memberID, expired ones
	// included. Undecodable entries are skipped.
	Tokens(ctx context.Context, memberID string) (map[string]Token, error)
	// Put stores token under hash. When prune is set, entries that expired
	// before now are removed in the same operation.
	Put(ctx context.Context, memberID, hash string, token Token, prune bool, now time.Time) error
	// Remove deletes one entry. Removing a missing entry is not an error.
	Remove(ctx context.Context, memberID, hash string) error
	// RemoveAll deletes the member's whole token set.
	RemoveAll(ctx context.Context, memberID string) error
	// Prune deletes entries that expired before now.
	Prune(ctx context.Context, memberID string, now time.Time) error
	// ClaimOnce records key for ttl from now and reports whether this call
	// was the first to claim it.
	ClaimOnce(ctx context.Context, key string, ttl time.Duration, now time.Time) (bool, error)
}
