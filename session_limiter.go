package memberAuth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/memberAuth/session"
)

// ActiveSessionLimiter bounds the number of valid session tokens per
// account. Tokens are keyed by the sha256 of the full cookie value.
//
// The bound is best effort: ReachedLimit and Purge are separate backend
// calls, so two logins racing for the last slot can both be admitted. Each
// write is atomic on the backend, so no token is lost.
type ActiveSessionLimiter struct {
	backend session.Backend
	enabled bool
	max     int
	policy  OverflowPolicy
	now     func() time.Time
}

func newActiveSessionLimiter(backend session.Backend, cfg SessionLimitConfig, now func() time.Time) *ActiveSessionLimiter {
	return &ActiveSessionLimiter{
		backend: backend,
		enabled: cfg.Enabled && backend != nil,
		max:     cfg.MaxConcurrent,
		policy:  cfg.OverflowPolicy,
		now:     now,
	}
}

// Enabled reports whether tokens are tracked.
func (l *ActiveSessionLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// MaxConcurrent returns the configured bound.
func (l *ActiveSessionLimiter) MaxConcurrent() int {
	if l == nil {
		return 0
	}
	return l.max
}

// Policy returns the overflow policy.
func (l *ActiveSessionLimiter) Policy() OverflowPolicy {
	if l == nil {
		return OverflowBlock
	}
	return l.policy
}

// ValidTokens returns the tokens of memberID whose expiration has not passed.
func (l *ActiveSessionLimiter) ValidTokens(ctx context.Context, memberID int64) (map[string]session.Token, error) {
	return l.validAt(ctx, memberID, l.now())
}

// HasToken reports whether the token for verifier is present and valid.
func (l *ActiveSessionLimiter) HasToken(ctx context.Context, memberID int64, verifier string) (bool, error) {
	return l.hasTokenAt(ctx, memberID, verifier, l.now())
}

func (l *ActiveSessionLimiter) hasTokenAt(ctx context.Context, memberID int64, verifier string, at time.Time) (bool, error) {
	valid, err := l.validAt(ctx, memberID, at)
	if err != nil {
		return false, err
	}
	_, ok := valid[session.VerifierHash(verifier)]
	return ok, nil
}

func (l *ActiveSessionLimiter) validAt(ctx context.Context, memberID int64, at time.Time) (map[string]session.Token, error) {
	if !l.Enabled() {
		return map[string]session.Token{}, nil
	}
	all, err := l.backend.Tokens(ctx, memberKey(memberID))
	if err != nil {
		return nil, l.wrap(err)
	}
	return session.FilterValid(all, at), nil
}

// ReachedLimit reports whether memberID holds MaxConcurrent or more valid
// tokens. Expired tokens never count. A disabled limiter never reaches it.
func (l *ActiveSessionLimiter) ReachedLimit(ctx context.Context, memberID int64) (bool, error) {
	if !l.Enabled() {
		return false, nil
	}
	valid, err := l.ValidTokens(ctx, memberID)
	if err != nil {
		return false, err
	}
	return len(valid) >= l.max, nil
}

// Purge drops expired tokens and stores token under verifier in one
// atomic write. Other valid tokens are kept.
func (l *ActiveSessionLimiter) Purge(ctx context.Context, memberID int64, verifier string, token session.Token) error {
	if !l.Enabled() {
		return nil
	}
	return l.put(ctx, memberID, verifier, token, true)
}

// Set stores token under verifier without pruning.
func (l *ActiveSessionLimiter) Set(ctx context.Context, memberID int64, verifier string, token session.Token) error {
	if !l.Enabled() {
		return nil
	}
	return l.put(ctx, memberID, verifier, token, false)
}

// Clear removes the token for verifier, or every token of memberID when
// verifier is empty.
func (l *ActiveSessionLimiter) Clear(ctx context.Context, memberID int64, verifier string) error {
	if !l.Enabled() {
		return nil
	}
	var err error
	if verifier == "" {
		err = l.backend.RemoveAll(ctx, memberKey(memberID))
	} else {
		err = l.backend.Remove(ctx, memberKey(memberID), session.VerifierHash(verifier))
	}
	return l.wrap(err)
}

// DeleteExpired removes expired tokens of memberID.
func (l *ActiveSessionLimiter) DeleteExpired(ctx context.Context, memberID int64) error {
	if !l.Enabled() {
		return nil
	}
	return l.wrap(l.backend.Prune(ctx, memberKey(memberID), l.now()))
}

func (l *ActiveSessionLimiter) claimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !l.Enabled() {
		return false, ErrEngineNotReady
	}
	first, err := l.backend.ClaimOnce(ctx, key, ttl, l.now())
	return first, l.wrap(err)
}

func (l *ActiveSessionLimiter) put(ctx context.Context, memberID int64, verifier string, token session.Token, prune bool) error {
	now := l.now()
	if token.CreatedAt == 0 {
		token.CreatedAt = now.Unix()
	}
	return l.wrap(l.backend.Put(ctx, memberKey(memberID), session.VerifierHash(verifier), token, prune, now))
}

func (l *ActiveSessionLimiter) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func memberKey(memberID int64) string {
	return strconv.FormatInt(memberID, 10)
}
