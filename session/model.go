package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Token is the server-side record of one login.
type Token struct {
	ExpiresAt int64
	CreatedAt int64
	IP        string
	UserAgent string
}

// Valid reports whether the token has not yet expired at now. A token
// expiring this second is still valid.
func (t Token) Valid(now time.Time) bool {
	return t.ExpiresAt >= now.Unix()
}

// VerifierHash returns the storage key for a verifier (the full cookie
// value).
func VerifierHash(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return hex.EncodeToString(sum[:])
}

// FilterValid returns the entries of tokens that are valid at now.
func FilterValid(tokens map[string]Token, now time.Time) map[string]Token {
	valid := make(map[string]Token, len(tokens))
	for hash, tok := range tokens {
		if tok.Valid(now) {
			valid[hash] = tok
		}
	}
	return valid
}
