package password

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	wordPressPrefix = "$wp"
	wordPressKey    = "wp-sha384"
)

// Bcrypt handles plain $2a$, $2b$ and $2y$ hashes.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a bcrypt scheme. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{Cost: cost}
}

// Hash returns a $2a$ bcrypt hash of plain.
func (b *Bcrypt) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), b.Cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Matches reports whether hash is a bcrypt hash.
func (b *Bcrypt) Matches(hash string) bool {
	return isBcrypt(hash)
}

// Check compares plain against hash.
func (b *Bcrypt) Check(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

// WordPress handles "$wp"-prefixed hashes: bcrypt over the base64 of
// HMAC-SHA384(key "wp-sha384", trimmed password).
type WordPress struct {
	Cost int
}

// NewWordPress returns a WordPress bcrypt scheme.
func NewWordPress(cost int) *WordPress {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &WordPress{Cost: cost}
}

// Hash returns a "$wp$2a$..." hash of plain.
func (w *WordPress) Hash(plain string) (string, error) {
	if strings.TrimSpace(plain) == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword(prehashWordPress(plain), w.Cost)
	if err != nil {
		return "", err
	}
	return wordPressPrefix + string(out), nil
}

// Matches reports whether hash carries the "$wp" prefix.
func (w *WordPress) Matches(hash string) bool {
	return strings.HasPrefix(hash, wordPressPrefix) && isBcrypt(hash[len(wordPressPrefix):])
}

// Check compares plain against hash.
func (w *WordPress) Check(plain, hash string) bool {
	if !w.Matches(hash) {
		return false
	}
	inner := []byte(hash[len(wordPressPrefix):])
	return bcrypt.CompareHashAndPassword(inner, prehashWordPress(plain)) == nil
}

func prehashWordPress(plain string) []byte {
	mac := hmac.New(sha512.New384, []byte(wordPressKey))
	mac.Write([]byte(strings.TrimSpace(plain)))
	return []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}
