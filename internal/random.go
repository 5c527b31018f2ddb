package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	// SiteSecretSize is the length of a generated site secret.
	SiteSecretSize = 32

	passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewSiteSecret returns SiteSecretSize random bytes.
func NewSiteSecret() ([]byte, error) {
	secret := make([]byte, SiteSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// NewPassword returns a random password of length characters drawn from an
// alphabet without look-alike glyphs.
func NewPassword(length int) (string, error) {
	if length < 8 || length > 128 {
		return "", errors.New("invalid password length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}
