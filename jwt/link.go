package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrPurposeMismatch is returned when a token was issued for another purpose.
var ErrPurposeMismatch = errors.New("link token purpose mismatch")

// Config controls link token lifetime and validation.
type Config struct {
	TTL          time.Duration
	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

// LinkClaims are the claims carried by a link token. Subject holds the
// member id and ID a unique token id.
type LinkClaims struct {
	Purpose string `json:"pur"`
	jwt.RegisteredClaims
}

// LinkSigner issues and parses link tokens. It is immutable after
// construction.
type LinkSigner struct {
	config Config
	now    func() time.Time
}

// NewLinkSigner validates cfg and returns a signer.
func NewLinkSigner(cfg Config) (*LinkSigner, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	return &LinkSigner{config: cfg, now: time.Now}, nil
}

// WithClock returns a copy of the signer that reads time from now.
func (s *LinkSigner) WithClock(now func() time.Time) *LinkSigner {
	cp := *s
	cp.now = now
	return &cp
}

// TTL returns the configured token lifetime.
func (s *LinkSigner) TTL() time.Duration {
	return s.config.TTL
}

// Sign issues a token for subject and purpose, keyed by key.
func (s *LinkSigner) Sign(key []byte, subject, purpose string) (string, *LinkClaims, error) {
	if len(key) == 0 {
		return "", nil, errors.New("link signing key is empty")
	}
	if subject == "" || purpose == "" {
		return "", nil, errors.New("link subject and purpose are required")
	}

	now := s.now()
	claims := &LinkClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Parse verifies tokenStr with key and checks its purpose.
func (s *LinkSigner) Parse(key []byte, tokenStr, purpose string) (*LinkClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &LinkClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*LinkClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Purpose != purpose {
		return nil, ErrPurposeMismatch
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && s.config.MaxFutureIAT > 0 {
		maxAllowed := s.now().Add(s.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}
