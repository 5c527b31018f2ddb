package password

import "errors"

// ErrEmptyPassword is returned by hashers for an empty plaintext.
var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher produces a new stored hash for plain.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Scheme is one stored-hash format.
type Scheme interface {
	// Matches reports whether hash is in this scheme's format.
	Matches(hash string) bool
	// Check reports whether plain produces hash. Malformed hashes never
	// match.
	Check(plain, hash string) bool
}

// Multi checks a hash with the first scheme whose format matches it.
type Multi struct {
	schemes []Scheme
}

// NewMulti returns a checker over schemes, tried in order.
func NewMulti(schemes ...Scheme) *Multi {
	return &Multi{schemes: schemes}
}

// Check reports whether plain matches hash under its scheme. Unknown
// formats never match.
func (m *Multi) Check(plain, hash string) bool {
	for _, s := range m.schemes {
		if s.Matches(hash) {
			return s.Check(plain, hash)
		}
	}
	return false
}

// Supports reports whether any scheme recognises hash.
func (m *Multi) Supports(hash string) bool {
	for _, s := range m.schemes {
		if s.Matches(hash) {
			return true
		}
	}
	return false
}
