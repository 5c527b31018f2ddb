package memberAuth

import (
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// verifyCredential reports whether plain matches the stored hash. An empty
// password never matches.
func verifyCredential(checker PasswordChecker, plain, hash string) bool {
	if plain == "" || hash == "" || checker == nil {
		return false
	}
	return checker.Check(plain, hash)
}

// sanitizeUsername normalizes to NFC, drops control characters and trims
// surrounding space.
func sanitizeUsername(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// looksLikeEmail reports whether s parses as a bare address.
func looksLikeEmail(s string) bool {
	if !strings.Contains(s, "@") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
