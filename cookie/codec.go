package cookie

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Pepper is appended to the site secret before key derivation. Cookies are
// only interoperable between installations that use the same value.
const Pepper = "j4H!B3TA,J4nIn4."

// DefaultScheme is the secret scheme used for login cookies.
const DefaultScheme = "auth"

const (
	separator      = "|"
	fragmentOffset = 8
	fragmentLength = 4
)

// ErrMalformed is returned by [Decode] when a value is not a well formed
// three field cookie.
var ErrMalformed = errors.New("malformed cookie")

// Value is a decoded login cookie.
type Value struct {
	Username   string
	Expiration int64
	Digest     string
}

// String renders v in wire format.
func (v Value) String() string {
	return v.Username + separator + strconv.FormatInt(v.Expiration, 10) + separator + v.Digest
}

// ExpiresAt returns the expiration as a time.
func (v Value) ExpiresAt() time.Time {
	return time.Unix(v.Expiration, 0)
}

// Encode builds the wire value for username, signed with secret and bound to
// the password hash fragment.
func Encode(username, fragment string, expiration int64, secret []byte) string {
	return Value{
		Username:   username,
		Expiration: expiration,
		Digest:     Sign(username, fragment, expiration, secret),
	}.String()
}

// Sign returns the hex digest for the cookie fields.
func Sign(username, fragment string, expiration int64, secret []byte) string {
	exp := strconv.FormatInt(expiration, 10)

	salt := make([]byte, 0, len(secret)+len(Pepper))
	salt = append(salt, secret...)
	salt = append(salt, Pepper...)

	key := hexHMAC(salt, username+fragment+separator+exp)
	return hexHMAC([]byte(key), username+separator+exp)
}

// Decode splits a wire value into its fields. It does not check the digest
// or the expiration.
func Decode(raw string) (Value, error) {
	parts := strings.Split(raw, separator)
	if len(parts) != 3 {
		return Value{}, ErrMalformed
	}

	username, rawExp, digest := parts[0], parts[1], parts[2]
	if username == "" || digest == "" {
		return Value{}, ErrMalformed
	}

	exp, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil || strconv.FormatInt(exp, 10) != rawExp {
		return Value{}, ErrMalformed
	}

	return Value{Username: username, Expiration: exp, Digest: digest}, nil
}

// Verify recomputes the digest of v for fragment and secret.
func Verify(v Value, fragment string, secret []byte) bool {
	expected := Sign(v.Username, fragment, v.Expiration, secret)
	return hmac.Equal([]byte(expected), []byte(v.Digest))
}

// Expired reports whether expiration, extended by grace, lies before now.
// grace never affects the signature.
func Expired(expiration int64, now time.Time, grace time.Duration) bool {
	return expiration+int64(grace/time.Second) < now.Unix()
}

// Fragment returns the password hash bytes bound into the digest: four
// bytes starting at offset eight, or fewer for short hashes. Those bytes are
// salt for phpass, bcrypt and plain digests. Other "$"-prefixed formats
// (PHC strings such as argon2id, WordPress "$wp$") carry a constant header
// there, so their fragment is four hex chars of the sha256 of the whole hash.
func Fragment(passwordHash string) string {
	if headerAtFragment(passwordHash) {
		sum := sha256.Sum256([]byte(passwordHash))
		return hex.EncodeToString(sum[:])[:fragmentLength]
	}
	if len(passwordHash) <= fragmentOffset {
		return ""
	}
	end := fragmentOffset + fragmentLength
	if end > len(passwordHash) {
		end = len(passwordHash)
	}
	return passwordHash[fragmentOffset:end]
}

func headerAtFragment(hash string) bool {
	if !strings.HasPrefix(hash, "$") {
		return false
	}
	for _, p := range []string{"$P$", "$H$", "$2a$", "$2b$", "$2x$", "$2y$"} {
		if strings.HasPrefix(hash, p) {
			return false
		}
	}
	return true
}

func hexHMAC(key []byte, message string) string {
	mac := hmac.New(md5.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
