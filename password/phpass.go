package password

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"strings"
)

const itoa64 = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	phpassMinLog2     = 7
	phpassMaxLog2     = 30
	phpassDefaultLog2 = 8
	phpassHashLength  = 34
)

// Phpass handles portable phpass hashes ($P$, $H$) and bare 32-char MD5
// hex digests left over from older installs.
type Phpass struct {
	// IterationLog2 is the cost used by Hash, 7..30.
	IterationLog2 int
}

// NewPhpass returns a phpass scheme with the default cost of 2^8 rounds.
func NewPhpass() *Phpass {
	return &Phpass{IterationLog2: phpassDefaultLog2}
}

// Hash returns a $P$ portable hash of plain.
func (p *Phpass) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	log2 := p.IterationLog2
	if log2 < phpassMinLog2 || log2 > phpassMaxLog2 {
		log2 = phpassDefaultLog2
	}

	salt := make([]byte, 6)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	setting := "$P$" + string(itoa64[log2]) + encode64(salt, len(salt))
	return cryptPrivate(plain, setting), nil
}

// Matches reports whether hash is a portable or legacy MD5 hash.
func (p *Phpass) Matches(hash string) bool {
	if strings.HasPrefix(hash, "$P$") || strings.HasPrefix(hash, "$H$") {
		return true
	}
	return isLegacyMD5(hash)
}

// Check compares plain against hash.
func (p *Phpass) Check(plain, hash string) bool {
	if isLegacyMD5(hash) {
		sum := md5.Sum([]byte(plain))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(hash))) == 1
	}
	computed := cryptPrivate(plain, hash)
	if len(computed) != phpassHashLength {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

func isLegacyMD5(hash string) bool {
	if len(hash) != 32 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// cryptPrivate returns "*0" or "*1" when setting is unusable.
func cryptPrivate(plain, setting string) string {
	failure := "*0"
	if strings.HasPrefix(setting, failure) {
		failure = "*1"
	}
	if len(setting) < 12 {
		return failure
	}
	if id := setting[:3]; id != "$P$" && id != "$H$" {
		return failure
	}
	log2 := strings.IndexByte(itoa64, setting[3])
	if log2 < phpassMinLog2 || log2 > phpassMaxLog2 {
		return failure
	}
	salt := setting[4:12]

	sum := md5.Sum([]byte(salt + plain))
	digest := sum[:]
	pw := []byte(plain)
	for count := 1 << log2; count > 0; count-- {
		next := md5.Sum(append(digest, pw...))
		digest = next[:]
	}

	return setting[:12] + encode64(digest, 16)
}

func encode64(input []byte, count int) string {
	var out strings.Builder
	i := 0
	for {
		value := int(input[i])
		i++
		out.WriteByte(itoa64[value&0x3f])
		if i < count {
			value |= int(input[i]) << 8
		}
		out.WriteByte(itoa64[(value>>6)&0x3f])
		if i >= count {
			break
		}
		i++
		if i < count {
			value |= int(input[i]) << 16
		}
		out.WriteByte(itoa64[(value>>12)&0x3f])
		if i >= count {
			break
		}
		i++
		out.WriteByte(itoa64[(value>>18)&0x3f])
		if i >= count {
			break
		}
	}
	return out.String()
}
