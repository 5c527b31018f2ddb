package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	tokenFormatVersion = 1
	maxIPLength        = 255
	maxUserAgentLength = 1024
)

// ErrTokenCorrupt is returned by [Decode] for records it cannot parse.
var ErrTokenCorrupt = errors.New("session token corrupt")

// Encode serializes t. Over-long IP and user agent values are truncated.
func Encode(t Token) []byte {
	ip := t.IP
	if len(ip) > maxIPLength {
		ip = ip[:maxIPLength]
	}
	ua := t.UserAgent
	if len(ua) > maxUserAgentLength {
		ua = ua[:maxUserAgentLength]
	}

	var buf bytes.Buffer
	buf.Grow(1 + 8 + 8 + 1 + len(ip) + 2 + len(ua))

	buf.WriteByte(tokenFormatVersion)
	_ = binary.Write(&buf, binary.BigEndian, t.ExpiresAt)
	_ = binary.Write(&buf, binary.BigEndian, t.CreatedAt)

	buf.WriteByte(byte(len(ip)))
	buf.WriteString(ip)

	_ = binary.Write(&buf, binary.BigEndian, uint16(len(ua)))
	buf.WriteString(ua)

	return buf.Bytes()
}

// Decode parses a record produced by [Encode].
func Decode(data []byte) (Token, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != tokenFormatVersion {
		return Token{}, ErrTokenCorrupt
	}

	var t Token
	if err := binary.Read(reader, binary.BigEndian, &t.ExpiresAt); err != nil {
		return Token{}, ErrTokenCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &t.CreatedAt); err != nil {
		return Token{}, ErrTokenCorrupt
	}

	ipLen, err := reader.ReadByte()
	if err != nil {
		return Token{}, ErrTokenCorrupt
	}
	ip := make([]byte, ipLen)
	if _, err := io.ReadFull(reader, ip); err != nil {
		return Token{}, ErrTokenCorrupt
	}
	t.IP = string(ip)

	var uaLen uint16
	if err := binary.Read(reader, binary.BigEndian, &uaLen); err != nil || uaLen > maxUserAgentLength {
		return Token{}, ErrTokenCorrupt
	}
	ua := make([]byte, uaLen)
	if _, err := io.ReadFull(reader, ua); err != nil {
		return Token{}, ErrTokenCorrupt
	}
	t.UserAgent = string(ua)

	if reader.Len() != 0 {
		return Token{}, ErrTokenCorrupt
	}

	return t, nil
}
