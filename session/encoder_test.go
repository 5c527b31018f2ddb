package session

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeKeepsFields(t *testing.T) {
	in := Token{ExpiresAt: 1700003600, CreatedAt: 1700000000, IP: "198.51.100.4", UserAgent: "curl/8.5"}

	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestEncodeTruncatesLongUserAgent(t *testing.T) {
	in := Token{ExpiresAt: 10, UserAgent: strings.Repeat("a", maxUserAgentLength+50)}

	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.UserAgent) != maxUserAgentLength {
		t.Fatalf("expected user agent truncated to %d, got %d", maxUserAgentLength, len(out.UserAgent))
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data := append(Encode(Token{ExpiresAt: 10}), 0x00)
	if _, err := Decode(data); err != ErrTokenCorrupt {
		t.Fatalf("expected ErrTokenCorrupt, got %v", err)
	}
}

func TestTokenValidAtBoundary(t *testing.T) {
	now := time.Unix(1000, 0)
	if !(Token{ExpiresAt: 1000}).Valid(now) {
		t.Fatalf("token expiring this second should be valid")
	}
	if (Token{ExpiresAt: 999}).Valid(now) {
		t.Fatalf("token expired a second ago should be invalid")
	}
}

func TestVerifierHashIsHexSHA256(t *testing.T) {
	got := VerifierHash("alice|1700000000|0c93d7a12ecf4de747f8916e028020fd")
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(got))
	}
	if got != VerifierHash("alice|1700000000|0c93d7a12ecf4de747f8916e028020fd") {
		t.Fatalf("verifier hash must be deterministic")
	}
	if got == VerifierHash("alice|1700000001|0c93d7a12ecf4de747f8916e028020fd") {
		t.Fatalf("different verifiers must hash differently")
	}
}

func TestFilterValid(t *testing.T) {
	now := time.Unix(1000, 0)
	tokens := map[string]Token{
		"a": {ExpiresAt: 2000},
		"b": {ExpiresAt: 500},
		"c": {ExpiresAt: 1000},
	}
	valid := FilterValid(tokens, now)
	if len(valid) != 2 {
		t.Fatalf("expected 2 valid tokens, got %d", len(valid))
	}
	if _, ok := valid["b"]; ok {
		t.Fatalf("expired token must be filtered")
	}
}
