package session

import (
	"bytes"
	"testing"
)

// FuzzTokenDecode exercises the binary token decoder with arbitrary inputs.
func FuzzTokenDecode(f *testing.F) {
	encoded := Encode(Token{
		ExpiresAt: 1700003600,
		CreatedAt: 1700000000,
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0",
	})
	f.Add(encoded)

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})
	f.Add(encoded[:10])
	f.Add(encoded[:20])

	f.Fuzz(func(t *testing.T, data []byte) {
		tok, err := Decode(data)
		if err != nil {
			return
		}
		if !bytes.Equal(Encode(tok), data) {
			t.Fatalf("decoded token does not re-encode to the same bytes")
		}
	})
}
