package password

import (
	"strings"
	"testing"
)

func TestPhpassKnownHash(t *testing.T) {
	p := NewPhpass()
	hash := "$P$B12345678HsRpshHhZbJrJwCvfpXNI/"

	if !p.Matches(hash) {
		t.Fatal("expected $P$ hash to match phpass")
	}
	if !p.Check("test12345", hash) {
		t.Fatal("expected known phpass hash to verify")
	}
	if p.Check("test12346", hash) {
		t.Fatal("expected wrong password to fail")
	}
	if !p.Check("hunter2", "$P$Babcdefghaoa6/JYqugJFsBOnQGhIl1") {
		t.Fatal("expected second known phpass hash to verify")
	}
}

func TestPhpassHashRoundTrip(t *testing.T) {
	p := NewPhpass()

	hash, err := p.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$P$B") || len(hash) != phpassHashLength {
		t.Fatalf("unexpected phpass hash: %s", hash)
	}
	if !p.Check("correct horse", hash) {
		t.Fatal("expected fresh phpass hash to verify")
	}
}

func TestPhpassLegacyMD5(t *testing.T) {
	p := NewPhpass()
	// md5("password")
	hash := "5f4dcc3b5aa765d61d8327deb882cf99"

	if !p.Matches(hash) {
		t.Fatal("expected 32 hex chars to match")
	}
	if !p.Check("password", hash) {
		t.Fatal("expected legacy md5 to verify")
	}
	if p.Check("Password", hash) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestPhpassRejectsBadSetting(t *testing.T) {
	p := NewPhpass()
	if p.Check("x", "$P$") {
		t.Fatal("short setting must not match")
	}
	if p.Check("x", "$P$.12345678HsRpshHhZbJrJwCvfpXNI/") {
		t.Fatal("out of range cost must not match")
	}
}

func TestBcryptRoundTrip(t *testing.T) {
	b := NewBcrypt(4)

	hash, err := b.Hash("s3cr3t-pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !b.Matches(hash) {
		t.Fatalf("expected bcrypt prefix, got %s", hash)
	}
	if !b.Check("s3cr3t-pass", hash) {
		t.Fatal("expected bcrypt hash to verify")
	}
	if b.Check("other", hash) {
		t.Fatal("expected wrong password to fail")
	}
	y := "$2y$" + strings.TrimPrefix(hash, "$2a$")
	if !b.Check("s3cr3t-pass", y) {
		t.Fatal("expected $2y$ variant to verify")
	}
}

func TestWordPressRoundTrip(t *testing.T) {
	w := NewWordPress(4)

	hash, err := w.Hash("  spaced password  ")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$wp$2") {
		t.Fatalf("unexpected wordpress hash: %s", hash)
	}
	if !w.Check("spaced password", hash) {
		t.Fatal("expected trimmed password to verify")
	}
	if NewBcrypt(4).Matches(hash) {
		t.Fatal("plain bcrypt must not claim $wp hashes")
	}
}

func TestMultiDispatchesByPrefix(t *testing.T) {
	argon, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	bc := NewBcrypt(4)
	wp := NewWordPress(4)
	m := NewMulti(argon, wp, bc, NewPhpass())

	argonHash, _ := argon.Hash("member-pass")
	bcryptHash, _ := bc.Hash("member-pass")
	wpHash, _ := wp.Hash("member-pass")

	for name, hash := range map[string]string{
		"argon2":    argonHash,
		"bcrypt":    bcryptHash,
		"wordpress": wpHash,
	} {
		if !m.Check("member-pass", hash) {
			t.Fatalf("%s: expected match", name)
		}
		if m.Check("wrong-pass", hash) {
			t.Fatalf("%s: expected mismatch", name)
		}
	}
	if !m.Check("test12345", "$P$B12345678HsRpshHhZbJrJwCvfpXNI/") {
		t.Fatal("phpass: expected match")
	}
	if m.Check("anything", "{SSHA}unknown") || m.Supports("{SSHA}unknown") {
		t.Fatal("unknown formats must never match")
	}
}
