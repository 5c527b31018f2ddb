package memberAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/memberAuth/cookie"
	"github.com/MrEthical07/memberAuth/password"
)

func assertCleared(t *testing.T, rec *CookieRecorder, names ...string) {
	t.Helper()
	for _, name := range names {
		c, ok := rec.Get(name)
		if !ok || c.MaxAge >= 0 {
			t.Fatalf("expected %s to be deleted, got %+v", name, c)
		}
	}
}

func TestValidateExpiredCookieClearsCookies(t *testing.T) {
	env := newTestEnv(t, nil)
	_, jar := env.login(t, "alice", "test12345")
	env.notifier.reset()

	env.clock.Advance(3*24*time.Hour + 2*time.Hour)
	ac, rec := env.visit(t, jar)
	if ac.IsLoggedIn() {
		t.Fatalf("expired cookie must not validate")
	}
	if ac.Message() != "Session Expired." || !errors.Is(ac.Err(), ErrExpiredCookie) {
		t.Fatalf("unexpected outcome msg=%q err=%v", ac.Message(), ac.Err())
	}
	assertCleared(t, rec, "memberauth", "memberauth_sec", "memberauth_in_use")
	if !env.notifier.has(EventCookiesCleared) {
		t.Fatalf("expected cookies.cleared, got %v", env.notifier.names())
	}
}

func TestValidateGracePeriodOnlyForStateChangingRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	_, jar := env.login(t, "alice", "test12345")

	env.clock.Advance(3*24*time.Hour + 30*time.Minute)

	post := env.engine.Begin(&Request{Method: "POST", Cookies: jar}, nil)
	if err := post.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !post.IsLoggedIn() || !post.InGracePeriod() {
		t.Fatalf("expected POST inside grace to validate, logged_in=%v grace=%v msg=%q",
			post.IsLoggedIn(), post.InGracePeriod(), post.Message())
	}

	async := env.engine.Begin(&Request{Method: "GET", Async: true, Cookies: jar}, nil)
	if !async.Validate(context.Background()) {
		t.Fatalf("expected async request inside grace to validate")
	}

	get, _ := env.visit(t, jar)
	if get.IsLoggedIn() || !errors.Is(get.Err(), ErrExpiredCookie) {
		t.Fatalf("GET must not get the grace period, err=%v", get.Err())
	}
}

func TestValidateAfterPasswordRotation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, jar := env.login(t, "alice", "test12345")
	env.notifier.reset()

	env.store.setPasswordHash(env.alice.ID, hashHunter2)
	ac, rec := env.visit(t, jar)
	if ac.IsLoggedIn() {
		t.Fatalf("cookie signed with the old password must not validate")
	}
	if ac.Message() != "Please login again." || !errors.Is(ac.Err(), ErrSignatureMismatch) {
		t.Fatalf("unexpected outcome msg=%q err=%v", ac.Message(), ac.Err())
	}
	got := env.notifier.names()
	if len(got) != 2 || got[0] != EventValidateHashMismatch || got[1] != EventCookiesCleared {
		t.Fatalf("unexpected events %v", got)
	}
	assertCleared(t, rec, "memberauth")
	if env.engine.MetricsSnapshot().Counters[MetricHashMismatch] != 1 {
		t.Fatalf("expected hash mismatch metric")
	}
}

func TestValidateAfterArgon2PasswordChange(t *testing.T) {
	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	oldHash, err := hasher.Hash("test12345")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	newHash, err := hasher.Hash("another-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	env := newTestEnv(t, nil)
	env.store.setPasswordHash(env.alice.ID, oldHash)
	ac, jar := env.login(t, "alice", "test12345")
	if !ac.IsLoggedIn() {
		t.Fatalf("expected login with argon2id hash, msg=%q err=%v", ac.Message(), ac.Err())
	}

	env.store.setPasswordHash(env.alice.ID, newHash)
	got, rec := env.visit(t, jar)
	if got.IsLoggedIn() || !errors.Is(got.Err(), ErrSignatureMismatch) {
		t.Fatalf("cookie must not outlive the password change, logged_in=%v err=%v", got.IsLoggedIn(), got.Err())
	}
	assertCleared(t, rec, "memberauth")
}

func TestValidateRejectedAccountClearsCookies(t *testing.T) {
	env := newTestEnv(t, nil)
	_, jar := env.login(t, "alice", "test12345")
	env.notifier.reset()

	env.store.edit(env.alice.ID, func(m *Member) { m.State = AccountInactive })
	ac, rec := env.visit(t, jar)
	if ac.IsLoggedIn() || ac.Message() != "Account is inactive." {
		t.Fatalf("unexpected outcome logged_in=%v msg=%q", ac.IsLoggedIn(), ac.Message())
	}
	assertCleared(t, rec, "memberauth", "memberauth_in_use")
	if !env.notifier.has(EventCookiesCleared) {
		t.Fatalf("expected cookies.cleared, got %v", env.notifier.names())
	}
}

func TestValidateGracePeriodWithSessionLimit(t *testing.T) {
	for _, backend := range limiterBackends() {
		t.Run(backend.name, func(t *testing.T) {
			env := newLimitedEnv(t, backend, nil)
			_, jar := env.login(t, "alice", "test12345")

			env.clock.Advance(3*24*time.Hour + 30*time.Minute)

			rec := &CookieRecorder{}
			post := env.engine.Begin(&Request{Method: "POST", Cookies: jar}, rec)
			if err := post.Init(context.Background()); err != nil {
				t.Fatalf("Init: %v", err)
			}
			if !post.IsLoggedIn() || !post.InGracePeriod() {
				t.Fatalf("expected POST inside grace to validate, msg=%q err=%v", post.Message(), post.Err())
			}
			if _, ok := rec.Get("memberauth"); ok {
				t.Fatalf("grace admission must not touch cookies")
			}
			if n := env.engine.MetricsSnapshot().Counters[MetricSessionTokenMismatch]; n != 0 {
				t.Fatalf("unexpected session token mismatch count %d", n)
			}

			env.clock.Advance(time.Hour)
			late := env.engine.Begin(&Request{Method: "POST", Cookies: jar}, nil)
			if late.Validate(context.Background()) {
				t.Fatalf("cookie past the grace window must not validate")
			}
		})
	}
}

func TestValidateTamperedCookie(t *testing.T) {
	env := newTestEnv(t, nil)
	secret := testSecrets()["auth"]
	exp := env.clock.Now().Add(time.Hour).Unix()
	frag := env.alice.PasswordFragment()

	tests := []struct {
		name    string
		raw     string
		wantMsg string
		wantErr error
	}{
		{
			name:    "malformed",
			raw:     "not-a-cookie",
			wantMsg: "",
			wantErr: ErrMalformedCookie,
		},
		{
			name:    "unknown user",
			raw:     cookie.Encode("bob", frag, exp, secret),
			wantMsg: "Invalid Username",
			wantErr: ErrUnknownUser,
		},
		{
			name:    "wrong secret",
			raw:     cookie.Encode("alice", frag, exp, []byte("other-secret")),
			wantMsg: "Please login again.",
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "extended expiration",
			raw:     "alice|9999999999|" + cookie.Sign("alice", frag, exp, secret),
			wantMsg: "Please login again.",
			wantErr: ErrSignatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac, rec := env.visit(t, map[string]string{"memberauth": tt.raw})
			if ac.IsLoggedIn() {
				t.Fatalf("expected rejection")
			}
			if ac.Message() != tt.wantMsg {
				t.Fatalf("message = %q, want %q", ac.Message(), tt.wantMsg)
			}
			if !errors.Is(ac.Err(), tt.wantErr) {
				t.Fatalf("err = %v, want %v", ac.Err(), tt.wantErr)
			}
			assertCleared(t, rec, "memberauth")
		})
	}
}

func TestValidateForgedCookieForAnotherMember(t *testing.T) {
	env := newTestEnv(t, nil)
	bob := &Member{Username: "bob", Email: "bob@example.com", PasswordHash: hashHunter2, State: AccountActive}
	if _, err := env.store.Insert(context.Background(), bob); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// alice's digest under bob's name
	secret := testSecrets()["auth"]
	exp := env.clock.Now().Add(time.Hour).Unix()
	digest := cookie.Sign("alice", env.alice.PasswordFragment(), exp, secret)
	raw := cookie.Value{Username: "bob", Expiration: exp, Digest: digest}.String()

	ac, _ := env.visit(t, map[string]string{"memberauth": raw})
	if ac.IsLoggedIn() || !errors.Is(ac.Err(), ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got logged_in=%v err=%v", ac.IsLoggedIn(), ac.Err())
	}
}

func TestValidateBackendFailureKeepsCookies(t *testing.T) {
	env := newTestEnv(t, nil)
	_, jar := env.login(t, "alice", "test12345")
	env.notifier.reset()

	env.store.findErr = errors.New("connection refused")
	ac, rec := env.visit(t, jar)
	if ac.IsLoggedIn() {
		t.Fatalf("must deny while the store is unavailable")
	}
	if !errors.Is(ac.Err(), ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", ac.Err())
	}
	if len(rec.Cookies()) != 0 {
		t.Fatalf("cookies must survive a backend failure, got %d writes", len(rec.Cookies()))
	}
	if env.notifier.has(EventCookiesCleared) {
		t.Fatalf("unexpected cookies.cleared")
	}

	env.store.findErr = nil
	ac, _ = env.visit(t, jar)
	if !ac.IsLoggedIn() {
		t.Fatalf("expected recovery once the store is back, err=%v", ac.Err())
	}
}

func TestValidateWithoutCookieLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, nil)

	ac := env.engine.Begin(&Request{Method: "GET"}, nil)
	if ac.Validate(context.Background()) {
		t.Fatalf("expected false without a cookie")
	}
	if ac.State() != StateUnauthenticated || ac.Err() != nil {
		t.Fatalf("unexpected state %s err=%v", ac.State(), ac.Err())
	}
	if env.engine.MetricsSnapshot().Counters[MetricValidateFailure] != 0 {
		t.Fatalf("a missing cookie is not a validation failure")
	}
}

func TestLoginMessageIsShownOnce(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.engine.Begin(&Request{Method: "GET"}, nil)
	first.SetNextLoginMessage("Welcome back, check your email & sign in!")
	raw, _ := first.readCookie("memberauth_login_msg")

	ac, rec := env.visit(t, map[string]string{"memberauth_login_msg": raw})
	if ac.Message() != "Welcome back, check your email & sign in!" {
		t.Fatalf("unexpected message %q", ac.Message())
	}
	assertCleared(t, rec, "memberauth_login_msg")
}
