package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/permission"
	"github.com/MrEthical07/memberAuth/store"
)

const hashTest12345 = "$P$B12345678HsRpshHhZbJrJwCvfpXNI/"

func newTestEngine(t *testing.T) *memberAuth.Engine {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := st.UpsertLevel(ctx, store.Level{Tier: permission.Tier{
		ID: 2, Alias: "Gold", Capabilities: []string{"download"},
	}}); err != nil {
		t.Fatalf("UpsertLevel: %v", err)
	}
	if _, err := st.Insert(ctx, &memberAuth.Member{Username: "alice", PasswordHash: hashTest12345, TierID: 2}); err != nil {
		t.Fatalf("Insert alice: %v", err)
	}
	if _, err := st.Insert(ctx, &memberAuth.Member{Username: "bob", PasswordHash: hashTest12345, TierID: 1}); err != nil {
		t.Fatalf("Insert bob: %v", err)
	}
	tiers, err := st.LoadTiers(ctx, permission.NewRegistry(false))
	if err != nil {
		t.Fatalf("LoadTiers: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := memberAuth.DefaultConfig()
	cfg.SessionLimit.Enabled = true
	engine, err := memberAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMemberStore(st).
		WithSecretProvider(st).
		WithPermissionProvider(tiers).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestRouter(engine *memberAuth.Engine, opts ...Option) http.Handler {
	r := chi.NewRouter()
	r.Use(Authenticate(engine, opts...))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		ac, _ := memberAuth.FromContext(r.Context())
		if ac.IsLoggedIn() {
			w.Write([]byte("hello " + ac.Member().Username))
			return
		}
		w.Write([]byte("hello guest"))
	})
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		ac, _ := memberAuth.FromContext(r.Context())
		w.Write([]byte(ac.Message()))
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireMember("/login"))
		r.Get("/members", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("members area"))
		})
		r.With(RequireCapability("download")).Get("/download", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("file"))
		})
	})
	return r
}

func loginCookies(t *testing.T, h http.Handler, username string) []*http.Cookie {
	t.Helper()

	form := url.Values{"username": {username}, "password": {"test12345"}, "login": {"Login"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "Logged In." {
		t.Fatalf("login failed: %d %q", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected login cookie")
	}
	return cookies
}

func get(h http.Handler, path string, cookies []*http.Cookie, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthenticateGuestAndMember(t *testing.T) {
	h := newTestRouter(newTestEngine(t))

	rr := get(h, "/", nil, nil)
	if rr.Body.String() != "hello guest" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}

	cookies := loginCookies(t, h, "alice")
	rr = get(h, "/", cookies, http.Header{RequestIDHeader: {"req-42"}})
	if rr.Body.String() != "hello alice" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
	if rr.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("request id not echoed: %q", rr.Header().Get(RequestIDHeader))
	}
}

func TestRequireMember(t *testing.T) {
	h := newTestRouter(newTestEngine(t))

	rr := get(h, "/members", nil, nil)
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = get(h, "/members", nil, http.Header{"X-Requested-With": {"XMLHttpRequest"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for async request, got %d", rr.Code)
	}

	rr = get(h, "/members", loginCookies(t, h, "alice"), nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "members area" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRequireCapability(t *testing.T) {
	h := newTestRouter(newTestEngine(t))

	if rr := get(h, "/download", loginCookies(t, h, "alice"), nil); rr.Code != http.StatusOK {
		t.Fatalf("expected gold member to download, got %d", rr.Code)
	}
	if rr := get(h, "/download", loginCookies(t, h, "bob"), nil); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member without capability, got %d", rr.Code)
	}
}

func TestAuthenticateRejectsAdministratorLogin(t *testing.T) {
	h := newTestRouter(newTestEngine(t), WithPrincipal(func(*http.Request) *memberAuth.Principal {
		return &memberAuth.Principal{ID: "root", Administrator: true}
	}))

	form := url.Values{"username": {"alice"}, "password": {"test12345"}, "login": {"Login"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "site administrator") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestAuthenticateRejectsBadClearLink(t *testing.T) {
	h := newTestRouter(newTestEngine(t))

	rr := get(h, "/?clear_all_session_tokens=1&member_id=1&token=garbage", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Nonce verification failed!") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestAuthenticateNilEngine(t *testing.T) {
	h := Authenticate(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
