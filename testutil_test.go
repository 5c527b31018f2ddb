package memberAuth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Portable phpass hashes ($P$, 256 rounds).
const (
	hashTest12345 = "$P$B12345678HsRpshHhZbJrJwCvfpXNI/"
	hashHunter2   = "$P$Babcdefghaoa6/JYqugJFsBOnQGhIl1"
)

type memStore struct {
	mu      sync.Mutex
	byID    map[int64]*Member
	nextID  int64
	updates []MemberUpdate
	findErr error
}

func newMemStore(members ...*Member) *memStore {
	s := &memStore{byID: make(map[int64]*Member)}
	for _, m := range members {
		if _, err := s.Insert(context.Background(), m); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *memStore) FindByUsername(_ context.Context, username string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, m := range s.byID {
		if m.Username == username {
			return m.clone(), nil
		}
	}
	return nil, ErrMemberNotFound
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, m := range s.byID {
		if strings.EqualFold(m.Email, email) {
			return m.clone(), nil
		}
	}
	return nil, ErrMemberNotFound
}

func (s *memStore) FindByID(_ context.Context, id int64) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return m.clone(), nil
}

func (s *memStore) Update(_ context.Context, id int64, u MemberUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return ErrMemberNotFound
	}
	s.updates = append(s.updates, u)
	if u.State != nil {
		m.State = *u.State
	}
	if u.LastAccessed != nil {
		m.LastAccessed = *u.LastAccessed
	}
	if u.LastAccessedIP != nil {
		m.LastAccessedIP = *u.LastAccessedIP
	}
	if u.PasswordHash != nil {
		m.PasswordHash = *u.PasswordHash
	}
	return nil
}

func (s *memStore) Insert(_ context.Context, m *Member) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := m.clone()
	cp.ID = s.nextID
	m.ID = cp.ID
	s.byID[cp.ID] = cp
	return cp.ID, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrMemberNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memStore) get(id int64) *Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id].clone()
}

func (s *memStore) setPasswordHash(id int64, hash string) {
	s.edit(id, func(m *Member) { m.PasswordHash = hash })
}

func (s *memStore) edit(id int64, fn func(*Member)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.byID[id])
}

type staticSecrets map[string][]byte

func (s staticSecrets) SiteSecret(_ context.Context, scheme string) ([]byte, error) {
	v, ok := s[scheme]
	if !ok {
		return nil, errors.New("no secret for scheme " + scheme)
	}
	return v, nil
}

func testSecrets() staticSecrets {
	return staticSecrets{
		"auth":  []byte("s3cr3t-auth-key"),
		"nonce": []byte("s3cr3t-nonce-key"),
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) names() []EventName {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventName, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Name)
	}
	return out
}

func (n *recordingNotifier) has(name EventName) bool {
	for _, got := range n.names() {
		if got == name {
			return true
		}
	}
	return false
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

type testEnv struct {
	engine   *Engine
	store    *memStore
	clock    *testClock
	notifier *recordingNotifier
	redis    *miniredis.Miniredis
	alice    *Member
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvWith(t, mutate, nil)
}

// newTestEnvWith is newTestEnv with a hook for extra builder options.
func newTestEnvWith(t *testing.T, mutate func(*Config), extra func(*Builder) *Builder) *testEnv {
	t.Helper()

	clock := newTestClock()
	alice := &Member{
		Username:     "alice",
		Email:        "alice@example.com",
		FirstName:    "Alice",
		PasswordHash: hashTest12345,
		State:        AccountActive,
		TierID:       2,
	}
	store := newMemStore(alice)
	notifier := &recordingNotifier{}

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMemberStore(store).
		WithSecretProvider(testSecrets()).
		WithNotifier(notifier).
		WithClock(clock.Now)
	if extra != nil {
		b = extra(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine:   engine,
		store:    store,
		clock:    clock,
		notifier: notifier,
		redis:    mr,
		alice:    alice,
	}
}

func loginForm(username, password string) url.Values {
	return url.Values{
		"username": {username},
		"password": {password},
		"login":    {"Login"},
	}
}

// loginRequest runs Init on a POSTed login form and returns the context and
// the cookies the browser would keep.
func (env *testEnv) login(t *testing.T, username, password string) (*AuthContext, map[string]string) {
	t.Helper()

	rec := &CookieRecorder{}
	ac := env.engine.Begin(&Request{
		Method:   "POST",
		Form:     loginForm(username, password),
		ClientIP: "10.0.0.1",
	}, rec)
	if err := ac.Init(context.Background()); err != nil {
		t.Fatalf("Init returned %v", err)
	}
	return ac, rec.Live()
}

// visit runs Init on a GET carrying cookies.
func (env *testEnv) visit(t *testing.T, cookies map[string]string) (*AuthContext, *CookieRecorder) {
	t.Helper()

	rec := &CookieRecorder{}
	ac := env.engine.Begin(&Request{
		Method:   "GET",
		Cookies:  cookies,
		ClientIP: "10.0.0.2",
	}, rec)
	if err := ac.Init(context.Background()); err != nil {
		t.Fatalf("Init returned %v", err)
	}
	return ac, rec
}
