package memberAuth

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/memberAuth/internal/audit"
	"github.com/MrEthical07/memberAuth/internal/rate"
	"github.com/MrEthical07/memberAuth/jwt"
)

// Engine holds the shared collaborators of the auth flow. It is safe for
// concurrent use; per-request state lives in [AuthContext].
type Engine struct {
	config      Config
	members     MemberStore
	checker     PasswordChecker
	hasher      PasswordHasher
	permissions PermissionProvider
	secrets     SecretProvider
	notifier    Notifier
	limiter     *ActiveSessionLimiter
	throttle    *rate.Throttle
	links       *jwt.LinkSigner
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	sameSite    http.SameSite
	now         func() time.Time
	closers     []io.Closer
}

// Close stops the audit dispatcher and releases backends the engine opened.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			e.logger.Warn("close backend", "error", err)
		}
	}
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Limiter returns the active session limiter. It is never nil; a disabled
// limiter reports Enabled() == false.
func (e *Engine) Limiter() *ActiveSessionLimiter {
	return e.limiter
}

// Members returns the member store.
func (e *Engine) Members() MemberStore {
	return e.members
}

// HashPassword hashes plain with the configured scheme.
func (e *Engine) HashPassword(plain string) (string, error) {
	return e.hasher.Hash(plain)
}

// Begin starts the auth flow for one request. Cookies are written to t.
// A nil t discards them.
func (e *Engine) Begin(req *Request, t Transport) *AuthContext {
	if req == nil {
		req = &Request{}
	}
	if t == nil {
		t = &CookieRecorder{}
	}
	return &AuthContext{
		engine:     e,
		req:        req,
		transport:  t,
		state:      StateUnauthenticated,
		issued:     make(map[string]string),
		secureSlot: req.Secure,
	}
}
