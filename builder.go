package memberAuth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/memberAuth/internal/audit"
	"github.com/MrEthical07/memberAuth/internal/logging"
	"github.com/MrEthical07/memberAuth/internal/rate"
	"github.com/MrEthical07/memberAuth/jwt"
	"github.com/MrEthical07/memberAuth/password"
	"github.com/MrEthical07/memberAuth/permission"
	"github.com/MrEthical07/memberAuth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	members     MemberStore
	checker     PasswordChecker
	hasher      PasswordHasher
	permissions PermissionProvider
	secrets     SecretProvider
	notifier    Notifier
	backend     session.Backend
	auditSink   AuditSink
	logger      *slog.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for the session token store and the
// login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionBackend overrides the session token store. It takes priority
// over WithRedis and SessionLimit.BoltPath.
func (b *Builder) WithSessionBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

func (b *Builder) WithMemberStore(store MemberStore) *Builder {
	b.members = store
	return b
}

func (b *Builder) WithPasswordChecker(checker PasswordChecker) *Builder {
	b.checker = checker
	return b
}

func (b *Builder) WithPasswordHasher(hasher PasswordHasher) *Builder {
	b.hasher = hasher
	return b
}

func (b *Builder) WithPermissionProvider(p PermissionProvider) *Builder {
	b.permissions = p
	return b
}

func (b *Builder) WithSecretProvider(p SecretProvider) *Builder {
	b.secrets = p
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Without one the engine is silent.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now. Tests use it to move across expirations.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.members == nil {
		return nil, errors.New("member store required")
	}
	if b.secrets == nil {
		return nil, errors.New("secret provider required")
	}
	if cfg.Security.EnableLoginThrottle && b.redis == nil {
		return nil, errors.New("Security EnableLoginThrottle requires redis client")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}
	sameSite, _ := parseSameSite(cfg.Cookie.SameSite)

	engine := &Engine{
		config:      cfg,
		members:     b.members,
		checker:     b.checker,
		hasher:      b.hasher,
		permissions: b.permissions,
		secrets:     b.secrets,
		notifier:    b.notifier,
		logger:      logger.With("component", "memberauth"),
		sameSite:    sameSite,
		now:         now,
	}

	// -------- PASSWORDS --------
	if engine.hasher == nil {
		h, err := newHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
		engine.hasher = h
	}
	if engine.checker == nil {
		checker, err := defaultChecker(cfg.Password)
		if err != nil {
			return nil, err
		}
		engine.checker = checker
	}

	// -------- PERMISSIONS --------
	if engine.permissions == nil {
		engine.permissions = permission.NewTierManager(permission.NewRegistry(false))
	}
	if engine.notifier == nil {
		engine.notifier = nopNotifier{}
	}

	// -------- SESSION LIMITER --------
	backend := b.backend
	if backend == nil && cfg.SessionLimit.Enabled {
		switch {
		case b.redis != nil:
			backend = session.NewRedisStore(b.redis, cfg.SessionLimit.RedisPrefix)
		case cfg.SessionLimit.BoltPath != "":
			bolt, err := session.OpenBoltStore(cfg.SessionLimit.BoltPath)
			if err != nil {
				return nil, fmt.Errorf("open session store: %w", err)
			}
			engine.closers = append(engine.closers, bolt)
			backend = bolt
		default:
			return nil, errors.New("SessionLimit requires redis client, session backend or BoltPath")
		}
	}
	engine.limiter = newActiveSessionLimiter(backend, cfg.SessionLimit, now)

	links, err := jwt.NewLinkSigner(jwt.Config{
		TTL:    cfg.ClearLink.TTL,
		Issuer: cfg.ClearLink.Issuer,
		Leeway: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clear link signer: %w", err)
	}
	engine.links = links.WithClock(now)

	// -------- LOGIN THROTTLE --------
	if cfg.Security.EnableLoginThrottle {
		engine.throttle = rate.New(b.redis, rate.Config{
			PerIP:       cfg.Security.EnableIPThrottle,
			MaxFailures: cfg.Security.MaxLoginAttempts,
			Window:      cfg.Security.LoginCooldownDuration,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Keep:       keepAuditEvent,
		Now:        now,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

func newHasher(cfg PasswordConfig) (PasswordHasher, error) {
	switch cfg.Scheme {
	case "bcrypt":
		return password.NewBcrypt(cfg.BcryptCost), nil
	case "wordpress":
		return password.NewWordPress(cfg.BcryptCost), nil
	case "phpass":
		return password.NewPhpass(), nil
	default:
		return password.NewArgon2(password.Config{
			Memory:      cfg.Memory,
			Time:        cfg.Time,
			Parallelism: cfg.Parallelism,
			SaltLength:  cfg.SaltLength,
			KeyLength:   cfg.KeyLength,
		})
	}
}

func defaultChecker(cfg PasswordConfig) (*password.Multi, error) {
	argon := password.DefaultConfig()
	if cfg.Scheme == "argon2id" {
		argon = password.Config{
			Memory:      cfg.Memory,
			Time:        cfg.Time,
			Parallelism: cfg.Parallelism,
			SaltLength:  cfg.SaltLength,
			KeyLength:   cfg.KeyLength,
		}
	}
	a, err := password.NewArgon2(argon)
	if err != nil {
		return nil, err
	}
	return password.NewMulti(
		a,
		password.NewBcrypt(cfg.BcryptCost),
		password.NewWordPress(cfg.BcryptCost),
		password.NewPhpass(),
	), nil
}
