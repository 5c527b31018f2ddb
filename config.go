package memberAuth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override fields, or load a YAML file with [LoadConfigFile].
type Config struct {
	Cookie       CookieConfig       `yaml:"cookie"`
	SessionLimit SessionLimitConfig `yaml:"session_limit"`
	Account      AccountConfig      `yaml:"account"`
	Security     SecurityConfig     `yaml:"security"`
	ClearLink    ClearLinkConfig    `yaml:"clear_link"`
	Form         FormConfig         `yaml:"form"`
	Password     PasswordConfig     `yaml:"password"`
	Audit        AuditConfig        `yaml:"audit"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the cookies and sets their lifetimes.
type CookieConfig struct {
	Name        string `yaml:"name"`
	SecureName  string `yaml:"secure_name"`
	InUseName   string `yaml:"in_use_name"`
	MessageName string `yaml:"message_name"`
	Path        string `yaml:"path"`
	Domain      string `yaml:"domain"`
	SameSite    string `yaml:"same_site"` // "lax" (default), "strict", "none"

	// RememberLifetime is the signed expiration of a remember-me cookie;
	// RememberGrace is added to the transport expiry only.
	RememberLifetime time.Duration `yaml:"remember_lifetime"`
	RememberGrace    time.Duration `yaml:"remember_grace"`
	DefaultLifetime  time.Duration `yaml:"default_lifetime"`

	// SessionOnlyWithoutRemember drops the transport expiry when remember
	// is off, so the browser discards the cookie on close.
	SessionOnlyWithoutRemember bool `yaml:"session_only_without_remember"`

	// GracePeriod admits recently expired cookies on state-changing and
	// async requests.
	GracePeriod time.Duration `yaml:"grace_period"`
}

/*
====================================
SESSION LIMIT CONFIG
====================================
*/

// OverflowPolicy decides what a blocked login is offered once the active
// session limit is reached.
type OverflowPolicy string

const (
	// OverflowAllowClear blocks the login and offers a signed one-time
	// link that clears every session of the account.
	OverflowAllowClear OverflowPolicy = "allow"
	// OverflowBlock blocks the login without a link.
	OverflowBlock OverflowPolicy = "block"
)

// SessionLimitConfig controls the active session limiter.
type SessionLimitConfig struct {
	Enabled        bool           `yaml:"enabled"`
	MaxConcurrent  int            `yaml:"max_concurrent"`
	OverflowPolicy OverflowPolicy `yaml:"overflow_policy"`
	RedisPrefix    string         `yaml:"redis_prefix"`
	BoltPath       string         `yaml:"bolt_path"`
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls the account constraint checker.
type AccountConfig struct {
	// AllowExpiredLogin admits inactive and expired accounts.
	AllowExpiredLogin   bool   `yaml:"allow_expired_login"`
	ActivationResendURL string `yaml:"activation_resend_url"`
	LogoutRedirectURL   string `yaml:"logout_redirect_url"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls the failed-login throttle and the administrator
// conflict check.
type SecurityConfig struct {
	EnableLoginThrottle   bool          `yaml:"enable_login_throttle"`
	EnableIPThrottle      bool          `yaml:"enable_ip_throttle"`
	MaxLoginAttempts      int           `yaml:"max_login_attempts"`
	LoginCooldownDuration time.Duration `yaml:"login_cooldown"`
	BlockAdminPrincipal   bool          `yaml:"block_admin_principal"`
}

/*
====================================
CLEAR LINK CONFIG
====================================
*/

// ClearLinkConfig controls the signed clear-all-sessions link.
type ClearLinkConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Issuer  string        `yaml:"issuer"`
	BaseURL string        `yaml:"base_url"`
}

/*
====================================
FORM CONFIG
====================================
*/

// FormConfig names the login form fields.
type FormConfig struct {
	UsernameField string `yaml:"username_field"`
	PasswordField string `yaml:"password_field"`
	RememberField string `yaml:"remember_field"`
	SubmitField   string `yaml:"submit_field"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hasher for new passwords. Verification always
// accepts every supported scheme.
type PasswordConfig struct {
	Scheme      string `yaml:"scheme"` // "argon2id" (default), "bcrypt", "wordpress", "phpass"
	Memory      uint32 `yaml:"memory_kib"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
	BcryptCost  int    `yaml:"bcrypt_cost"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Cookie: CookieConfig{
			Name:             "memberauth",
			SecureName:       "memberauth_sec",
			InUseName:        "memberauth_in_use",
			MessageName:      "memberauth_login_msg",
			Path:             "/",
			SameSite:         "lax",
			RememberLifetime: 14 * 24 * time.Hour,
			RememberGrace:    12 * time.Hour,
			DefaultLifetime:  3 * 24 * time.Hour,
			GracePeriod:      time.Hour,
		},
		SessionLimit: SessionLimitConfig{
			Enabled:        false,
			MaxConcurrent:  3,
			OverflowPolicy: OverflowAllowClear,
			RedisPrefix:    "amt",
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   false,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			BlockAdminPrincipal:   true,
		},
		ClearLink: ClearLinkConfig{
			TTL:    15 * time.Minute,
			Issuer: "memberauth",
		},
		Form: FormConfig{
			UsernameField: "username",
			PasswordField: "password",
			RememberField: "remember_me",
			SubmitField:   "login",
		},
		Password: PasswordConfig{
			Scheme:      "argon2id",
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			BcryptCost:  10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// LoadConfigFile reads a YAML file over [DefaultConfig]. Keys absent from
// the file keep their default. Durations use Go syntax ("15m", "336h").
func LoadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Cookie
	if c.Cookie.Name == "" || c.Cookie.SecureName == "" {
		return errors.New("Cookie Name and SecureName must be set")
	}
	if c.Cookie.Name == c.Cookie.SecureName {
		return errors.New("Cookie Name and SecureName must differ")
	}
	if c.Cookie.RememberLifetime <= 0 || c.Cookie.DefaultLifetime <= 0 {
		return errors.New("Cookie lifetimes must be > 0")
	}
	if c.Cookie.RememberGrace < 0 || c.Cookie.GracePeriod < 0 {
		return errors.New("Cookie grace durations must be >= 0")
	}
	if _, ok := parseSameSite(c.Cookie.SameSite); !ok {
		return errors.New("Cookie SameSite must be 'lax', 'strict' or 'none'")
	}

	// Session limit
	if c.SessionLimit.Enabled && c.SessionLimit.MaxConcurrent < 1 {
		return errors.New("SessionLimit MaxConcurrent must be >= 1")
	}
	switch c.SessionLimit.OverflowPolicy {
	case OverflowAllowClear, OverflowBlock:
	default:
		return errors.New("SessionLimit OverflowPolicy must be 'allow' or 'block'")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0")
		}
	}

	// Clear link
	if c.SessionLimit.Enabled && c.SessionLimit.OverflowPolicy == OverflowAllowClear && c.ClearLink.TTL <= 0 {
		return errors.New("ClearLink TTL must be > 0")
	}

	// Form
	if c.Form.UsernameField == "" || c.Form.PasswordField == "" {
		return errors.New("Form username and password fields must be set")
	}

	// Password
	switch c.Password.Scheme {
	case "argon2id":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 || c.Password.Parallelism < 1 {
			return errors.New("Password Time and Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
			return errors.New("Password SaltLength and KeyLength must be >= 16")
		}
	case "bcrypt", "wordpress":
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 4 and 31")
		}
	case "phpass":
	default:
		return errors.New("Password Scheme must be 'argon2id', 'bcrypt', 'wordpress' or 'phpass'")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

func parseSameSite(v string) (http.SameSite, bool) {
	switch strings.ToLower(v) {
	case "", "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return 0, false
	}
}
