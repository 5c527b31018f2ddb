package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// One hash tag for every throttle key keeps multi-key calls on one
// cluster slot.
const (
	userKeyPrefix = "{memberauth:throttle}:user:"
	ipKeyPrefix   = "{memberauth:throttle}:ip:"
)

// Counts every key of the attempt in one round trip. The window starts at
// the first failure and is not extended by later ones.
var recordFailureScript = redis.NewScript(`
local worst = 0
for _, key in ipairs(KEYS) do
  local n = redis.call('INCR', key)
  if n == 1 then
    redis.call('PEXPIRE', key, ARGV[1])
  end
  if n > worst then
    worst = n
  end
end
return worst
`)

// Config tunes the throttle.
type Config struct {
	// PerIP adds a counter per client address next to the per-member one.
	PerIP bool
	// MaxFailures is the number of failures tolerated within Window.
	MaxFailures int
	Window      time.Duration
}

// Attempt identifies a login attempt. Username is the resolved member user
// name, so attempts by user name and by email share one budget.
type Attempt struct {
	Username string
	IP       string
}

// Decision is the throttle verdict for an attempt.
type Decision struct {
	Allowed  bool
	Failures int
	// RetryAfter is the time left in the window of the exhausted counter.
	RetryAfter time.Duration
}

// Throttle counts failed logins in fixed Redis windows.
type Throttle struct {
	redis redis.UniversalClient
	cfg   Config
}

// New returns a throttle over client.
func New(client redis.UniversalClient, cfg Config) *Throttle {
	return &Throttle{redis: client, cfg: cfg}
}

func (t *Throttle) keys(a Attempt) []string {
	keys := []string{userKeyPrefix + strings.ToLower(a.Username)}
	if t.cfg.PerIP && a.IP != "" {
		keys = append(keys, ipKeyPrefix+a.IP)
	}
	return keys
}

// Check reports whether a may proceed. It does not count anything.
func (t *Throttle) Check(ctx context.Context, a Attempt) (Decision, error) {
	keys := t.keys(a)
	vals, err := t.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	d := Decision{Allowed: true}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		if n > d.Failures {
			d.Failures = n
		}
		if n > t.cfg.MaxFailures && d.Allowed {
			d.Allowed = false
			ttl, err := t.redis.PTTL(ctx, keys[i]).Result()
			if err != nil {
				return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			if ttl > 0 {
				d.RetryAfter = ttl
			}
		}
	}
	return d, nil
}

// RecordFailure counts a failed attempt and returns the verdict for the
// next one.
func (t *Throttle) RecordFailure(ctx context.Context, a Attempt) (Decision, error) {
	n, err := recordFailureScript.Run(ctx, t.redis, t.keys(a), t.cfg.Window.Milliseconds()).Int()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	d := Decision{Allowed: n <= t.cfg.MaxFailures, Failures: n}
	if !d.Allowed {
		d.RetryAfter = t.cfg.Window
	}
	return d, nil
}

// Reset clears the counters of a after a successful login.
func (t *Throttle) Reset(ctx context.Context, a Attempt) error {
	if err := t.redis.Del(ctx, t.keys(a)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
