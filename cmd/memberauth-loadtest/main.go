package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/memberAuth/cookie"
	"github.com/MrEthical07/memberAuth/session"
)

type memberState struct {
	id      string
	hashes  []string
	counter int
	mu      sync.Mutex
}

func main() {
	var (
		members     = flag.Int("members", 20000, "number of members to seed")
		perMember   = flag.Int("tokens", 3, "session tokens seeded per member")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + login)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", session.DefaultKeyPrefix, "token set key prefix")
	)
	flag.Parse()

	if *members <= 0 || *perMember <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "members, tokens, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := session.NewRedisStore(client, *prefix)
	secret := []byte("loadtest-secret")

	states := make([]memberState, *members)
	fmt.Printf("seeding %d members x %d tokens...\n", *members, *perMember)
	startSeed := time.Now()
	now := time.Now()
	for i := 0; i < *members; i++ {
		states[i].id = strconv.Itoa(i + 1)
		for j := 0; j < *perMember; j++ {
			h := tokenHash(states[i].id, j, secret)
			if err := store.Put(ctx, states[i].id, h, buildToken(now), false, now); err != nil {
				fmt.Fprintf(os.Stderr, "put failed: %v\n", err)
				os.Exit(1)
			}
			states[i].hashes = append(states[i].hashes, h)
		}
		states[i].counter = *perMember
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, store, states, *ops, *concurrency)
	loginStats := runLoginPhase(ctx, store, states, secret, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("login", loginStats)
}

// runValidatePhase reads token sets the way a cookie check does and counts
// a miss as a failure.
func runValidatePhase(ctx context.Context, store *session.RedisStore, states []memberState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				want := state.hashes[r.Intn(len(state.hashes))]
				state.mu.Unlock()

				t0 := time.Now()
				tokens, err := store.Tokens(ctx, state.id)
				d := time.Since(t0)
				if _, ok := tokens[want]; err != nil || !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runLoginPhase adds a fresh token with pruning, as every login does.
func runLoginPhase(ctx context.Context, store *session.RedisStore, states []memberState, secret []byte, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				h := tokenHash(state.id, state.counter, secret)
				state.counter++
				now := time.Now()
				t0 := time.Now()
				err := store.Put(ctx, state.id, h, buildToken(now), true, now)
				d := time.Since(t0)
				if err == nil {
					state.hashes = append(state.hashes, h)
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildToken(now time.Time) session.Token {
	return session.Token{
		ExpiresAt: now.Add(72 * time.Hour).Unix(),
		CreatedAt: now.Unix(),
		IP:        "198.51.100.7",
		UserAgent: "memberauth-loadtest",
	}
}

// tokenHash derives a distinct verifier per (member, n) from a real cookie.
func tokenHash(memberID string, n int, secret []byte) string {
	exp := time.Now().Add(72*time.Hour).Unix() + int64(n)
	return session.VerifierHash(cookie.Encode("member"+memberID, "abcd", exp, secret))
}
