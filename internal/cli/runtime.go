package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/permission"
	"github.com/MrEthical07/memberAuth/store"
)

// runtime bundles everything a command needs; Close releases it in reverse
// order.
type runtime struct {
	config memberAuth.Config
	store  *store.SQLiteStore
	redis  *redis.Client
	engine *memberAuth.Engine
}

type runtimeOptions struct {
	// requireSessions turns the session limiter on for commands that manage
	// tokens even when the config leaves it off.
	requireSessions bool
}

// loadEngineConfig reads path over the defaults, or returns the defaults
// when path is empty.
func loadEngineConfig(path string) (memberAuth.Config, error) {
	if path == "" {
		return memberAuth.DefaultConfig(), nil
	}
	return memberAuth.LoadConfigFile(path)
}

func openRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := loadEngineConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if opts.requireSessions {
		cfg.SessionLimit.Enabled = true
	}

	rt := &runtime{config: cfg}

	rt.store, err = store.NewSQLiteStore(flagDB, logger)
	if err != nil {
		return nil, err
	}
	if err := rt.store.Migrate(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if flagRedis != "" {
		rt.redis = redis.NewClient(&redis.Options{Addr: flagRedis})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rt.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis %s: %w", flagRedis, err)
		}
	}

	tiers, err := rt.store.LoadTiers(ctx, permission.NewRegistry(false))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load membership levels: %w", err)
	}

	b := memberAuth.New().
		WithConfig(cfg).
		WithMemberStore(rt.store).
		WithSecretProvider(rt.store).
		WithPermissionProvider(tiers).
		WithLogger(logger)
	if rt.redis != nil {
		b = b.WithRedis(rt.redis)
	}
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(memberAuth.NewSlogSink(logger.With("component", "audit")))
	}

	rt.engine, err = b.Build()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.engine != nil {
		rt.engine.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}
