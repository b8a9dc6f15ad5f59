package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/cache"
	"github.com/studioweb/quoteai/pkg/cache/rediscache"
	"github.com/studioweb/quoteai/pkg/cache/sqlcache"
	"github.com/studioweb/quoteai/pkg/config"
	"github.com/studioweb/quoteai/pkg/suggest"
	"github.com/studioweb/quoteai/pkg/tracker"
)

var errCacheDisabled = errors.New("suggestion cache disabled (store.backend: none)")

// loadConfig reads path, falling back to defaults when the file is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured cache backend wrapped with logging and
// metrics. The none backend returns a nil store.
func openStore(cfg *config.Config) (cache.Store, error) {
	var (
		inner cache.Store
		err   error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		inner, err = sqlcache.Open(sqlcache.SQLite, cfg.DBPath)
	case config.BackendPostgres:
		inner, err = sqlcache.Open(sqlcache.Postgres, cfg.Store.DSN)
	case config.BackendRedis:
		// The store parses script replies as flat RESP2 arrays.
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Protocol: 2,
		})
		inner = rediscache.New(client, rediscache.Config{Prefix: cfg.Store.RedisPrefix})
	case config.BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return cache.NewLoggingStore(inner, cfg.Store.Backend), nil
}

// openAdminStore is openStore for commands that need a cache.
func openAdminStore(cfg *config.Config) (cache.Store, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errCacheDisabled
	}
	return store, nil
}

// components holds what serve and analyze share. Close releases them in
// reverse order of creation.
type components struct {
	store   cache.Store
	tracker *tracker.SQLiteTracker
	gen     *suggest.ModelGenerator
	engine  *suggest.Engine
}

// build wires the engine. A generator without credentials leaves engine nil
// and returns an error wrapping suggest.ErrConfiguration alongside usable
// components.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	c.store = store
	if store != nil {
		if err := store.Ping(ctx); err != nil {
			logger.Warn("cache store unreachable, serving in degraded mode", zap.Error(err))
		}
	}

	if cfg.Usage.Enabled {
		tr, err := tracker.New(cfg.DBPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init tracker: %w", err)
		}
		c.tracker = tr
	}

	gen, err := suggest.NewModelGenerator(cfg.Model, logger)
	if err != nil {
		if errors.Is(err, suggest.ErrConfiguration) {
			return c, err
		}
		c.Close()
		return nil, fmt.Errorf("init generator: %w", err)
	}
	c.gen = gen

	opts := []suggest.Option{suggest.WithMinLength(cfg.Engine.MinDescriptionLength)}
	if c.store != nil {
		opts = append(opts, suggest.WithCache(c.store))
	}
	if c.tracker != nil {
		opts = append(opts, suggest.WithRecorder(c.tracker))
	}
	c.engine = suggest.NewEngine(gen, logger, opts...)
	return c, nil
}

func (c *components) Close() {
	if c.gen != nil {
		_ = c.gen.Close()
	}
	if c.tracker != nil {
		_ = c.tracker.Close()
	}
	if c.store != nil {
		_ = c.store.Close()
	}
}
