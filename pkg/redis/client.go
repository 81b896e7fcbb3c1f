package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "sf"

var errNotConnected = errors.New("redis client not initialized")

// commands is the slice of go-redis used here; tests substitute a map.
type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ReservationStore holds short-lived request reservations keyed by scope.
type ReservationStore interface {
	Key(scope, id string) string
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Load(ctx context.Context, key string) (string, bool, error)
	Store(ctx context.Context, key, value string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Client is the shared Redis connection.
type Client struct {
	cmd    commands
	closer func() error
}

var _ ReservationStore = (*Client)(nil)

// New dials Redis and fails when the first PING does not succeed.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	}
	return &Client{cmd: rdb, closer: rdb.Close}, nil
}

// options prefers STOREFRONT_REDIS_URL; explicit pool and timeout settings
// fill whatever the URL leaves unset.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case strings.TrimSpace(cfg.URL) != "":
		parsed, err := redis.ParseURL(strings.TrimSpace(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case strings.TrimSpace(cfg.Address) != "":
		opts = &redis.Options{Addr: strings.TrimSpace(cfg.Address), Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *int, v int) {
		if *dst == 0 {
			*dst = v
		}
	}
	fillDur := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	fill(&opts.DB, cfg.DB)
	fill(&opts.PoolSize, cfg.PoolSize)
	fill(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDur(&opts.DialTimeout, cfg.DialTimeout)
	fillDur(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDur(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

// Key builds "sf:<scope>:<id>", skipping blank parts.
func (c *Client) Key(scope, id string) string {
	parts := []string{keyNamespace}
	for _, p := range []string{scope, id} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

// Reserve writes value only when key is absent and reports whether it won.
func (c *Client) Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotConnected
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

// Load returns the value at key; found is false when the key is missing.
func (c *Client) Load(ctx context.Context, key string) (string, bool, error) {
	if c.cmd == nil {
		return "", false, errNotConnected
	}
	v, err := c.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Store overwrites key, resetting its TTL.
func (c *Client) Store(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Release(ctx context.Context, key string) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Del(ctx, key).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
