package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

const namespace = "sf"

var errNotInitialized = errors.New("redis client not initialized")

type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// ReplayStore holds recorded responses for idempotent request replay.
type ReplayStore interface {
	Key(parts ...string) string
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Client is the API's Redis handle. It implements ReplayStore.
type Client struct {
	cmd commands
	raw *redis.Client
}

var _ ReplayStore = (*Client)(nil)

// New dials Redis with the configured pool and fails if the first PING does.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	}
	return &Client{cmd: raw, raw: raw}, nil
}

// options prefers the URL; explicit pool and timeout settings fill whatever
// the URL left unset.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

// Key joins the non-empty parts under the service namespace.
func (c *Client) Key(parts ...string) string {
	out := []string{namespace}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ":")
}

// Claim stores value only when key is absent and reports whether it did.
func (c *Client) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if c == nil || c.cmd == nil {
		return false, errNotInitialized
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

// Load returns the value at key; found is false when the key does not exist.
func (c *Client) Load(ctx context.Context, key string) (value string, found bool, err error) {
	if c == nil || c.cmd == nil {
		return "", false, errNotInitialized
	}
	value, err = c.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Save overwrites key with value.
func (c *Client) Save(ctx context.Context, key, value string, ttl time.Duration) error {
	if c == nil || c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

// Release deletes key so a later request can claim it again.
func (c *Client) Release(ctx context.Context, key string) error {
	if c == nil || c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Del(ctx, key).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
