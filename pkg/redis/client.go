package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bazario-dev/bazario-backend/pkg/config"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("redis: key not found")

type cmdable interface {
	Ping(ctx context.Context) *goredis.StatusCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Close() error
}

type Client struct {
	rdb       cmdable
	namespace string
}

func NewClient(cfg config.RedisConfig, namespace string) (*Client, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.Address != "" {
		opts.Addr = cfg.Address
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	return &Client{
		rdb:       goredis.NewClient(opts),
		namespace: namespace,
	}, nil
}

// NewFromCmdable exists for tests with a fake command surface.
func NewFromCmdable(rdb cmdable, namespace string) *Client {
	return &Client{rdb: rdb, namespace: namespace}
}

func (c *Client) buildKey(parts ...string) string {
	key := c.namespace
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, parts ...string) (string, error) {
	val, err := c.rdb.Get(ctx, c.buildKey(parts...)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (c *Client) Set(ctx context.Context, value string, ttl time.Duration, parts ...string) error {
	return c.rdb.Set(ctx, c.buildKey(parts...), value, ttl).Err()
}

// SetNX returns true when the key was newly set.
func (c *Client) SetNX(ctx context.Context, value string, ttl time.Duration, parts ...string) (bool, error) {
	return c.rdb.SetNX(ctx, c.buildKey(parts...), value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, parts ...string) error {
	return c.rdb.Del(ctx, c.buildKey(parts...)).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
