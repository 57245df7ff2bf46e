package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/kvsession/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "kvsession:"

// Client implements ports.KVClient using Redis.
type Client struct {
	client *backend.Client
	prefix string
}

type Option func(*Client)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// New creates a new Redis client with options.
func New(address, password string, db int, opts ...Option) *Client {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(client *backend.Client, opts ...Option) *Client {
	c := &Client{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Redis exposes the underlying go-redis client, e.g. to share it with a Locker.
func (c *Client) Redis() *backend.Client {
	return c.client
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

// Set stores value with the given TTL. A non-positive TTL means no expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get retrieves the value stored under key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load from redis: %w", err)
	}
	return val, true, nil
}

// Touch resets the TTL of key.
func (c *Client) Touch(ctx context.Context, key string, ttl time.Duration) error {
	k := c.key(key)

	if ttl <= 0 {
		n, err := c.client.Exists(ctx, k).Result()
		if err != nil {
			return fmt.Errorf("failed to touch redis key: %w", err)
		}
		if n == 0 {
			return ports.ErrKeyNotFound
		}
		return c.client.Persist(ctx, k).Err()
	}

	ok, err := c.client.Expire(ctx, k, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to touch redis key: %w", err)
	}
	if !ok {
		return ports.ErrKeyNotFound
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ ports.KVClient = (*Client)(nil)
