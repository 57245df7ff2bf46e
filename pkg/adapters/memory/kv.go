package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/kvsession/pkg/ports"
)

// Client implements ports.KVClient in memory.
// Expired entries are dropped lazily on access or by Sweep. Safe for concurrent use.
type Client struct {
	data map[string]entry
	mu   sync.Mutex
	now  func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Option configures the Client.
type Option func(*Client)

// WithClock replaces time.Now, letting tests drive expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a new in-memory key-value client.
func New(opts ...Option) *Client {
	c := &Client{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// Set stores a copy of value.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy to ensure isolation, similar to serialization
	copied := make([]byte, len(value))
	copy(copied, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: copied, expiresAt: c.deadline(ttl)}
	return nil
}

// Get returns a copy of the stored value.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		delete(c.data, key)
		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Touch resets the expiry of a live key.
func (c *Client) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok || e.expired(c.now()) {
		delete(c.data, key)
		return ports.ErrKeyNotFound
	}
	e.expiresAt = c.deadline(ttl)
	c.data[key] = e
	return nil
}

// Delete removes the key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Client) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.data {
		if e.expired(now) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Ping always succeeds unless ctx is done.
func (c *Client) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close drops all entries.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	return nil
}

var _ ports.KVClient = (*Client)(nil)
