package memcached

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aretw0/kvsession/pkg/ports"
)

// maxRelativeExpiration is the largest expiry memcached treats as relative seconds;
// larger values are read as absolute unix timestamps.
const maxRelativeExpiration = 60 * 60 * 24 * 30

// pingKey is read by Ping; a miss proves the servers answer.
const pingKey = "kvsession:ping"

// errMiss is the drivers' common cache-miss signal.
var errMiss = errors.New("memcached: cache miss")

// driver abstracts the two wire clients.
type driver interface {
	get(key string) ([]byte, error)
	set(key string, value []byte, exp uint32) error
	touch(key string, exp uint32) error
	delete(key string) error
	close() error
}

// Client implements ports.KVClient on memcached.
type Client struct {
	driver   driver
	protocol Protocol
	hosts    []string
	now      func() time.Time
}

// New validates cfg and builds a client for the selected protocol.
// No connection is made until the first operation.
func New(cfg Config) (*Client, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	var d driver
	switch cfg.Protocol {
	case ProtocolText:
		d, err = newTextDriver(cfg)
	default:
		d = newBinaryDriver(cfg)
	}
	if err != nil {
		return nil, err
	}

	return &Client{
		driver:   d,
		protocol: cfg.Protocol,
		hosts:    cfg.Hosts,
		now:      time.Now,
	}, nil
}

// Protocol returns the wire protocol in use.
func (c *Client) Protocol() Protocol {
	return c.protocol
}

// Hosts returns the normalized server list.
func (c *Client) Hosts() []string {
	return append([]string(nil), c.hosts...)
}

// Set stores value under key.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.driver.set(key, value, expiration(ttl, c.now())); err != nil {
		return fmt.Errorf("memcached set %q: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	val, err := c.driver.get(key)
	if errors.Is(err, errMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcached get %q: %w", key, err)
	}
	return val, true, nil
}

// Touch resets the expiry of key.
func (c *Client) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.driver.touch(key, expiration(ttl, c.now()))
	if errors.Is(err, errMiss) {
		return ports.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("memcached touch %q: %w", key, err)
	}
	return nil
}

// Delete removes key. A miss is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.driver.delete(key)
	if err != nil && !errors.Is(err, errMiss) {
		return fmt.Errorf("memcached delete %q: %w", key, err)
	}
	return nil
}

// Ping checks that the servers answer.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.Get(ctx, pingKey)
	return err
}

// Close releases pooled connections.
func (c *Client) Close() error {
	return c.driver.close()
}

// expiration converts ttl to memcached's exptime: whole seconds rounded up,
// absolute unix time beyond 30 days, 0 for no expiry.
func expiration(ttl time.Duration, now time.Time) uint32 {
	if ttl <= 0 {
		return 0
	}
	secs := int64(math.Ceil(ttl.Seconds()))
	if secs > maxRelativeExpiration {
		secs += now.Unix()
	}
	if secs > math.MaxUint32 {
		secs = math.MaxUint32
	}
	return uint32(secs)
}

var _ ports.KVClient = (*Client)(nil)
