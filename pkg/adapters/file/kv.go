// Package file implements a key-value backend on the local filesystem.
//
// Each key is one file holding an 8-byte expiry header followed by the raw value.
// Writes go through a temp file and a rename so readers never see partial data.
package file

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/ports"
)

const (
	headerSize = 8
	extension  = ".kv"
)

// Client implements ports.KVClient using the local filesystem.
type Client struct {
	BasePath string

	mu  sync.Mutex
	now func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a new Client with the given base path.
// If basePath is empty, it defaults to ".kvsession/data".
func New(basePath string, opts ...Option) *Client {
	if basePath == "" {
		basePath = filepath.Join(".kvsession", "data")
	}
	c := &Client{BasePath: basePath, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// path maps a key to a file name; keys are base64url-encoded so any byte is safe.
func (c *Client) path(key string) string {
	return filepath.Join(c.BasePath, base64.RawURLEncoding.EncodeToString([]byte(key))+extension)
}

func (c *Client) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return c.now().Add(ttl).UnixNano()
}

// Set persists value atomically.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(key, c.deadline(ttl), value)
}

// Get reads the value stored under key. Expired files are removed.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, value, found, err := c.read(key)
	return value, found, err
}

// Touch rewrites the expiry header of key.
func (c *Client) Touch(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, value, found, err := c.read(key)
	if err != nil {
		return err
	}
	if !found {
		return ports.ErrKeyNotFound
	}
	return c.write(key, c.deadline(ttl), value)
}

// Delete removes the file for key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Sweep deletes every expired file and returns how many were removed.
func (c *Client) Sweep() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list data directory: %w", err)
	}

	now := c.now().UnixNano()
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, extension) {
			continue
		}
		expiresAt, err := readHeader(filepath.Join(c.BasePath, name))
		if err != nil || expiresAt == 0 || expiresAt > now {
			continue
		}
		if err := os.Remove(filepath.Join(c.BasePath, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (c *Client) read(key string) (int64, []byte, bool, error) {
	p := c.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, false, nil
		}
		return 0, nil, false, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) < headerSize {
		return 0, nil, false, fmt.Errorf("%w: truncated file %s", domain.ErrCorruptData, filepath.Base(p))
	}

	expiresAt := int64(binary.BigEndian.Uint64(data[:headerSize]))
	if expiresAt != 0 && c.now().UnixNano() >= expiresAt {
		_ = os.Remove(p)
		return 0, nil, false, nil
	}
	return expiresAt, data[headerSize:], true, nil
}

// write stores the record atomically: temp file, fsync, rename.
func (c *Client) write(key string, expiresAt int64, value []byte) error {
	if err := os.MkdirAll(c.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure data directory: %w", err)
	}

	destPath := c.path(key)

	buf := make([]byte, headerSize+len(value))
	binary.BigEndian.PutUint64(buf[:headerSize], uint64(expiresAt))
	copy(buf[headerSize:], value)

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(c.BasePath, "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(buf); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func readHeader(p string) (int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var hdr [headerSize]byte
	if _, err := f.Read(hdr[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(hdr[:])), nil
}

// Close is a no-op; it exists so the client matches the other backends.
func (c *Client) Close() error {
	return nil
}

// ErrNotDirectory is returned by Ping when BasePath exists but is a file.
var ErrNotDirectory = errors.New("data path is not a directory")

// Ping checks that BasePath is usable.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(c.BasePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", c.BasePath, ErrNotDirectory)
	}
	return nil
}

var _ ports.KVClient = (*Client)(nil)
