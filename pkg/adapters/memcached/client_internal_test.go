package memcached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/bradfitz/gomemcache/memcache"
	mc "github.com/memcachier/mc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.Equal(t, uint32(0), expiration(0, now))
	assert.Equal(t, uint32(0), expiration(-time.Second, now))
	assert.Equal(t, uint32(1), expiration(10*time.Millisecond, now))
	assert.Equal(t, uint32(1800), expiration(30*time.Minute, now))
	assert.Equal(t, uint32(maxRelativeExpiration), expiration(30*24*time.Hour, now))
	assert.Equal(t, uint32(now.Unix()+maxRelativeExpiration+1), expiration(30*24*time.Hour+time.Second, now))
}

// fakeText records calls and returns scripted errors.
type fakeText struct {
	items    map[string]*memcache.Item
	touched  map[string]int32
	failWith error
}

func newFakeText() *fakeText {
	return &fakeText{items: map[string]*memcache.Item{}, touched: map[string]int32{}}
}

func (f *fakeText) Get(key string) (*memcache.Item, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	it, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return it, nil
}

func (f *fakeText) Set(item *memcache.Item) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.items[item.Key] = item
	return nil
}

func (f *fakeText) Touch(key string, seconds int32) error {
	if _, ok := f.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	f.touched[key] = seconds
	return nil
}

func (f *fakeText) Delete(key string) error {
	if _, ok := f.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(f.items, key)
	return nil
}

func TestTextDriver_Contract(t *testing.T) {
	c := &Client{driver: &textDriver{mc: newFakeText()}, protocol: ProtocolText, now: time.Now}
	ports.RunKVClientContract(t, c)
}

func TestTextDriver_PassesExpiration(t *testing.T) {
	fake := newFakeText()
	c := &Client{driver: &textDriver{mc: fake}, protocol: ProtocolText, now: time.Now}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 2*time.Second))
	assert.Equal(t, int32(2), fake.items["k"].Expiration)

	require.NoError(t, c.Touch(ctx, "k", 5*time.Second))
	assert.Equal(t, int32(5), fake.touched["k"])
}

func TestTextDriver_WrapsServerErrors(t *testing.T) {
	fake := newFakeText()
	fake.failWith = memcache.ErrNoServers
	c := &Client{driver: &textDriver{mc: fake}, protocol: ProtocolText, now: time.Now}

	_, found, err := c.Get(context.Background(), "k")
	assert.False(t, found)
	assert.ErrorIs(t, err, memcache.ErrNoServers)
	assert.ErrorIs(t, c.Ping(context.Background()), memcache.ErrNoServers)
}

// fakeBinary mimics the binary client's string-valued API.
type fakeBinary struct {
	items   map[string]string
	exps    map[string]uint32
	quit    bool
	failGet error
}

func newFakeBinary() *fakeBinary {
	return &fakeBinary{items: map[string]string{}, exps: map[string]uint32{}}
}

func (f *fakeBinary) Get(key string) (string, uint32, uint64, error) {
	if f.failGet != nil {
		return "", 0, 0, f.failGet
	}
	v, ok := f.items[key]
	if !ok {
		return "", 0, 0, mc.ErrNotFound
	}
	return v, 0, 1, nil
}

func (f *fakeBinary) Set(key, val string, flags, exp uint32, ocas uint64) (uint64, error) {
	f.items[key] = val
	f.exps[key] = exp
	return 1, nil
}

func (f *fakeBinary) Touch(key string, exp uint32) (uint64, error) {
	if _, ok := f.items[key]; !ok {
		return 0, mc.ErrNotFound
	}
	f.exps[key] = exp
	return 1, nil
}

func (f *fakeBinary) Del(key string) error {
	if _, ok := f.items[key]; !ok {
		return mc.ErrNotFound
	}
	delete(f.items, key)
	return nil
}

func (f *fakeBinary) Quit() { f.quit = true }

func TestBinaryDriver_Contract(t *testing.T) {
	c := &Client{driver: &binaryDriver{mc: newFakeBinary()}, protocol: ProtocolBinary, now: time.Now}
	ports.RunKVClientContract(t, c)
}

func TestBinaryDriver_ExpirationAndClose(t *testing.T) {
	fake := newFakeBinary()
	c := &Client{driver: &binaryDriver{mc: fake}, protocol: ProtocolBinary, now: time.Now}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte{0, 1, 2}, 1800*time.Second))
	assert.Equal(t, uint32(1800), fake.exps["k"])

	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte{0, 1, 2}, val, "binary values survive the string round trip")

	require.NoError(t, c.Close())
	assert.True(t, fake.quit)
}

func TestBinaryDriver_AuthFailure(t *testing.T) {
	fake := newFakeBinary()
	authErr := errors.New("auth failure")
	fake.failGet = authErr
	c := &Client{driver: &binaryDriver{mc: fake}, protocol: ProtocolBinary, now: time.Now}

	_, _, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, authErr)
}

func TestClient_CanceledContext(t *testing.T) {
	c := &Client{driver: &binaryDriver{mc: newFakeBinary()}, now: time.Now}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), context.Canceled)
	assert.ErrorIs(t, c.Touch(ctx, "k", 0), context.Canceled)
	assert.ErrorIs(t, c.Delete(ctx, "k"), context.Canceled)
}
