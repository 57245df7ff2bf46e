package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/kvsession/pkg/adapters/file"
	"github.com/aretw0/kvsession/pkg/adapters/memory"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/aretw0/kvsession/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileClient_Contract(t *testing.T) {
	ports.RunKVClientContract(t, file.New(t.TempDir()))
}

func TestFileClient_SessionStorageContract(t *testing.T) {
	ports.RunSessionDataStorageContract(t, session.New(file.New(t.TempDir())))
}

func TestFileClient_DefaultPath(t *testing.T) {
	c := file.New("")
	assert.Equal(t, filepath.Join(".kvsession", "data"), c.BasePath)
}

func TestFileClient_Expiry(t *testing.T) {
	clock := memory.NewClock(time.Unix(1_000, 0))
	c := file.New(t.TempDir(), file.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 2*time.Second))

	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, c.Touch(ctx, "k", 2*time.Second))

	clock.Advance(1500 * time.Millisecond)
	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	clock.Advance(2 * time.Second)
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.ErrorIs(t, c.Touch(ctx, "k", time.Second), ports.ErrKeyNotFound)
}

func TestFileClient_Sweep(t *testing.T) {
	dir := t.TempDir()
	clock := memory.NewClock(time.Unix(1_000, 0))
	c := file.New(dir, file.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("b"), time.Hour))
	require.NoError(t, c.Set(ctx, "forever", []byte("c"), 0))

	clock.Advance(time.Minute)
	n, err := c.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileClient_KeysWithSeparators(t *testing.T) {
	c := file.New(t.TempDir())
	ctx := context.Background()

	key := "../../etc/passwd"
	require.NoError(t, c.Set(ctx, key, []byte("safe"), 0))

	val, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("safe"), val)
}

func TestFileClient_Truncated(t *testing.T) {
	dir := t.TempDir()
	c := file.New(dir)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("value"), 0))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, entries[0].Name()), []byte{1, 2}, 0o644))

	_, _, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCorruptData)
}

func TestFileClient_Ping(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, file.New(filepath.Join(dir, "not-yet")).Ping(context.Background()))

	p := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	assert.ErrorIs(t, file.New(p).Ping(context.Background()), file.ErrNotDirectory)
}
