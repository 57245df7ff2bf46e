package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/kvsession/pkg/adapters/memory"
	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_Contract(t *testing.T) {
	ports.RunKVClientContract(t, memory.New())
}

func TestMemoryClient_Expiry(t *testing.T) {
	clock := memory.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 2*time.Second))

	clock.Advance(time.Second)
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	clock.Advance(time.Second)
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "entry should expire exactly at its deadline")
}

func TestMemoryClient_TouchExtends(t *testing.T) {
	clock := memory.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 2*time.Second))
	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, c.Touch(ctx, "k", 2*time.Second))

	clock.Advance(1500 * time.Millisecond)
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found, "touch should restart the countdown")

	clock.Advance(3 * time.Second)
	assert.ErrorIs(t, c.Touch(ctx, "k", time.Second), ports.ErrKeyNotFound)
}

func TestMemoryClient_NoExpiry(t *testing.T) {
	clock := memory.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	clock.Advance(24 * 365 * time.Hour)

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryClient_Isolation(t *testing.T) {
	c := memory.New()
	ctx := context.Background()

	val := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", val, 0))
	val[0] = 'x'

	got, _, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryClient_Sweep(t *testing.T) {
	clock := memory.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))
	clock.Advance(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryClient_CanceledContext(t *testing.T) {
	c := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Set(ctx, "k", []byte("v"), 0), context.Canceled)
	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
