package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/kvsession/pkg/adapters/memory"
	"github.com/aretw0/kvsession/pkg/persistence/middleware"
	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	client := middleware.Chain(memory.New(), middleware.NewMetricsMiddleware(m))
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Minute))
	_, _, _ = client.Get(ctx, "k")
	_, _, _ = client.Get(ctx, "missing")
	assert.ErrorIs(t, client.Touch(ctx, "missing", time.Minute), ports.ErrKeyNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("set", middleware.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("get", middleware.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("get", middleware.ResultMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("touch", middleware.ResultMiss)))
	assert.Equal(t, 3, testutil.CollectAndCount(m.Duration), "one histogram series per op seen")
}

func TestMetricsMiddleware_Errors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	client := middleware.NewMetricsMiddleware(m)(failingClient{err: errors.New("boom")})
	assert.Error(t, client.Delete(context.Background(), "k"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("delete", middleware.ResultError)))
}

func TestNewMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := middleware.NewMetrics(reg)
	require.NoError(t, err)
	second, err := middleware.NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, first.Operations, second.Operations)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := middleware.Chain(memory.New(), middleware.NewLoggingMiddleware(logger))
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Contains(t, buf.String(), "op=set")
	assert.Contains(t, buf.String(), "key=k")

	buf.Reset()
	failing := middleware.NewLoggingMiddleware(logger)(failingClient{err: errors.New("unreachable")})
	_, _, _ = failing.Get(ctx, "k")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "unreachable")
}

func TestChain_Order(t *testing.T) {
	var calls []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.KVClient) ports.KVClient {
			return tracingClient{KVClient: next, name: name, calls: &calls}
		}
	}

	client := middleware.Chain(memory.New(), tag("outer"), tag("inner"))
	require.NoError(t, client.Delete(context.Background(), "k"))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

type tracingClient struct {
	ports.KVClient
	name  string
	calls *[]string
}

func (c tracingClient) Delete(ctx context.Context, key string) error {
	*c.calls = append(*c.calls, c.name)
	return c.KVClient.Delete(ctx, key)
}

type failingClient struct{ err error }

func (f failingClient) Set(context.Context, string, []byte, time.Duration) error { return f.err }
func (f failingClient) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, f.err }
func (f failingClient) Touch(context.Context, string, time.Duration) error       { return f.err }
func (f failingClient) Delete(context.Context, string) error                     { return f.err }
