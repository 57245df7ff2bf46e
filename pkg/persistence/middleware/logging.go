package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/kvsession/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.KVClient
	logger *slog.Logger
}

// NewLoggingMiddleware logs every backend call at debug level and failures at warn.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.KVClient) ports.KVClient {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(ctx context.Context, op, key string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "key", key, "duration", time.Since(start))
	if err != nil {
		m.logger.WarnContext(ctx, "backend call failed", append(attrs, "err", err)...)
		return
	}
	m.logger.DebugContext(ctx, "backend call", attrs...)
}

func (m *loggingMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := m.next.Set(ctx, key, value, ttl)
	m.log(ctx, "set", key, start, err, "bytes", len(value), "ttl", ttl)
	return err
}

func (m *loggingMiddleware) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	val, found, err := m.next.Get(ctx, key)
	m.log(ctx, "get", key, start, err, "found", found)
	return val, found, err
}

func (m *loggingMiddleware) Touch(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := m.next.Touch(ctx, key, ttl)
	if errors.Is(err, ports.ErrKeyNotFound) {
		m.log(ctx, "touch", key, start, nil, "found", false)
		return err
	}
	m.log(ctx, "touch", key, start, err, "ttl", ttl)
	return err
}

func (m *loggingMiddleware) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.next.Delete(ctx, key)
	m.log(ctx, "delete", key, start, err)
	return err
}
