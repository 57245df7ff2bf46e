package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Metrics holds the collectors used by the metrics middleware.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by a previous call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvsession_backend_operations_total",
			Help: "Backend calls by operation and result.",
		},
		[]string{"op", "result"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvsession_backend_operation_duration_seconds",
			Help:    "Backend call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	var err error
	if ops, err = register(reg, ops); err != nil {
		return nil, err
	}
	if dur, err = register(reg, dur); err != nil {
		return nil, err
	}
	return &Metrics{Operations: ops, Duration: dur}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

type metricsMiddleware struct {
	next ports.KVClient
	m    *Metrics
}

// NewMetricsMiddleware counts and times every backend call.
func NewMetricsMiddleware(m *Metrics) Middleware {
	return func(next ports.KVClient) ports.KVClient {
		return &metricsMiddleware{next: next, m: m}
	}
}

func (mw *metricsMiddleware) observe(op string, start time.Time, result string) {
	mw.m.Operations.WithLabelValues(op, result).Inc()
	mw.m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ports.ErrKeyNotFound):
		return ResultMiss
	default:
		return ResultError
	}
}

func (mw *metricsMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := mw.next.Set(ctx, key, value, ttl)
	mw.observe("set", start, resultOf(err))
	return err
}

func (mw *metricsMiddleware) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	val, found, err := mw.next.Get(ctx, key)
	result := resultOf(err)
	if err == nil && !found {
		result = ResultMiss
	}
	mw.observe("get", start, result)
	return val, found, err
}

func (mw *metricsMiddleware) Touch(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := mw.next.Touch(ctx, key, ttl)
	mw.observe("touch", start, resultOf(err))
	return err
}

func (mw *metricsMiddleware) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := mw.next.Delete(ctx, key)
	mw.observe("delete", start, resultOf(err))
	return err
}
