package kvsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/kvsession/internal/config"
	"github.com/aretw0/kvsession/internal/logging"
	"github.com/aretw0/kvsession/pkg/adapters/file"
	"github.com/aretw0/kvsession/pkg/adapters/memcached"
	"github.com/aretw0/kvsession/pkg/adapters/memory"
	"github.com/aretw0/kvsession/pkg/adapters/redis"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/persistence/middleware"
	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/aretw0/kvsession/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Settings is the runtime configuration accepted by New.
type Settings = config.Settings

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return config.Default()
}

// LoadSettings reads settings from path (YAML or JSON), .env and the environment.
// An empty path uses ./kvsession.yaml when present.
func LoadSettings(path string) (Settings, error) {
	return config.Load(path)
}

// Service is a ready-to-use session store built from Settings.
type Service struct {
	settings Settings
	client   ports.KVClient
	backend  ports.KVClient
	storage  ports.SessionDataStorage
	manager  *session.Manager
	metrics  *middleware.Metrics

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithLogger sets a custom structured logger, overriding the log settings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClient injects a backend client, bypassing the backend factory.
// The Service takes ownership and closes it when it implements io.Closer.
func WithClient(client ports.KVClient) Option {
	return func(s *Service) {
		s.backend = client
	}
}

// WithRegistry registers metrics on reg instead of the process-wide default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Service) {
		s.registerer = reg
		s.gatherer = reg
	}
}

// New validates settings and wires backend, middleware, storage and manager.
// No network call is made; use Ping to check reachability.
func New(settings Settings, opts ...Option) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		settings:   settings,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		level, _ := logging.ParseLevel(settings.Log.Level)
		logger, err := logging.NewWithFormat(settings.Log.Format, level)
		if err != nil {
			return nil, err
		}
		svc.logger = logger
	}

	var managerOpts []session.ManagerOption
	if svc.backend == nil {
		backend, locker, err := newBackend(settings)
		if err != nil {
			return nil, err
		}
		svc.backend = backend
		if locker != nil {
			managerOpts = append(managerOpts, session.WithLocker(locker))
		}
	}

	metrics, err := middleware.NewMetrics(svc.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	svc.metrics = metrics

	mws := []middleware.Middleware{
		middleware.NewMetricsMiddleware(metrics),
		middleware.NewLoggingMiddleware(svc.logger.With("component", "backend", "backend", settings.Backend)),
	}
	encCfg, err := settings.EncryptionConfig()
	if err != nil {
		return nil, err
	}
	if encCfg != nil {
		enc, err := middleware.NewEncryptionMiddleware(*encCfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	svc.client = middleware.Chain(svc.backend, mws...)

	codec, err := session.CodecByName(settings.Session.Codec)
	if err != nil {
		return nil, err
	}
	var storage ports.SessionDataStorage = session.New(svc.client,
		session.WithIdleTime(settings.Session.IdleTime),
		session.WithCodec(codec),
		session.WithKeyPrefix(settings.Session.KeyPrefix),
		session.WithLogger(svc.logger.With("component", "session")),
	)
	if len(settings.Session.Redact) > 0 {
		redact, err := middleware.NewRedactionMiddleware(settings.Session.Redact)
		if err != nil {
			return nil, err
		}
		storage = middleware.ChainStorage(storage, redact)
	}
	svc.storage = storage

	managerOpts = append(managerOpts, session.WithManagerLogger(svc.logger.With("component", "manager")))
	svc.manager = session.NewManager(storage, managerOpts...)

	svc.logger.Debug("session service ready",
		"backend", settings.Backend,
		"idleTime", settings.Session.IdleTime,
		"codec", codec.Name(),
		"encrypted", encCfg != nil,
	)
	return svc, nil
}

// newBackend builds the configured client and, where the backend supports it, a distributed locker.
func newBackend(settings Settings) (ports.KVClient, ports.DistributedLocker, error) {
	switch settings.Backend {
	case config.BackendMemcached:
		cfg, err := settings.MemcachedConfig()
		if err != nil {
			return nil, nil, err
		}
		client, err := memcached.New(cfg)
		return client, nil, err
	case config.BackendRedis:
		client := redis.New(settings.Redis.Addr, settings.Redis.Password, settings.Redis.DB)
		locker := redis.NewLocker(client.Redis(), redis.DefaultLockPrefix+settings.Session.KeyPrefix)
		return client, locker, nil
	case config.BackendMemory:
		return memory.New(), nil, nil
	case config.BackendFile:
		return file.New(settings.File.Dir), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown backend %q", domain.ErrConfiguration, settings.Backend)
	}
}

// Settings returns the settings the Service was built from.
func (s *Service) Settings() Settings {
	return s.settings
}

// Storage returns the session store.
func (s *Service) Storage() ports.SessionDataStorage {
	return s.storage
}

// Manager returns the per-session serializing manager.
func (s *Service) Manager() *session.Manager {
	return s.manager
}

// Client returns the backend client wrapped in the configured middleware.
func (s *Service) Client() ports.KVClient {
	return s.client
}

// Gatherer returns the registry holding the Service metrics.
func (s *Service) Gatherer() prometheus.Gatherer {
	return s.gatherer
}

// Logger returns the Service logger.
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ErrPingUnsupported is returned by Ping when the backend cannot be probed.
var ErrPingUnsupported = errors.New("backend does not support ping")

// Ping checks that the backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.backend.(pinger)
	if !ok {
		return ErrPingUnsupported
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%s backend unreachable: %w", strings.ToLower(s.settings.Backend), err)
	}
	return nil
}

// Close releases backend connections.
func (s *Service) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
