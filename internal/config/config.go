// Package config loads kvsession settings.
//
// Values are layered: built-in defaults, then an optional YAML or JSON file,
// then a .env file, then process environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/kvsession/internal/logging"
	"github.com/aretw0/kvsession/pkg/adapters/memcached"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/persistence/middleware"
	"github.com/aretw0/kvsession/pkg/session"
)

// Backend names accepted in Settings.Backend.
const (
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
	BackendMemory    = "memory"
	BackendFile      = "file"
)

// DefaultPath is the settings file looked up when none is given.
const DefaultPath = "kvsession.yaml"

// Settings is the full runtime configuration.
type Settings struct {
	Backend    string             `mapstructure:"backend" json:"backend" yaml:"backend" env:"KVSESSION_BACKEND"`
	Session    SessionSettings    `mapstructure:"session" json:"session" yaml:"session"`
	Memcached  MemcachedSettings  `mapstructure:"memcached" json:"memcached" yaml:"memcached"`
	Redis      RedisSettings      `mapstructure:"redis" json:"redis" yaml:"redis"`
	File       FileSettings       `mapstructure:"file" json:"file" yaml:"file"`
	Encryption EncryptionSettings `mapstructure:"encryption" json:"encryption" yaml:"encryption"`
	Log        LogSettings        `mapstructure:"log" json:"log" yaml:"log"`
	HTTP       HTTPSettings       `mapstructure:"http" json:"http" yaml:"http"`
}

type SessionSettings struct {
	IdleTime  time.Duration `mapstructure:"idleTime" json:"idleTime" yaml:"idleTime" env:"KVSESSION_IDLE_TIME"`
	KeyPrefix string        `mapstructure:"keyPrefix" json:"keyPrefix" yaml:"keyPrefix" env:"KVSESSION_KEY_PREFIX"`
	Codec     string        `mapstructure:"codec" json:"codec" yaml:"codec" env:"KVSESSION_CODEC"`
	Redact    []string      `mapstructure:"redact" json:"redact,omitempty" yaml:"redact,omitempty" env:"KVSESSION_REDACT"`
}

// MemcachedSettings mirrors memcached.Config in its textual form.
type MemcachedSettings struct {
	Hosts          []string      `mapstructure:"hosts" json:"hosts" yaml:"hosts" env:"MEMCACHED_HOSTS"`
	Protocol       string        `mapstructure:"protocol" json:"protocol" yaml:"protocol" env:"MEMCACHED_PROTOCOL"`
	User           string        `mapstructure:"user" json:"user,omitempty" yaml:"user,omitempty" env:"MEMCACHED_USER"`
	Password       string        `mapstructure:"password" json:"-" yaml:"-" env:"MEMCACHED_PASSWORD"`
	AuthMechanisms []string      `mapstructure:"authMechanisms" json:"authMechanisms" yaml:"authMechanisms" env:"MEMCACHED_AUTH_MECHANISMS"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" env:"MEMCACHED_TIMEOUT"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr" json:"addr" yaml:"addr" env:"REDIS_ADDR"`
	Password string `mapstructure:"password" json:"-" yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db" env:"REDIS_DB"`
}

type FileSettings struct {
	Dir string `mapstructure:"dir" json:"dir" yaml:"dir" env:"KVSESSION_FILE_DIR"`
}

type EncryptionSettings struct {
	// Key is a base64 AES-256 key. Empty disables encryption.
	Key          string   `mapstructure:"key" json:"-" yaml:"-" env:"KVSESSION_ENCRYPTION_KEY"`
	FallbackKeys []string `mapstructure:"fallbackKeys" json:"-" yaml:"-" env:"KVSESSION_ENCRYPTION_FALLBACK_KEYS"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level" env:"KVSESSION_LOG_LEVEL"`
	Format string `mapstructure:"format" json:"format" yaml:"format" env:"KVSESSION_LOG_FORMAT"`
}

type HTTPSettings struct {
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr" env:"KVSESSION_HTTP_ADDR"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Backend: BackendMemcached,
		Session: SessionSettings{
			IdleTime: domain.DefaultMaxInactiveInterval,
			Codec:    "gob",
		},
		Memcached: MemcachedSettings{
			Hosts:          []string{memcached.DefaultHost},
			Protocol:       string(memcached.ProtocolBinary),
			AuthMechanisms: []string{memcached.MechanismPlain},
			Timeout:        memcached.DefaultTimeout,
		},
		Redis: RedisSettings{Addr: "localhost:6379"},
		File:  FileSettings{Dir: filepath.Join(".kvsession", "data")},
		Log:   LogSettings{Level: "info", Format: "text"},
		HTTP:  HTTPSettings{Addr: ":8080"},
	}
}

// Load builds Settings from defaults, the file at path, .env and the environment.
// An empty path tries DefaultPath and tolerates its absence; an explicit path must exist.
func Load(path string) (Settings, error) {
	s := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := s.mergeFile(path, explicit); err != nil {
		return s, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return s, fmt.Errorf("%w: failed to load .env: %v", domain.ErrConfiguration, err)
	}
	if err := s.mergeEnv(); err != nil {
		return s, err
	}

	return s, s.Validate()
}

// LoadFromEnv applies environment variables on top of defaults, ignoring files.
func LoadFromEnv() (Settings, error) {
	s := Default()
	if err := s.mergeEnv(); err != nil {
		return s, err
	}
	return s, s.Validate()
}

func (s *Settings) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("%w: failed to read settings: %v", domain.ErrConfiguration, err)
	}

	raw := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &raw)
	} else {
		// Default to YAML
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", domain.ErrConfiguration, filepath.Base(path), err)
	}
	return s.decode(raw)
}

// decode merges a generic map onto s.
func (s *Settings) decode(raw map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDurationHook(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           s,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return nil
}

// secondsToDurationHook reads bare numbers as seconds, matching memcached's expiry unit.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		}
		return data, nil
	}
}

// parseEnvDuration accepts Go durations ("30m") and, like the settings file,
// bare numbers as seconds ("1800").
func parseEnvDuration(v string) (any, error) {
	if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func (s *Settings) mergeEnv() error {
	err := env.ParseWithOptions(s, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): parseEnvDuration,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return nil
}

// Validate checks every field that has a fixed vocabulary or format.
func (s Settings) Validate() error {
	var errs []error

	switch s.Backend {
	case BackendMemcached, BackendRedis, BackendMemory, BackendFile:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", s.Backend))
	}

	if s.Session.IdleTime < 0 {
		errs = append(errs, fmt.Errorf("session.idleTime must not be negative"))
	}
	if _, err := session.CodecByName(s.Session.Codec); err != nil {
		errs = append(errs, err)
	}
	if _, err := middleware.NewRedactionMiddleware(s.Session.Redact); err != nil {
		errs = append(errs, err)
	}

	if s.Backend == BackendMemcached {
		if _, err := s.MemcachedConfig(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must not be negative"))
	}

	if _, err := s.EncryptionConfig(); err != nil {
		errs = append(errs, err)
	}

	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(s.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", s.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
}

// MemcachedConfig converts the memcached section, validating it without any network call.
func (s Settings) MemcachedConfig() (memcached.Config, error) {
	protocol, err := memcached.ParseProtocol(s.Memcached.Protocol)
	if err != nil {
		return memcached.Config{}, err
	}
	hosts, err := memcached.ParseHosts(strings.Join(s.Memcached.Hosts, " "))
	if err != nil {
		return memcached.Config{}, err
	}
	mechs, err := memcached.ParseAuthMechanisms(s.Memcached.AuthMechanisms)
	if err != nil {
		return memcached.Config{}, err
	}

	cfg := memcached.Config{
		Hosts:          hosts,
		Protocol:       protocol,
		Username:       s.Memcached.User,
		Password:       s.Memcached.Password,
		AuthMechanisms: mechs,
		Timeout:        s.Memcached.Timeout,
	}
	if cfg.Username != "" && protocol == memcached.ProtocolText {
		return cfg, fmt.Errorf("%w: memcached authentication requires the BINARY protocol", domain.ErrConfiguration)
	}
	return cfg, nil
}

// EncryptionConfig decodes the encryption keys. It returns nil when encryption is disabled.
func (s Settings) EncryptionConfig() (cfg *middleware.EncryptionConfig, err error) {
	if strings.TrimSpace(s.Encryption.Key) == "" {
		if len(s.Encryption.FallbackKeys) > 0 {
			return nil, fmt.Errorf("%w: encryption.fallbackKeys set without encryption.key", domain.ErrConfiguration)
		}
		return nil, nil
	}

	active, err := middleware.ParseKey(s.Encryption.Key)
	if err != nil {
		return nil, err
	}
	cfg = &middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range s.Encryption.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, err
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	return cfg, nil
}
