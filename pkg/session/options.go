package session

import (
	"log/slog"
	"time"
)

// Option configures a Storage.
type Option func(*Storage)

// WithIdleTime sets the idle timeout applied on Save and renewed on Get.
// Non-positive values keep the default.
func WithIdleTime(d time.Duration) Option {
	return func(s *Storage) {
		if d > 0 {
			s.idleTime = d
		}
	}
}

// WithCodec sets the value encoding.
func WithCodec(c Codec) Option {
	return func(s *Storage) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithKeyPrefix namespaces backend keys. By default the key is the session ID.
func WithKeyPrefix(prefix string) Option {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

// WithIDGenerator replaces the UUID generator used by Create.
func WithIDGenerator(fn func() string) Option {
	return func(s *Storage) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger configures a logger for backend events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		s.logger = logger
	}
}
