package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/kvsession/internal/logging"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/google/uuid"
)

// Storage implements ports.SessionDataStorage on top of a ports.KVClient.
// It holds only immutable configuration and is safe for concurrent use.
type Storage struct {
	client   ports.KVClient
	idleTime time.Duration
	codec    Codec
	prefix   string
	newID    func() string
	logger   *slog.Logger
}

// New creates a Storage bound to client. The client is shared, not owned:
// closing it remains the caller's responsibility.
func New(client ports.KVClient, opts ...Option) *Storage {
	s := &Storage{
		client:   client,
		idleTime: domain.DefaultMaxInactiveInterval,
		codec:    GobCodec{},
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdleTime returns the configured idle timeout.
func (s *Storage) IdleTime() time.Duration {
	return s.idleTime
}

func (s *Storage) key(id string) string {
	return s.prefix + id
}

// Create returns a new unsaved session. It does not touch the backend.
func (s *Storage) Create() *domain.SessionData {
	data := domain.NewSessionData(s.newID())
	data.MaxInactiveInterval = s.idleTime
	return data
}

// Save writes the session under its ID with the idle timeout as expiry.
func (s *Storage) Save(ctx context.Context, data *domain.SessionData) error {
	if data == nil || data.ID() == "" {
		return domain.ErrInvalidSession
	}

	val, err := s.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", data.ID(), err)
	}

	if err := s.client.Set(ctx, s.key(data.ID()), val, s.idleTime); err != nil {
		return backendError("save", data.ID(), err)
	}

	s.logger.Debug("session saved", "session_id", data.ID(), "ttl", s.idleTime, "bytes", len(val))
	return nil
}

// Get reads the session and renews its idle timeout.
// A missing session yields found == false and a nil error.
func (s *Storage) Get(ctx context.Context, id string) (*domain.SessionData, bool, error) {
	key := s.key(id)

	val, found, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, false, backendError("get", id, err)
	}
	if !found {
		return nil, false, nil
	}

	data, err := s.codec.Decode(val)
	if err != nil {
		return nil, false, fmt.Errorf("get session %s: %w: %w", id, domain.ErrCorruptData, err)
	}
	if data.ID() != id {
		return nil, false, fmt.Errorf("get session %s: %w: stored record has id %q", id, domain.ErrCorruptData, data.ID())
	}

	if err := s.client.Touch(ctx, key, s.idleTime); err != nil {
		if errors.Is(err, ports.ErrKeyNotFound) {
			// Expired or deleted between the read and the renewal.
			s.logger.Debug("session vanished before renewal", "session_id", id)
			return nil, false, nil
		}
		return nil, false, backendError("touch", id, err)
	}

	return data, true, nil
}

// Delete removes the session. Missing sessions are ignored.
func (s *Storage) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, s.key(id)); err != nil {
		return backendError("delete", id, err)
	}
	s.logger.Debug("session deleted", "session_id", id)
	return nil
}

// backendError wraps err as a connectivity failure unless a lower layer
// already classified it.
func backendError(op, id string, err error) error {
	if errors.Is(err, domain.ErrCorruptData) || errors.Is(err, domain.ErrBackendConnectivity) {
		return fmt.Errorf("%s session %s: %w", op, id, err)
	}
	return fmt.Errorf("%s session %s: %w: %w", op, id, domain.ErrBackendConnectivity, err)
}

var _ ports.SessionDataStorage = (*Storage)(nil)
