package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/kvsession/internal/logging"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/ports"
)

// ErrNotFound is returned by Manager.Update when the session does not exist.
var ErrNotFound = errors.New("session not found")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes read-modify-write cycles per session ID on top of a storage.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	storage ports.SessionDataStorage

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active locks by session ID

	locker  ports.DistributedLocker // optional
	lockTTL time.Duration
	logger  *slog.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock is held if its owner dies (default 30s).
func WithLockTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithManagerLogger configures a logger for internal events (like deferred unlock errors).
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given storage.
func NewManager(storage ports.SessionDataStorage, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage: storage,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Storage returns the underlying storage.
func (m *Manager) Storage() ports.SessionDataStorage {
	return m.storage
}

// Create returns a new unsaved session.
func (m *Manager) Create() *domain.SessionData {
	return m.storage.Create()
}

// Get retrieves a session while holding its lock.
func (m *Manager) Get(ctx context.Context, id string) (*domain.SessionData, bool, error) {
	var (
		data  *domain.SessionData
		found bool
	)
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		data, found, err = m.storage.Get(ctx, id)
		return err
	})
	return data, found, err
}

// Save persists the session while holding its lock.
func (m *Manager) Save(ctx context.Context, data *domain.SessionData) error {
	if data == nil {
		return domain.ErrInvalidSession
	}
	return m.WithLock(ctx, data.ID(), func(ctx context.Context) error {
		return m.storage.Save(ctx, data)
	})
}

// Delete removes the session while holding its lock.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.storage.Delete(ctx, id)
	})
}

// Update loads the session, applies fn and saves the result atomically with respect
// to other Manager calls for the same ID. If fn returns an error nothing is saved.
func (m *Manager) Update(ctx context.Context, id string, fn func(*domain.SessionData) error) (*domain.SessionData, error) {
	var data *domain.SessionData
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		loaded, found, err := m.storage.Get(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := fn(loaded); err != nil {
			return err
		}
		if err := m.storage.Save(ctx, loaded); err != nil {
			return err
		}
		data = loaded
		return nil
	})
	return data, err
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
