package ports

import (
	"context"

	"github.com/aretw0/kvsession/pkg/domain"
)

// SessionDataStorage is the capability consumed by the session-management layer.
type SessionDataStorage interface {
	// Create returns a new, unsaved session with a fresh unique ID.
	Create() *domain.SessionData

	// Save persists the session, overwriting any previous value for its ID.
	Save(ctx context.Context, data *domain.SessionData) error

	// Get retrieves a session by ID and renews its idle timeout.
	// found is false when the session does not exist (not an error).
	Get(ctx context.Context, id string) (data *domain.SessionData, found bool, err error)

	// Delete removes the session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, id string) error
}
