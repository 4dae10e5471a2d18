package ports

import (
	"context"

	"github.com/aretw0/branchtale/pkg/domain"
)

// ProgressStore persists a user's Session.
// Sessions are written and read as a whole; there are no partial updates.
type ProgressStore interface {
	// Save is an idempotent upsert keyed by userID that fully overwrites the stored session.
	Save(ctx context.Context, userID string, session *domain.Session) error

	// Load retrieves the session for a given user.
	// Returns domain.ErrSessionNotFound if the user has no session.
	Load(ctx context.Context, userID string) (*domain.Session, error)
}

// ListableStore is implemented by stores that can enumerate their users.
type ListableStore interface {
	ProgressStore
	List(ctx context.Context) ([]string, error)
}
