package repository

import (
	"context"
	"time"

	"github.com/uptownstitch/storefront/internal/domain"
)

// SnapshotRepository persists one cart snapshot per session.
type SnapshotRepository interface {
	// Load returns the session's persisted cart and the time it last
	// changed, zero when the payload carries none. It returns an error matching
	// apperrors.ErrNotFound when nothing is stored and one matching
	// domain.ErrCorruptSnapshot or domain.ErrSnapshotVersion when the stored
	// payload cannot be decoded.
	Load(ctx context.Context, sessionID string) (domain.CartState, time.Time, error)

	// Save overwrites the session's persisted cart.
	Save(ctx context.Context, sessionID string, state domain.CartState) error

	// Delete removes the session's persisted cart. Deleting a missing session
	// is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
