package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptownstitch/storefront/internal/repository"
)

const persistTimeout = 5 * time.Second

// PersistenceListener saves the new state after every change. Save failures
// are logged and counted; the in-memory cart stays authoritative for the
// session and is not evicted until a later save succeeds. Saves are detached
// from the request's cancellation.
func PersistenceListener(repo repository.SnapshotRepository, logger *slog.Logger) ListenerFactory {
	return func(sessionID string) Listener {
		return func(ctx context.Context, ch Change) {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
			defer cancel()

			err := repo.Save(ctx, sessionID, ch.State)
			if ch.store != nil {
				ch.store.unsaved.Store(err != nil)
			}
			if err != nil {
				PersistFailuresTotal.Inc()
				logger.ErrorContext(ctx, "failed to persist cart snapshot",
					slog.String("session_id", sessionID),
					slog.String("operation", string(ch.Operation)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
