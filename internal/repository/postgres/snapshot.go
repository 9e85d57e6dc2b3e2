package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/uptownstitch/storefront/internal/domain"
	"github.com/uptownstitch/storefront/pkg/database"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
)

const (
	loadSnapshotSQL = `
		SELECT payload
		FROM cart_snapshots
		WHERE session_id = $1 AND expires_at > NOW()`

	saveSnapshotSQL = `
		INSERT INTO cart_snapshots (session_id, payload, version, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			payload    = EXCLUDED.payload,
			version    = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at`

	deleteSnapshotSQL = `DELETE FROM cart_snapshots WHERE session_id = $1`

	purgeExpiredSQL = `DELETE FROM cart_snapshots WHERE expires_at <= NOW()`
)

// SnapshotRepository implements repository.SnapshotRepository using PostgreSQL.
// Rows past expires_at read as absent and are removed by PurgeExpired.
type SnapshotRepository struct {
	db  database.DBTX
	ttl time.Duration
}

// NewSnapshotRepository creates a PostgreSQL-backed snapshot repository.
func NewSnapshotRepository(db database.DBTX, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{db: db, ttl: ttl}
}

// Load reads and decodes the session's snapshot.
func (r *SnapshotRepository) Load(ctx context.Context, sessionID string) (_ domain.CartState, _ time.Time, err error) {
	ctx, end := database.TraceQuery(ctx, "LoadSnapshot", loadSnapshotSQL)
	defer func() { end(err) }()

	var payload []byte
	if err = r.db.QueryRow(ctx, loadSnapshotSQL, sessionID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CartState{}, time.Time{}, apperrors.NotFound("cart", sessionID)
		}
		return domain.CartState{}, time.Time{}, fmt.Errorf("load cart snapshot: %w", err)
	}

	state, updatedAt, err := domain.DecodeSnapshot(payload)
	if err != nil {
		return domain.CartState{}, time.Time{}, fmt.Errorf("decode cart snapshot %s: %w", sessionID, err)
	}
	return state, updatedAt, nil
}

// Save upserts the session's snapshot and pushes its expiry forward.
func (r *SnapshotRepository) Save(ctx context.Context, sessionID string, state domain.CartState) (err error) {
	ctx, end := database.TraceQuery(ctx, "SaveSnapshot", saveSnapshotSQL)
	defer func() { end(err) }()

	now := time.Now().UTC()
	payload, err := domain.EncodeSnapshot(state, now)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, saveSnapshotSQL,
		sessionID,
		payload,
		domain.SnapshotVersion,
		now,
		now.Add(r.ttl),
	)
	if err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

// Delete removes the session's snapshot.
func (r *SnapshotRepository) Delete(ctx context.Context, sessionID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteSnapshot", deleteSnapshotSQL)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, deleteSnapshotSQL, sessionID); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired snapshot and reports how many went.
func (r *SnapshotRepository) PurgeExpired(ctx context.Context) (_ int64, err error) {
	ctx, end := database.TraceQuery(ctx, "PurgeExpiredSnapshots", purgeExpiredSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, purgeExpiredSQL)
	if err != nil {
		return 0, fmt.Errorf("purge expired cart snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SnapshotRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}
