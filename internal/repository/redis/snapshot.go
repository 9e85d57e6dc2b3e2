package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
)

const keyPrefix = "cart:"

// SnapshotRepository implements repository.SnapshotRepository using Redis.
// Every save refreshes the key's TTL, so idle carts expire on their own.
type SnapshotRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSnapshotRepository creates a Redis-backed snapshot repository. A ttl of
// zero keeps snapshots forever.
func NewSnapshotRepository(client redis.UniversalClient, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{
		client: client,
		ttl:    ttl,
	}
}

func key(sessionID string) string { return keyPrefix + sessionID }

// Load reads and decodes the session's snapshot.
func (r *SnapshotRepository) Load(ctx context.Context, sessionID string) (domain.CartState, time.Time, error) {
	data, err := r.client.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CartState{}, time.Time{}, apperrors.NotFound("cart", sessionID)
		}
		return domain.CartState{}, time.Time{}, fmt.Errorf("redis get cart snapshot: %w", err)
	}

	state, updatedAt, err := domain.DecodeSnapshot(data)
	if err != nil {
		return domain.CartState{}, time.Time{}, fmt.Errorf("decode cart snapshot %s: %w", sessionID, err)
	}
	return state, updatedAt, nil
}

// Save encodes state and writes it with the configured TTL.
func (r *SnapshotRepository) Save(ctx context.Context, sessionID string, state domain.CartState) error {
	data, err := domain.EncodeSnapshot(state, time.Now())
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart snapshot: %w", err)
	}
	return nil
}

// Delete removes the session's snapshot.
func (r *SnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del cart snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
