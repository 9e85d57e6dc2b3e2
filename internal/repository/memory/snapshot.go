// Package memory keeps encoded cart snapshots in process memory. It backs
// PERSISTENCE_BACKEND=memory for local runs and the HTTP tests; nothing
// survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
)

type SnapshotRepository struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{data: make(map[string][]byte)}
}

func (r *SnapshotRepository) Load(_ context.Context, sessionID string) (domain.CartState, time.Time, error) {
	r.mu.RLock()
	data, ok := r.data[sessionID]
	r.mu.RUnlock()
	if !ok {
		return domain.CartState{}, time.Time{}, apperrors.NotFound("cart", sessionID)
	}

	state, updatedAt, err := domain.DecodeSnapshot(data)
	if err != nil {
		return domain.CartState{}, time.Time{}, fmt.Errorf("decode cart snapshot %s: %w", sessionID, err)
	}
	return state, updatedAt, nil
}

// Save stores the encoded envelope, so Load goes through the same codec as
// the durable backends.
func (r *SnapshotRepository) Save(_ context.Context, sessionID string, state domain.CartState) error {
	data, err := domain.EncodeSnapshot(state, time.Now())
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.data[sessionID] = data
	r.mu.Unlock()
	return nil
}

func (r *SnapshotRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.data, sessionID)
	r.mu.Unlock()
	return nil
}

func (r *SnapshotRepository) Ping(context.Context) error { return nil }

// PutRaw stores an already-encoded payload, e.g. a legacy or corrupt one.
func (r *SnapshotRepository) PutRaw(sessionID string, payload []byte) {
	r.mu.Lock()
	r.data[sessionID] = append([]byte(nil), payload...)
	r.mu.Unlock()
}

// Raw returns the stored payload for sessionID.
func (r *SnapshotRepository) Raw(sessionID string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.data[sessionID]
	return data, ok
}
