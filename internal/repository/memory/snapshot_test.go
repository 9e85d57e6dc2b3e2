package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
)

func TestSnapshotRepository_RoundTrip(t *testing.T) {
	repo := NewSnapshotRepository()
	ctx := context.Background()

	state := domain.CartState{}.
		AddItem(domain.Product{ID: "p1", Price: decimal.NewFromInt(10)}).
		AddItem(domain.Product{ID: "p2", Price: decimal.NewFromInt(25)})
	require.NoError(t, repo.Save(ctx, "s1", state))

	got, updatedAt, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.LineCount())
	assert.WithinDuration(t, time.Now(), updatedAt, 5*time.Second)
	assert.True(t, decimal.NewFromInt(35).Equal(got.Subtotal()))

	raw, ok := repo.Raw("s1")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"version":1`)
}

func TestSnapshotRepository_NotFound(t *testing.T) {
	_, _, err := NewSnapshotRepository().Load(context.Background(), "s1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSnapshotRepository_CorruptPayload(t *testing.T) {
	repo := NewSnapshotRepository()
	repo.PutRaw("s1", []byte("garbage"))

	_, _, err := repo.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrCorruptSnapshot)
}

func TestSnapshotRepository_Delete(t *testing.T) {
	repo := NewSnapshotRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "s1", domain.CartState{}))
	require.NoError(t, repo.Delete(ctx, "s1"))

	_, _, err := repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSnapshotRepository_ConcurrentAccess(t *testing.T) {
	repo := NewSnapshotRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Save(ctx, "s1", domain.CartState{})
			_, _, _ = repo.Load(ctx, "s1")
		}()
	}
	wg.Wait()

	_, _, err := repo.Load(ctx, "s1")
	assert.NoError(t, err)
}
