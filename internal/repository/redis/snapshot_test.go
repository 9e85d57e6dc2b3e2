package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
)

func setupTestRedis(t *testing.T) (*SnapshotRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSnapshotRepository(client, 24*time.Hour), mr
}

func sampleState() domain.CartState {
	return domain.CartState{}.
		AddItem(domain.Product{ID: "1", Name: "Ottoman", Price: decimal.RequireFromString("149.50")}).
		AddItem(domain.Product{ID: "2", Name: "Cushion", Price: decimal.RequireFromString("25")}).
		AddItem(domain.Product{ID: "1", Name: "Ottoman", Price: decimal.RequireFromString("149.50")})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestSnapshotRepository_Load_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, _, err := repo.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSnapshotRepository_Load_Corrupt(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:s1", "{not json"))

	_, _, err := repo.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrCorruptSnapshot)
}

func TestSnapshotRepository_Load_Legacy(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:s1", `[{"id":3,"name":"Bench","price":80,"quantity":2}]`))

	state, _, err := repo.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.ItemCount())
	assert.True(t, decimal.NewFromInt(160).Equal(state.Subtotal()))
}

func TestSnapshotRepository_Load_BackendDown(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.Close()

	_, _, err := repo.Load(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Save / Delete
// ---------------------------------------------------------------------------

func TestSnapshotRepository_SaveLoad_RoundTrip(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()
	state := sampleState()

	require.NoError(t, repo.Save(ctx, "s1", state))

	got, _, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, len(state.Lines()), len(got.Lines()))
	for i, l := range state.Lines() {
		assert.Equal(t, l.ProductID, got.Lines()[i].ProductID)
		assert.Equal(t, l.Quantity, got.Lines()[i].Quantity)
	}
	assert.True(t, state.Subtotal().Equal(got.Subtotal()))
}

func TestSnapshotRepository_Save_SetsTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, repo.Save(context.Background(), "s1", sampleState()))

	assert.True(t, mr.Exists("cart:s1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:s1"))
}

func TestSnapshotRepository_Save_ExpiresAfterTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "s1", sampleState()))
	mr.FastForward(25 * time.Hour)

	_, _, err := repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSnapshotRepository_Save_EmptyCartWritesEnvelope(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, repo.Save(context.Background(), "s1", domain.CartState{}))

	raw, err := mr.Get("cart:s1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"version":1`)
	assert.Contains(t, raw, `"lines":[]`)
}

func TestSnapshotRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "s1", sampleState()))
	require.NoError(t, repo.Delete(ctx, "s1"))
	assert.False(t, mr.Exists("cart:s1"))

	assert.NoError(t, repo.Delete(ctx, "missing"))
}

func TestSnapshotRepository_Ping(t *testing.T) {
	repo, mr := setupTestRedis(t)
	assert.NoError(t, repo.Ping(context.Background()))

	mr.Close()
	assert.Error(t, repo.Ping(context.Background()))
}
