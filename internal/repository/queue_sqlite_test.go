package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"resellhub-api/internal/model"
	"resellhub-api/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueRepo(t *testing.T) *repository.SQLiteQueueRepository {
	t.Helper()
	repo, err := repository.NewSQLiteQueueRepository(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func queueItem(id, invID, asin, price string, qty int) model.SyncQueueItem {
	return model.SyncQueueItem{
		ID:              id,
		InventoryItemID: invID,
		ASIN:            asin,
		DesiredPrice:    decimal.RequireFromString(price),
		DesiredQuantity: qty,
		AddedAt:         time.Now().UTC(),
	}
}

func TestSQLiteQueueRepository_EnqueueAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newQueueRepo(t)

	items := []model.SyncQueueItem{
		queueItem("q1", "inv-1", "B01X", "19.99", 1),
		queueItem("q2", "inv-2", "B02Y", "9.50", 2),
	}
	require.NoError(t, repo.Enqueue(ctx, items))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].DesiredPrice.Equal(decimal.RequireFromString("19.99")))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteQueueRepository_RemarkReplacesExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newQueueRepo(t)

	require.NoError(t, repo.Enqueue(ctx, []model.SyncQueueItem{
		queueItem("q1", "inv-1", "B01X", "19.99", 1),
	}))
	// Same inventory item marked again with a new price.
	require.NoError(t, repo.Enqueue(ctx, []model.SyncQueueItem{
		queueItem("q2", "inv-1", "B01X", "17.49", 4),
	}))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].DesiredPrice.Equal(decimal.RequireFromString("17.49")))
	assert.Equal(t, 4, got[0].DesiredQuantity)
}

func TestSQLiteQueueRepository_Remove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newQueueRepo(t)

	require.NoError(t, repo.Enqueue(ctx, []model.SyncQueueItem{
		queueItem("q1", "inv-1", "B01X", "19.99", 1),
		queueItem("q2", "inv-2", "B02Y", "9.50", 2),
	}))

	require.NoError(t, repo.Remove(ctx, []string{"q1"}))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q2", got[0].ID)
}

func TestSQLiteQueueRepository_RemoveByInventoryItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newQueueRepo(t)

	require.NoError(t, repo.Enqueue(ctx, []model.SyncQueueItem{
		queueItem("q1", "inv-1", "B01X", "19.99", 1),
	}))

	require.NoError(t, repo.RemoveByInventoryItem(ctx, "inv-1"))
	assert.ErrorIs(t, repo.RemoveByInventoryItem(ctx, "inv-1"), repository.ErrNotFound)
}
