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

func newFeedRepo(t *testing.T) *repository.SQLiteFeedRepository {
	t.Helper()
	repo, err := repository.NewSQLiteFeedRepository(filepath.Join(t.TempDir(), "feeds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newFeed(id string, status model.FeedStatus) *model.SyncFeed {
	now := time.Now().UTC()
	return &model.SyncFeed{
		ID:     id,
		Status: status,
		Entries: []model.AggregatedEntry{{
			ASIN:     "B01X",
			Quantity: 3,
			Price:    decimal.RequireFromString("19.99"),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteFeedRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFeedRepo(t)

	feed := newFeed("feed-1", model.StatusPricePending)
	require.NoError(t, repo.CreateFeed(ctx, feed))

	got, err := repo.GetFeed(ctx, "feed-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPricePending, got.Status)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "B01X", got.Entries[0].ASIN)
	assert.Equal(t, 3, got.Entries[0].Quantity)
	assert.True(t, got.Entries[0].Price.Equal(decimal.RequireFromString("19.99")))
}

func TestSQLiteFeedRepository_GetMissing(t *testing.T) {
	t.Parallel()
	repo := newFeedRepo(t)

	_, err := repo.GetFeed(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSQLiteFeedRepository_UpdateFeedCAS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFeedRepo(t)

	feed := newFeed("feed-1", model.StatusPricePending)
	require.NoError(t, repo.CreateFeed(ctx, feed))

	feed.Status = model.StatusPriceSubmitted
	feed.PriceFeedID = "amzn-123"
	require.NoError(t, repo.UpdateFeedCAS(ctx, feed, model.StatusPricePending))

	got, err := repo.GetFeed(ctx, "feed-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPriceSubmitted, got.Status)
	assert.Equal(t, "amzn-123", got.PriceFeedID)
}

func TestSQLiteFeedRepository_UpdateFeedCAS_StaleStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFeedRepo(t)

	feed := newFeed("feed-1", model.StatusPricePending)
	require.NoError(t, repo.CreateFeed(ctx, feed))

	// First writer wins.
	winner := newFeed("feed-1", model.StatusPriceSubmitted)
	require.NoError(t, repo.UpdateFeedCAS(ctx, winner, model.StatusPricePending))

	// Second writer expected the old status and must lose.
	loser := newFeed("feed-1", model.StatusCancelled)
	err := repo.UpdateFeedCAS(ctx, loser, model.StatusPricePending)
	assert.ErrorIs(t, err, repository.ErrStaleStatus)

	got, err := repo.GetFeed(ctx, "feed-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPriceSubmitted, got.Status)
}

func TestSQLiteFeedRepository_ListActiveFeeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFeedRepo(t)

	require.NoError(t, repo.CreateFeed(ctx, newFeed("active-1", model.StatusPricePending)))
	require.NoError(t, repo.CreateFeed(ctx, newFeed("active-2", model.StatusQuantityProcessing)))
	require.NoError(t, repo.CreateFeed(ctx, newFeed("done-1", model.StatusCompleted)))
	require.NoError(t, repo.CreateFeed(ctx, newFeed("dead-1", model.StatusCancelled)))

	feeds, err := repo.ListActiveFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 2)

	ids := []string{feeds[0].ID, feeds[1].ID}
	assert.Contains(t, ids, "active-1")
	assert.Contains(t, ids, "active-2")
}

func TestSQLiteFeedRepository_LineResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFeedRepo(t)

	feed := newFeed("feed-1", model.StatusPriceProcessing)
	require.NoError(t, repo.CreateFeed(ctx, feed))

	lines := []model.FeedLineResult{
		{FeedID: "feed-1", ASIN: "B01X", Phase: model.PhasePrice, Outcome: model.OutcomeSuccess},
		{FeedID: "feed-1", ASIN: "B02Y", Phase: model.PhasePrice, Outcome: model.OutcomeError, Message: "listing suppressed"},
	}
	require.NoError(t, repo.AddLineResults(ctx, "feed-1", lines))

	got, err := repo.GetLineResults(ctx, "feed-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B01X", got[0].ASIN)
	assert.Equal(t, model.OutcomeSuccess, got[0].Outcome)
	assert.Equal(t, "B02Y", got[1].ASIN)
	assert.Equal(t, "listing suppressed", got[1].Message)

	// Empty batches are a no-op.
	require.NoError(t, repo.AddLineResults(ctx, "feed-1", nil))
}

func TestSQLiteFeedRepository_CountByStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newFeedRepo(t)

	require.NoError(t, repo.CreateFeed(ctx, newFeed("a", model.StatusPricePending)))
	require.NoError(t, repo.CreateFeed(ctx, newFeed("b", model.StatusPricePending)))
	require.NoError(t, repo.CreateFeed(ctx, newFeed("c", model.StatusCompleted)))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.StatusPricePending])
	assert.Equal(t, int64(1), counts[model.StatusCompleted])
}
