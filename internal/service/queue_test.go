package service_test

import (
	"context"
	"testing"

	"resellhub-api/internal/repository"
	"resellhub-api/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueService_MarkValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, queue := newRepos(t)
	svc := service.NewQueueService(queue)

	_, err := svc.Mark(ctx, service.MarkRequest{ASIN: "B01X", DesiredPrice: decimal.RequireFromString("19.99")})
	assert.ErrorContains(t, err, "inventory_item_id")

	_, err = svc.Mark(ctx, service.MarkRequest{InventoryItemID: "inv-1", DesiredPrice: decimal.RequireFromString("19.99")})
	assert.ErrorContains(t, err, "asin")

	_, err = svc.Mark(ctx, service.MarkRequest{InventoryItemID: "inv-1", ASIN: "B01X"})
	assert.ErrorContains(t, err, "desired_price")

	// Quantity defaults to 1 when omitted.
	item, err := svc.Mark(ctx, service.MarkRequest{
		InventoryItemID: "inv-1",
		ASIN:            "B01X",
		DesiredPrice:    decimal.RequireFromString("19.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, item.DesiredQuantity)
	assert.NotEmpty(t, item.ID)
}

func TestQueueService_MarkUnmarkSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, queue := newRepos(t)
	svc := service.NewQueueService(queue)

	_, err := svc.Mark(ctx, service.MarkRequest{
		InventoryItemID: "inv-1", ASIN: "B01X",
		DesiredPrice: decimal.RequireFromString("19.99"), DesiredQuantity: 2,
	})
	require.NoError(t, err)
	_, err = svc.Mark(ctx, service.MarkRequest{
		InventoryItemID: "inv-2", ASIN: "B02Y",
		DesiredPrice: decimal.RequireFromString("9.50"), DesiredQuantity: 1,
	})
	require.NoError(t, err)

	items, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, svc.Unmark(ctx, "inv-1"))
	assert.ErrorIs(t, svc.Unmark(ctx, "inv-1"), repository.ErrNotFound)

	items, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "inv-2", items[0].InventoryItemID)
}

func TestQueueService_RemarkReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, queue := newRepos(t)
	svc := service.NewQueueService(queue)

	for _, price := range []string{"19.99", "17.49"} {
		_, err := svc.Mark(ctx, service.MarkRequest{
			InventoryItemID: "inv-1", ASIN: "B01X",
			DesiredPrice: decimal.RequireFromString(price), DesiredQuantity: 1,
		})
		require.NoError(t, err)
	}

	items, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].DesiredPrice.Equal(decimal.RequireFromString("17.49")))
}

func TestQueueService_PreviewSurfacesConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, queue := newRepos(t)
	svc := service.NewQueueService(queue)

	// Two different inventory items, same ASIN, different price.
	_, err := svc.Mark(ctx, service.MarkRequest{
		InventoryItemID: "inv-1", ASIN: "B01X",
		DesiredPrice: decimal.RequireFromString("19.99"), DesiredQuantity: 1,
	})
	require.NoError(t, err)
	_, err = svc.Mark(ctx, service.MarkRequest{
		InventoryItemID: "inv-2", ASIN: "B01X",
		DesiredPrice: decimal.RequireFromString("24.99"), DesiredQuantity: 1,
	})
	require.NoError(t, err)

	result, err := svc.Preview(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "B01X", result.Conflicts[0].ASIN)
}
