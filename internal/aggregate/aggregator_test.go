package aggregate_test

import (
	"testing"
	"time"

	"resellhub-api/internal/aggregate"
	"resellhub-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, asin, price string, qty int, added time.Time) model.SyncQueueItem {
	return model.SyncQueueItem{
		ID:              id,
		InventoryItemID: "inv-" + id,
		ASIN:            asin,
		DesiredPrice:    decimal.RequireFromString(price),
		DesiredQuantity: qty,
		AddedAt:         added,
	}
}

func TestAggregate_SumsQuantitiesPerASIN(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	result := aggregate.Aggregate([]model.SyncQueueItem{
		item("a", "B01X", "19.99", 1, now),
		item("b", "B01X", "19.99", 2, now.Add(time.Second)),
	})

	require.Len(t, result.Entries, 1)
	assert.Empty(t, result.Conflicts)

	entry := result.Entries[0]
	assert.Equal(t, "B01X", entry.ASIN)
	assert.Equal(t, 3, entry.Quantity)
	assert.True(t, entry.Price.Equal(decimal.RequireFromString("19.99")))
	assert.Len(t, entry.Items, 2)
}

func TestAggregate_DetectsPriceConflict(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	result := aggregate.Aggregate([]model.SyncQueueItem{
		item("a", "B01X", "19.99", 1, now),
		item("b", "B01X", "24.99", 1, now),
		item("c", "B02Y", "9.50", 5, now),
	})

	// The conflicting ASIN is excluded from entries entirely.
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "B02Y", result.Entries[0].ASIN)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, "B01X", conflict.ASIN)
	require.Len(t, conflict.Prices, 2)
	assert.True(t, conflict.Prices[0].Equal(decimal.RequireFromString("19.99")))
	assert.True(t, conflict.Prices[1].Equal(decimal.RequireFromString("24.99")))
	assert.Len(t, conflict.Items, 2)
}

func TestAggregate_EqualPricesDifferentExponents(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	// 19.99 and 19.990 are the same price, not a conflict.
	result := aggregate.Aggregate([]model.SyncQueueItem{
		item("a", "B01X", "19.99", 1, now),
		item("b", "B01X", "19.990", 1, now),
	})

	require.Len(t, result.Entries, 1)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, 2, result.Entries[0].Quantity)
}

func TestAggregate_DeterministicAcrossInputOrder(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	items := []model.SyncQueueItem{
		item("c", "B03Z", "5.00", 1, now.Add(2*time.Second)),
		item("a", "B01X", "19.99", 1, now),
		item("b", "B02Y", "9.50", 2, now.Add(time.Second)),
	}
	reversed := []model.SyncQueueItem{items[2], items[1], items[0]}

	first := aggregate.Aggregate(items)
	second := aggregate.Aggregate(reversed)

	require.Equal(t, len(first.Entries), len(second.Entries))
	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].ASIN, second.Entries[i].ASIN)
		assert.Equal(t, first.Entries[i].Quantity, second.Entries[i].Quantity)
	}

	// Entries come out sorted by ASIN.
	assert.Equal(t, "B01X", first.Entries[0].ASIN)
	assert.Equal(t, "B02Y", first.Entries[1].ASIN)
	assert.Equal(t, "B03Z", first.Entries[2].ASIN)
}

func TestAggregate_ItemsOrderedByAddedAtWithinGroup(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	result := aggregate.Aggregate([]model.SyncQueueItem{
		item("b", "B01X", "19.99", 1, now.Add(time.Minute)),
		item("a", "B01X", "19.99", 1, now),
	})

	require.Len(t, result.Entries, 1)
	require.Len(t, result.Entries[0].Items, 2)
	assert.Equal(t, "a", result.Entries[0].Items[0].ID)
	assert.Equal(t, "b", result.Entries[0].Items[1].ID)
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	result := aggregate.Aggregate(nil)
	assert.Empty(t, result.Entries)
	assert.Empty(t, result.Conflicts)
}
