package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyncQueueItem is one inventory item's pending price/quantity change.
// Created when a user marks an item for sync, removed when the item is
// included in a submitted feed.
type SyncQueueItem struct {
	ID              string          `json:"id"`
	InventoryItemID string          `json:"inventory_item_id"`
	ASIN            string          `json:"asin"`
	DesiredPrice    decimal.Decimal `json:"desired_price"`
	DesiredQuantity int             `json:"desired_quantity"`
	AddedAt         time.Time       `json:"added_at"`
}

// AggregatedEntry is one ASIN's consolidated request: quantity is the sum
// over all queued items sharing the ASIN, price is the single agreed value.
// Derived on every aggregation pass; only persisted as part of a feed
// snapshot.
type AggregatedEntry struct {
	ASIN     string          `json:"asin"`
	Items    []SyncQueueItem `json:"items"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// PriceConflict reports queued items that share an ASIN but disagree on
// desired price. The ASIN is excluded from aggregation until the user picks
// one price or edits the items.
type PriceConflict struct {
	ASIN   string            `json:"asin"`
	Prices []decimal.Decimal `json:"prices"`
	Items  []SyncQueueItem   `json:"items"`
}
