package repository

import (
	"context"
	"errors"

	"resellhub-api/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStaleStatus is returned when a compare-and-set update loses the race:
// the feed's persisted status no longer matches the expected value.
var ErrStaleStatus = errors.New("feed status changed concurrently")

// FeedRepository defines sync feed data access methods.
type FeedRepository interface {
	// CreateFeed persists a newly created feed with its entry snapshot.
	CreateFeed(ctx context.Context, feed *model.SyncFeed) error

	// GetFeed retrieves a feed by id. Returns ErrNotFound if absent.
	GetFeed(ctx context.Context, id string) (*model.SyncFeed, error)

	// ListActiveFeeds returns all feeds in a non-terminal status.
	ListActiveFeeds(ctx context.Context) ([]*model.SyncFeed, error)

	// UpdateFeedCAS writes the feed's mutable fields if and only if the
	// persisted status still equals expected. Returns ErrStaleStatus when
	// the compare-and-set loses.
	UpdateFeedCAS(ctx context.Context, feed *model.SyncFeed, expected model.FeedStatus) error

	// AddLineResults appends per-ASIN outcomes for a feed.
	AddLineResults(ctx context.Context, feedID string, lines []model.FeedLineResult) error

	// GetLineResults returns all line results recorded for a feed.
	GetLineResults(ctx context.Context, feedID string) ([]model.FeedLineResult, error)

	// CountByStatus returns feed counts grouped by status.
	CountByStatus(ctx context.Context) (map[model.FeedStatus]int64, error)

	// Close closes the repository connection.
	Close() error
}

// QueueRepository defines sync queue data access methods.
type QueueRepository interface {
	// Enqueue inserts or replaces queue items, keyed by inventory item id.
	Enqueue(ctx context.Context, items []model.SyncQueueItem) error

	// Remove deletes queue items by queue item id.
	Remove(ctx context.Context, ids []string) error

	// RemoveByInventoryItem deletes the queue item for an inventory item.
	RemoveByInventoryItem(ctx context.Context, inventoryItemID string) error

	// List returns the current queue snapshot.
	List(ctx context.Context) ([]model.SyncQueueItem, error)

	// Count returns the number of queued items.
	Count(ctx context.Context) (int64, error)

	// Close closes the repository connection.
	Close() error
}
