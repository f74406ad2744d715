package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resellhub-api/internal/aggregate"
	"resellhub-api/internal/cache"
	"resellhub-api/internal/model"
	"resellhub-api/internal/repository"
	"resellhub-api/pkg/uid"

	"github.com/shopspring/decimal"
)

// MarkRequest is one "mark this item for sync" action from the UI.
type MarkRequest struct {
	InventoryItemID string          `json:"inventory_item_id"`
	ASIN            string          `json:"asin"`
	DesiredPrice    decimal.Decimal `json:"desired_price"`
	DesiredQuantity int             `json:"desired_quantity"`
}

// QueueService handles sync queue business logic. If a Redis mark buffer is
// set, marks are buffered write-behind and flushed to the database in
// batches; reads that need a complete snapshot drain the buffer first.
type QueueService struct {
	repo   repository.QueueRepository
	buffer *cache.RedisMarkBuffer
}

// NewQueueService creates a new queue service.
// Returns nil if repo is nil (required dependency).
func NewQueueService(repo repository.QueueRepository) *QueueService {
	if repo == nil {
		return nil
	}
	return &QueueService{repo: repo}
}

// SetBuffer sets the Redis buffer for write-behind marking.
func (s *QueueService) SetBuffer(buffer *cache.RedisMarkBuffer) {
	s.buffer = buffer
}

// Mark queues an item for sync. Re-marking an already queued item replaces
// its desired price and quantity.
func (s *QueueService) Mark(ctx context.Context, req MarkRequest) (*model.SyncQueueItem, error) {
	if req.InventoryItemID == "" {
		return nil, fmt.Errorf("inventory_item_id is required")
	}
	if req.ASIN == "" {
		return nil, fmt.Errorf("asin is required")
	}
	if req.DesiredPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("desired_price must be positive")
	}
	if req.DesiredQuantity <= 0 {
		req.DesiredQuantity = 1
	}

	item := model.SyncQueueItem{
		ID:              uid.New(),
		InventoryItemID: req.InventoryItemID,
		ASIN:            req.ASIN,
		DesiredPrice:    req.DesiredPrice,
		DesiredQuantity: req.DesiredQuantity,
		AddedAt:         time.Now().UTC(),
	}

	if s.buffer != nil {
		if err := s.buffer.Add(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to buffer queue mark: %w", err)
		}
		return &item, nil
	}

	if err := s.repo.Enqueue(ctx, []model.SyncQueueItem{item}); err != nil {
		return nil, err
	}
	return &item, nil
}

// Unmark removes an item from the queue, whether it is still buffered or
// already persisted.
func (s *QueueService) Unmark(ctx context.Context, inventoryItemID string) error {
	if s.buffer != nil {
		if err := s.buffer.Remove(ctx, inventoryItemID); err != nil {
			return fmt.Errorf("failed to remove buffered mark: %w", err)
		}
	}
	err := s.repo.RemoveByInventoryItem(ctx, inventoryItemID)
	if errors.Is(err, repository.ErrNotFound) && s.buffer != nil {
		// The mark only ever existed in the buffer.
		return nil
	}
	return err
}

// Snapshot drains the buffer and returns the complete queue.
func (s *QueueService) Snapshot(ctx context.Context) ([]model.SyncQueueItem, error) {
	if s.buffer != nil {
		if err := s.buffer.Flush(ctx); err != nil {
			return nil, fmt.Errorf("failed to flush mark buffer: %w", err)
		}
	}
	return s.repo.List(ctx)
}

// Preview aggregates the current queue without creating a feed, so callers
// can surface price conflicts before submission.
func (s *QueueService) Preview(ctx context.Context) (*aggregate.Result, error) {
	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	result := aggregate.Aggregate(items)
	return &result, nil
}

// Count returns queued items plus any not-yet-flushed buffered marks.
func (s *QueueService) Count(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if s.buffer != nil {
		buffered, err := s.buffer.Count(ctx)
		if err != nil {
			return 0, err
		}
		count += buffered
	}
	return count, nil
}

// CreateFlushFunc creates a flush function for the Redis mark buffer.
func CreateFlushFunc(repo repository.QueueRepository) cache.FlushFunc {
	return func(ctx context.Context, items []model.SyncQueueItem) error {
		return repo.Enqueue(ctx, items)
	}
}
