package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"resellhub-api/internal/model"

	"github.com/shopspring/decimal"
)

// MySQLQueueRepository implements QueueRepository using MySQL.
type MySQLQueueRepository struct {
	db *sql.DB
}

// NewMySQLQueueRepository creates a new MySQL queue repository.
func NewMySQLQueueRepository(db *sql.DB) (*MySQLQueueRepository, error) {
	query := `
	CREATE TABLE IF NOT EXISTS sync_queue (
		id VARCHAR(36) PRIMARY KEY,
		inventory_item_id VARCHAR(64) NOT NULL UNIQUE,
		asin VARCHAR(16) NOT NULL,
		desired_price DECIMAL(12,2) NOT NULL,
		desired_quantity INT NOT NULL DEFAULT 1,
		added_at DATETIME(6) NOT NULL,
		INDEX idx_sync_queue_asin (asin)
	)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	log.Printf("[MySQLQueueRepository] Initialized")
	return &MySQLQueueRepository{db: db}, nil
}

// Enqueue inserts or replaces queue items, keyed by inventory item id.
func (r *MySQLQueueRepository) Enqueue(ctx context.Context, items []model.SyncQueueItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_queue (id, inventory_item_id, asin, desired_price, desired_quantity, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			asin = VALUES(asin),
			desired_price = VALUES(desired_price),
			desired_quantity = VALUES(desired_quantity),
			added_at = VALUES(added_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.ExecContext(ctx, item.ID, item.InventoryItemID, item.ASIN,
			item.DesiredPrice.String(), item.DesiredQuantity, item.AddedAt)
		if err != nil {
			return fmt.Errorf("failed to enqueue item %s: %w", item.InventoryItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Remove deletes queue items by queue item id.
func (r *MySQLQueueRepository) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `DELETE FROM sync_queue WHERE id IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove queue items: %w", err)
	}
	return nil
}

// RemoveByInventoryItem deletes the queue item for an inventory item.
func (r *MySQLQueueRepository) RemoveByInventoryItem(ctx context.Context, inventoryItemID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE inventory_item_id = ?`, inventoryItemID)
	if err != nil {
		return fmt.Errorf("failed to remove queue item: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the current queue snapshot ordered by insertion time.
func (r *MySQLQueueRepository) List(ctx context.Context) ([]model.SyncQueueItem, error) {
	query := `SELECT id, inventory_item_id, asin, desired_price, desired_quantity, added_at
		FROM sync_queue ORDER BY added_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var items []model.SyncQueueItem
	for rows.Next() {
		var item model.SyncQueueItem
		var price string
		if err := rows.Scan(&item.ID, &item.InventoryItemID, &item.ASIN, &price, &item.DesiredQuantity, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.DesiredPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns the number of queued items.
func (r *MySQLQueueRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return count, nil
}

// Close is a no-op: the MySQL connection is owned by the caller.
func (r *MySQLQueueRepository) Close() error {
	return nil
}

// Ensure MySQLQueueRepository implements QueueRepository
var _ QueueRepository = (*MySQLQueueRepository)(nil)
