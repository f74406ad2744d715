package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"resellhub-api/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteQueueRepository implements QueueRepository using SQLite.
type SQLiteQueueRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteQueueRepository creates a new SQLite queue repository.
func NewSQLiteQueueRepository(dbPath string) (*SQLiteQueueRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createQueueTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteQueueRepository] Initialized with database: %s", dbPath)
	return &SQLiteQueueRepository{db: db}, nil
}

func createQueueTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		inventory_item_id TEXT NOT NULL UNIQUE,
		asin TEXT NOT NULL,
		desired_price TEXT NOT NULL,
		desired_quantity INTEGER NOT NULL DEFAULT 1,
		added_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_asin ON sync_queue(asin);
	`
	_, err := db.Exec(query)
	return err
}

// Enqueue inserts or replaces queue items, keyed by inventory item id. An
// item re-marked with a new price overwrites its previous request.
func (r *SQLiteQueueRepository) Enqueue(ctx context.Context, items []model.SyncQueueItem) error {
	if len(items) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_queue (id, inventory_item_id, asin, desired_price, desired_quantity, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(inventory_item_id) DO UPDATE SET
			asin = excluded.asin,
			desired_price = excluded.desired_price,
			desired_quantity = excluded.desired_quantity,
			added_at = excluded.added_at`)
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
func (r *SQLiteQueueRepository) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

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
func (r *SQLiteQueueRepository) RemoveByInventoryItem(ctx context.Context, inventoryItemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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
func (r *SQLiteQueueRepository) List(ctx context.Context) ([]model.SyncQueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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
func (r *SQLiteQueueRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (r *SQLiteQueueRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteQueueRepository implements QueueRepository
var _ QueueRepository = (*SQLiteQueueRepository)(nil)
