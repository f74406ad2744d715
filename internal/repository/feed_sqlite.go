package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"resellhub-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteFeedRepository implements FeedRepository using SQLite.
// Thread-safe with WAL mode; status updates are compare-and-set via a
// conditional UPDATE so concurrent pollers cannot double-advance a feed.
type SQLiteFeedRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteFeedRepository creates a new SQLite feed repository.
// dbPath is the path to the SQLite database file (e.g., "./data/feeds.db")
func NewSQLiteFeedRepository(dbPath string) (*SQLiteFeedRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createFeedTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteFeedRepository] Initialized with database: %s", dbPath)
	return &SQLiteFeedRepository{db: db}, nil
}

func createFeedTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sync_feeds (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		is_dry_run INTEGER NOT NULL DEFAULT 0,
		single_phase INTEGER NOT NULL DEFAULT 0,
		entries_json TEXT NOT NULL,
		price_feed_id TEXT NOT NULL DEFAULT '',
		quantity_feed_id TEXT NOT NULL DEFAULT '',
		poll_count INTEGER NOT NULL DEFAULT 0,
		transient_errors INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_feeds_status ON sync_feeds(status);
	CREATE TABLE IF NOT EXISTS feed_line_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feed_id TEXT NOT NULL,
		asin TEXT NOT NULL,
		phase TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_line_results_feed ON feed_line_results(feed_id);
	`
	_, err := db.Exec(query)
	return err
}

// CreateFeed persists a newly created feed with its entry snapshot.
func (r *SQLiteFeedRepository) CreateFeed(ctx context.Context, feed *model.SyncFeed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entriesJSON, err := json.Marshal(feed.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode feed entries: %w", err)
	}

	query := `
		INSERT INTO sync_feeds (
			id, status, is_dry_run, single_phase, entries_json,
			price_feed_id, quantity_feed_id, poll_count, transient_errors,
			success_count, warning_count, error_count, error_message,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		feed.ID, string(feed.Status), feed.IsDryRun, feed.SinglePhase, string(entriesJSON),
		feed.PriceFeedID, feed.QuantityFeedID, feed.PollCount, feed.TransientErrors,
		feed.SuccessCount, feed.WarningCount, feed.ErrorCount, feed.ErrorMessage,
		feed.CreatedAt, feed.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feed: %w", err)
	}
	return nil
}

const feedColumns = `id, status, is_dry_run, single_phase, entries_json,
	price_feed_id, quantity_feed_id, poll_count, transient_errors,
	success_count, warning_count, error_count, error_message,
	created_at, updated_at`

func scanFeed(row interface{ Scan(...interface{}) error }) (*model.SyncFeed, error) {
	var feed model.SyncFeed
	var status, entriesJSON string

	err := row.Scan(&feed.ID, &status, &feed.IsDryRun, &feed.SinglePhase, &entriesJSON,
		&feed.PriceFeedID, &feed.QuantityFeedID, &feed.PollCount, &feed.TransientErrors,
		&feed.SuccessCount, &feed.WarningCount, &feed.ErrorCount, &feed.ErrorMessage,
		&feed.CreatedAt, &feed.UpdatedAt)
	if err != nil {
		return nil, err
	}

	feed.Status = model.FeedStatus(status)
	if err := json.Unmarshal([]byte(entriesJSON), &feed.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode feed entries: %w", err)
	}
	return &feed, nil
}

// GetFeed retrieves a feed by id.
func (r *SQLiteFeedRepository) GetFeed(ctx context.Context, id string) (*model.SyncFeed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT ` + feedColumns + ` FROM sync_feeds WHERE id = ?`
	feed, err := scanFeed(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

// ListActiveFeeds returns all feeds in a non-terminal status.
func (r *SQLiteFeedRepository) ListActiveFeeds(ctx context.Context) ([]*model.SyncFeed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT ` + feedColumns + ` FROM sync_feeds
		WHERE status NOT IN (?, ?, ?, ?, ?)
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query,
		string(model.StatusCompleted), string(model.StatusVerified),
		string(model.StatusVerificationFailed), string(model.StatusFailed),
		string(model.StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("failed to list active feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*model.SyncFeed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

// UpdateFeedCAS writes the feed's mutable fields guarded by the expected
// previous status.
func (r *SQLiteFeedRepository) UpdateFeedCAS(ctx context.Context, feed *model.SyncFeed, expected model.FeedStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	feed.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sync_feeds SET
			status = ?, price_feed_id = ?, quantity_feed_id = ?,
			poll_count = ?, transient_errors = ?,
			success_count = ?, warning_count = ?, error_count = ?,
			error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(feed.Status), feed.PriceFeedID, feed.QuantityFeedID,
		feed.PollCount, feed.TransientErrors,
		feed.SuccessCount, feed.WarningCount, feed.ErrorCount,
		feed.ErrorMessage, feed.UpdatedAt,
		feed.ID, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// AddLineResults appends per-ASIN outcomes for a feed.
func (r *SQLiteFeedRepository) AddLineResults(ctx context.Context, feedID string, lines []model.FeedLineResult) error {
	if len(lines) == 0 {
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
		INSERT INTO feed_line_results (feed_id, asin, phase, outcome, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, line := range lines {
		_, err := stmt.ExecContext(ctx, feedID, line.ASIN, string(line.Phase), string(line.Outcome), line.Message, now)
		if err != nil {
			return fmt.Errorf("failed to insert line result for %s: %w", line.ASIN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetLineResults returns all line results recorded for a feed.
func (r *SQLiteFeedRepository) GetLineResults(ctx context.Context, feedID string) ([]model.FeedLineResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT id, feed_id, asin, phase, outcome, message, created_at
		FROM feed_line_results WHERE feed_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get line results: %w", err)
	}
	defer rows.Close()

	var lines []model.FeedLineResult
	for rows.Next() {
		var line model.FeedLineResult
		var phase, outcome string
		if err := rows.Scan(&line.ID, &line.FeedID, &line.ASIN, &phase, &outcome, &line.Message, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan line result: %w", err)
		}
		line.Phase = model.FeedPhase(phase)
		line.Outcome = model.LineOutcome(outcome)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// CountByStatus returns feed counts grouped by status.
func (r *SQLiteFeedRepository) CountByStatus(ctx context.Context) (map[model.FeedStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_feeds GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count feeds: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.FeedStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[model.FeedStatus(status)] = count
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (r *SQLiteFeedRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteFeedRepository implements FeedRepository
var _ FeedRepository = (*SQLiteFeedRepository)(nil)
