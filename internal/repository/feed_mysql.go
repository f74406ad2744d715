package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"resellhub-api/internal/model"
)

// MySQLFeedRepository implements FeedRepository using MySQL. The connection
// is shared with the rest of the back-office schema and owned by the caller.
type MySQLFeedRepository struct {
	db *sql.DB
}

// NewMySQLFeedRepository creates a new MySQL feed repository.
func NewMySQLFeedRepository(db *sql.DB) (*MySQLFeedRepository, error) {
	if err := createMySQLFeedTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	log.Printf("[MySQLFeedRepository] Initialized")
	return &MySQLFeedRepository{db: db}, nil
}

func createMySQLFeedTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sync_feeds (
			id VARCHAR(36) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			is_dry_run TINYINT(1) NOT NULL DEFAULT 0,
			single_phase TINYINT(1) NOT NULL DEFAULT 0,
			entries_json MEDIUMTEXT NOT NULL,
			price_feed_id VARCHAR(64) NOT NULL DEFAULT '',
			quantity_feed_id VARCHAR(64) NOT NULL DEFAULT '',
			poll_count INT NOT NULL DEFAULT 0,
			transient_errors INT NOT NULL DEFAULT 0,
			success_count INT NOT NULL DEFAULT 0,
			warning_count INT NOT NULL DEFAULT 0,
			error_count INT NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			INDEX idx_sync_feeds_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS feed_line_results (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			feed_id VARCHAR(36) NOT NULL,
			asin VARCHAR(16) NOT NULL,
			phase VARCHAR(16) NOT NULL,
			outcome VARCHAR(16) NOT NULL,
			message TEXT,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_line_results_feed (feed_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateFeed persists a newly created feed with its entry snapshot.
func (r *MySQLFeedRepository) CreateFeed(ctx context.Context, feed *model.SyncFeed) error {
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

// GetFeed retrieves a feed by id.
func (r *MySQLFeedRepository) GetFeed(ctx context.Context, id string) (*model.SyncFeed, error) {
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
func (r *MySQLFeedRepository) ListActiveFeeds(ctx context.Context) ([]*model.SyncFeed, error) {
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
func (r *MySQLFeedRepository) UpdateFeedCAS(ctx context.Context, feed *model.SyncFeed, expected model.FeedStatus) error {
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
func (r *MySQLFeedRepository) AddLineResults(ctx context.Context, feedID string, lines []model.FeedLineResult) error {
	if len(lines) == 0 {
		return nil
	}

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
func (r *MySQLFeedRepository) GetLineResults(ctx context.Context, feedID string) ([]model.FeedLineResult, error) {
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
func (r *MySQLFeedRepository) CountByStatus(ctx context.Context) (map[model.FeedStatus]int64, error) {
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

// Close is a no-op: the MySQL connection is owned by the caller.
func (r *MySQLFeedRepository) Close() error {
	return nil
}

// Ensure MySQLFeedRepository implements FeedRepository
var _ FeedRepository = (*MySQLFeedRepository)(nil)
