// Package amazon defines the Amazon Feeds/Pricing client contract used by
// the sync orchestrator, the real SP-API implementation, and the dry-run
// simulator.
package amazon

import (
	"context"
	"errors"

	"resellhub-api/internal/model"

	"github.com/shopspring/decimal"
)

// ProcessingStatus is Amazon's reported status for a submitted feed.
type ProcessingStatus string

const (
	ProcessingInProgress ProcessingStatus = "IN_PROGRESS"
	ProcessingDone       ProcessingStatus = "DONE"
	ProcessingFatal      ProcessingStatus = "FATAL"
)

// LineResult is one ASIN's outcome within a processed feed.
type LineResult struct {
	ASIN    string            `json:"asin"`
	Outcome model.LineOutcome `json:"outcome"`
	Message string            `json:"message,omitempty"`
}

// FeedResult is the processing report for one submitted feed.
type FeedResult struct {
	Status ProcessingStatus `json:"status"`
	Lines  []LineResult     `json:"lines,omitempty"`
}

// FeedClient submits feeds and reports processing outcomes and live prices.
// Implementations: SPAPIClient (real) and DryRunSimulator.
type FeedClient interface {
	// SubmitPriceFeed submits price changes for the entries and returns the
	// Amazon feed document id.
	SubmitPriceFeed(ctx context.Context, entries []model.AggregatedEntry) (string, error)

	// SubmitQuantityFeed submits stock quantity changes for the entries.
	SubmitQuantityFeed(ctx context.Context, entries []model.AggregatedEntry) (string, error)

	// SubmitCombinedFeed submits price and quantity together (legacy
	// single-phase mode).
	SubmitCombinedFeed(ctx context.Context, entries []model.AggregatedEntry) (string, error)

	// GetFeedStatus reports processing progress and, once DONE or FATAL,
	// per-line results.
	GetFeedStatus(ctx context.Context, feedID string) (*FeedResult, error)

	// GetLivePrice returns the currently live listing price for an ASIN.
	GetLivePrice(ctx context.Context, asin string) (decimal.Decimal, error)
}

// FatalError marks an unrecoverable client failure: malformed payload,
// authentication rejection, or an Amazon-reported permanent error. Anything
// that is not fatal is treated as transient and retried on the next poll.
type FatalError struct {
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError.
func Fatal(message string, err error) *FatalError {
	return &FatalError{Message: message, Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
