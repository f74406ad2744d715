package model

import "time"

// FeedStatus is the lifecycle status of a SyncFeed. Two-phase feeds walk
// the price_* chain, then the quantity_* chain. Single-phase feeds use the
// legacy pending→submitted→processing→done→done_verifying→verified chain.
type FeedStatus string

const (
	// Two-phase statuses.
	StatusPricePending       FeedStatus = "price_pending"
	StatusPriceSubmitted     FeedStatus = "price_submitted"
	StatusPriceProcessing    FeedStatus = "price_processing"
	StatusPriceVerifying     FeedStatus = "price_verifying"
	StatusPriceVerified      FeedStatus = "price_verified"
	StatusQuantityPending    FeedStatus = "quantity_pending"
	StatusQuantitySubmitted  FeedStatus = "quantity_submitted"
	StatusQuantityProcessing FeedStatus = "quantity_processing"
	StatusCompleted          FeedStatus = "completed"

	// Legacy single-phase statuses (price+quantity in one feed).
	StatusPending       FeedStatus = "pending"
	StatusSubmitted     FeedStatus = "submitted"
	StatusProcessing    FeedStatus = "processing"
	StatusDone          FeedStatus = "done"
	StatusDoneVerifying FeedStatus = "done_verifying"
	StatusVerified      FeedStatus = "verified"

	// Shared terminal failure statuses.
	StatusVerificationFailed FeedStatus = "verification_failed"
	StatusFailed             FeedStatus = "failed"
	StatusCancelled          FeedStatus = "cancelled"
)

// transitions is the closed transition table. Cancellation and fatal
// failure are legal from any non-terminal status and are handled by
// CanTransition directly rather than listed per-status.
var transitions = map[FeedStatus][]FeedStatus{
	StatusPricePending:       {StatusPriceSubmitted},
	StatusPriceSubmitted:     {StatusPriceProcessing, StatusPriceVerifying},
	StatusPriceProcessing:    {StatusPriceVerifying},
	StatusPriceVerifying:     {StatusPriceVerified, StatusVerificationFailed},
	StatusPriceVerified:      {StatusQuantityPending},
	StatusQuantityPending:    {StatusQuantitySubmitted},
	StatusQuantitySubmitted:  {StatusQuantityProcessing, StatusCompleted},
	StatusQuantityProcessing: {StatusCompleted},

	StatusPending:       {StatusSubmitted},
	StatusSubmitted:     {StatusProcessing, StatusDone},
	StatusProcessing:    {StatusDone},
	StatusDone:          {StatusDoneVerifying},
	StatusDoneVerifying: {StatusVerified, StatusVerificationFailed},
}

// IsTerminal reports whether no further transitions are permitted.
func (s FeedStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusVerified, StatusVerificationFailed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsAwaitingProcessing reports whether the feed is waiting on Amazon to
// finish processing a submitted feed document.
func (s FeedStatus) IsAwaitingProcessing() bool {
	switch s {
	case StatusPriceSubmitted, StatusPriceProcessing,
		StatusQuantitySubmitted, StatusQuantityProcessing,
		StatusSubmitted, StatusProcessing:
		return true
	}
	return false
}

// IsVerifying reports whether the feed is in a live-price verification
// status.
func (s FeedStatus) IsVerifying() bool {
	return s == StatusPriceVerifying || s == StatusDoneVerifying
}

// CanTransition reports whether from→to is a legal move in the state
// machine.
func (s FeedStatus) CanTransition(to FeedStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StatusCancelled || to == StatusFailed {
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// FeedPhase identifies which submission a line result belongs to.
type FeedPhase string

const (
	PhasePrice    FeedPhase = "price"
	PhaseQuantity FeedPhase = "quantity"
	// PhaseCombined is used by legacy single-phase feeds, which submit
	// price and quantity in one document.
	PhaseCombined FeedPhase = "combined"
)

// LineOutcome is the per-ASIN outcome of one feed submission.
type LineOutcome string

const (
	OutcomeSuccess LineOutcome = "success"
	OutcomeWarning LineOutcome = "warning"
	OutcomeError   LineOutcome = "error"
)

// FeedLineResult is a per-ASIN, per-phase outcome. A feed can complete
// globally while individual lines recorded errors; callers must read both
// the feed status and the line tally.
type FeedLineResult struct {
	ID        int64       `json:"id"`
	FeedID    string      `json:"feed_id"`
	ASIN      string      `json:"asin"`
	Phase     FeedPhase   `json:"phase"`
	Outcome   LineOutcome `json:"outcome"`
	Message   string      `json:"message,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// SyncFeed is the unit of work submitted to Amazon. Entries are a snapshot
// taken at creation time; later queue edits never affect an existing feed.
// Feeds are never deleted, only driven to a terminal status.
type SyncFeed struct {
	ID              string            `json:"id"`
	Status          FeedStatus        `json:"status"`
	IsDryRun        bool              `json:"is_dry_run"`
	SinglePhase     bool              `json:"single_phase"`
	Entries         []AggregatedEntry `json:"entries"`
	PriceFeedID     string            `json:"price_feed_id,omitempty"`
	QuantityFeedID  string            `json:"quantity_feed_id,omitempty"`
	PollCount       int               `json:"poll_count"`
	TransientErrors int               `json:"transient_errors"`
	SuccessCount    int               `json:"success_count"`
	WarningCount    int               `json:"warning_count"`
	ErrorCount      int               `json:"error_count"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// InitialStatus returns the starting status for a feed of the given mode.
func InitialStatus(singlePhase bool) FeedStatus {
	if singlePhase {
		return StatusPending
	}
	return StatusPricePending
}
