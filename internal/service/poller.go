package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"resellhub-api/internal/amazon"
	"resellhub-api/internal/model"
	"resellhub-api/internal/repository"
)

// PollerConfig bounds the verification and processing windows.
type PollerConfig struct {
	// MaxPollAttempts is the verification attempt budget. Once pollCount
	// reaches it without a live-price match the feed is marked
	// verification_failed.
	MaxPollAttempts int

	// ProcessingCeiling bounds how long a feed may sit in a
	// submitted/processing status before it is failed outright. Amazon has
	// no hard SLA, so this is deliberately generous.
	ProcessingCeiling time.Duration
}

// DefaultPollerConfig returns the default verification budget: up to 30
// checks, roughly a 30 minute verification window at the scheduler's
// cadence.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		MaxPollAttempts:   30,
		ProcessingCeiling: 6 * time.Hour,
	}
}

// VerificationPoller advances a feed by at most one transition per
// invocation. It reads the current status, issues the single external check
// appropriate to that status, persists, and returns the updated feed.
// External-call failures never escape as errors: they are classified as
// transient (counter bumped, status unchanged) or fatal (terminal failed).
// Only repository failures are returned.
type VerificationPoller struct {
	feeds repository.FeedRepository
	cfg   PollerConfig
}

// NewVerificationPoller creates a poller persisting through feeds.
func NewVerificationPoller(feeds repository.FeedRepository, cfg PollerConfig) *VerificationPoller {
	if cfg.MaxPollAttempts == 0 {
		cfg.MaxPollAttempts = 30
	}
	if cfg.ProcessingCeiling == 0 {
		cfg.ProcessingCeiling = 6 * time.Hour
	}
	return &VerificationPoller{feeds: feeds, cfg: cfg}
}

// Step performs one poll step for the feed using the given client. Safe to
// call concurrently: every write is compare-and-set on the status the step
// started from, and a lost race returns the winner's state untouched.
func (p *VerificationPoller) Step(ctx context.Context, feed *model.SyncFeed, client amazon.FeedClient) (*model.SyncFeed, error) {
	if feed.Status.IsTerminal() {
		return feed, nil
	}

	switch {
	case feed.Status == model.StatusPricePending:
		return p.submitPrice(ctx, feed, client)
	case feed.Status == model.StatusPending:
		return p.submitCombined(ctx, feed, client)
	case feed.Status == model.StatusPriceVerified, feed.Status == model.StatusQuantityPending:
		return p.submitQuantity(ctx, feed, client)
	case feed.Status.IsAwaitingProcessing():
		return p.checkProcessing(ctx, feed, client)
	case feed.Status == model.StatusDone:
		return p.advance(ctx, feed, model.StatusDoneVerifying)
	case feed.Status.IsVerifying():
		return p.verifyPrices(ctx, feed, client)
	default:
		return nil, fmt.Errorf("feed %s is in unknown status %q", feed.ID, feed.Status)
	}
}

// submitPrice sends the price feed for a freshly created two-phase feed.
func (p *VerificationPoller) submitPrice(ctx context.Context, feed *model.SyncFeed, client amazon.FeedClient) (*model.SyncFeed, error) {
	feedID, err := client.SubmitPriceFeed(ctx, feed.Entries)
	if err != nil {
		return p.classify(ctx, feed, feed.Status, "price feed submission", err)
	}

	prev := feed.Status
	feed.PriceFeedID = feedID
	feed.Status = model.StatusPriceSubmitted
	log.Printf("[VerificationPoller] Feed %s: price feed submitted, amazon_feed_id=%s", feed.ID, feedID)
	return p.persist(ctx, feed, prev)
}

// submitCombined sends the single price+quantity feed in legacy mode.
func (p *VerificationPoller) submitCombined(ctx context.Context, feed *model.SyncFeed, client amazon.FeedClient) (*model.SyncFeed, error) {
	feedID, err := client.SubmitCombinedFeed(ctx, feed.Entries)
	if err != nil {
		return p.classify(ctx, feed, feed.Status, "combined feed submission", err)
	}

	prev := feed.Status
	feed.PriceFeedID = feedID
	feed.Status = model.StatusSubmitted
	log.Printf("[VerificationPoller] Feed %s: combined feed submitted, amazon_feed_id=%s", feed.ID, feedID)
	return p.persist(ctx, feed, prev)
}

// submitQuantity advances price_verified → quantity_pending under the CAS
// guard, then submits the quantity feed. The guard write lands BEFORE the
// external call so a racing poller observes quantity_pending and backs off:
// the quantity feed can never be submitted twice.
func (p *VerificationPoller) submitQuantity(ctx context.Context, feed *model.SyncFeed, client amazon.FeedClient) (*model.SyncFeed, error) {
	if feed.Status == model.StatusPriceVerified {
		prev := feed.Status
		feed.Status = model.StatusQuantityPending
		updated, err := p.persist(ctx, feed, prev)
		if err != nil {
			return nil, err
		}
		if updated != feed {
			// Lost the guard race; the winner owns the submission.
			return updated, nil
		}
	}

	feedID, err := client.SubmitQuantityFeed(ctx, feed.Entries)
	if err != nil {
		// Transient submission failures stay in quantity_pending and retry
		// on the next poll; the guard has already been consumed.
		return p.classify(ctx, feed, feed.Status, "quantity feed submission", err)
	}

	prev := feed.Status
	feed.QuantityFeedID = feedID
	feed.Status = model.StatusQuantitySubmitted
	log.Printf("[VerificationPoller] Feed %s: quantity feed submitted, amazon_feed_id=%s", feed.ID, feedID)
	return p.persist(ctx, feed, prev)
}

// checkProcessing asks Amazon for the processing status of whichever feed
// document the current phase is waiting on.
func (p *VerificationPoller) checkProcessing(ctx context.Context, feed *model.SyncFeed, client amazon.FeedClient) (*model.SyncFeed, error) {
	if age := time.Since(feed.CreatedAt); age > p.cfg.ProcessingCeiling {
		return p.fail(ctx, feed, fmt.Sprintf(
			"amazon did not finish processing within %v; giving up", p.cfg.ProcessingCeiling))
	}

	amazonFeedID := feed.PriceFeedID
	if feed.Status == model.StatusQuantitySubmitted || feed.Status == model.StatusQuantityProcessing {
		amazonFeedID = feed.QuantityFeedID
	}

	result, err := client.GetFeedStatus(ctx, amazonFeedID)
	if err != nil {
		return p.classify(ctx, feed, feed.Status, "feed status check", err)
	}

	switch result.Status {
	case amazon.ProcessingInProgress:
		if next, ok := processingStatus(feed.Status); ok {
			return p.advance(ctx, feed, next)
		}
		return feed, nil

	case amazon.ProcessingDone:
		phase := phaseFor(feed.Status, feed.SinglePhase)
		next := doneStatus(feed.Status)
		applyLineCounts(feed, result.Lines)
		if next == model.StatusPriceVerifying {
			feed.PollCount = 0
		}
		updated, err := p.advance(ctx, feed, next)
		if err != nil || updated != feed {
			// Error, or a concurrent poll won the race and already recorded
			// this report's lines.
			return updated, err
		}
		if err := p.storeLines(ctx, feed.ID, phase, result.Lines); err != nil {
			return nil, err
		}
		return updated, nil

	case amazon.ProcessingFatal:
		phase := phaseFor(feed.Status, feed.SinglePhase)
		applyLineCounts(feed, result.Lines)
		updated, err := p.fail(ctx, feed, fatalMessage(result.Lines))
		if err != nil || updated != feed {
			return updated, err
		}
		if err := p.storeLines(ctx, feed.ID, phase, result.Lines); err != nil {
			return nil, err
		}
		return updated, nil

	default:
		return p.classify(ctx, feed, feed.Status, "feed status check",
			fmt.Errorf("unexpected processing status %q", result.Status))
	}
}

// verifyPrices compares every entry's live price to its desired price.
// All-match advances the feed; a mismatch burns one verification attempt.
func (p *VerificationPoller) verifyPrices(ctx context.Context, feed *model.SyncFeed, client amazon.FeedClient) (*model.SyncFeed, error) {
	var mismatched []string
	for _, entry := range feed.Entries {
		live, err := client.GetLivePrice(ctx, entry.ASIN)
		if err != nil {
			return p.classify(ctx, feed, feed.Status, "live price check", err)
		}
		if !live.Equal(entry.Price) {
			mismatched = append(mismatched, fmt.Sprintf("%s (want %s, live %s)",
				entry.ASIN, entry.Price.StringFixed(2), live.StringFixed(2)))
		}
	}

	if len(mismatched) == 0 {
		if feed.Status == model.StatusDoneVerifying {
			return p.advance(ctx, feed, model.StatusVerified)
		}
		return p.advance(ctx, feed, model.StatusPriceVerified)
	}

	prev := feed.Status
	feed.PollCount++
	if feed.PollCount >= p.cfg.MaxPollAttempts {
		feed.Status = model.StatusVerificationFailed
		feed.ErrorMessage = fmt.Sprintf(
			"live price never matched desired price after %d checks (%s); stock quantity was NOT updated",
			feed.PollCount, strings.Join(mismatched, ", "))
		log.Printf("[VerificationPoller] Feed %s: verification failed after %d attempts", feed.ID, feed.PollCount)
	} else {
		log.Printf("[VerificationPoller] Feed %s: price not yet live (attempt %d/%d): %s",
			feed.ID, feed.PollCount, p.cfg.MaxPollAttempts, strings.Join(mismatched, ", "))
	}
	return p.persist(ctx, feed, prev)
}

// applyLineCounts sets the feed's success/warning/error tallies from a
// processing report. Each report carries one line per ASIN, so the tally is
// replaced rather than accumulated; per-phase detail stays in the stored
// line results. Line outcomes never change the feed's phase status.
func applyLineCounts(feed *model.SyncFeed, lines []amazon.LineResult) {
	feed.SuccessCount = 0
	feed.WarningCount = 0
	feed.ErrorCount = 0
	for _, line := range lines {
		switch line.Outcome {
		case model.OutcomeSuccess:
			feed.SuccessCount++
		case model.OutcomeWarning:
			feed.WarningCount++
		case model.OutcomeError:
			feed.ErrorCount++
		}
	}
}

// storeLines persists per-ASIN outcomes for one processing report.
func (p *VerificationPoller) storeLines(ctx context.Context, feedID string, phase model.FeedPhase, lines []amazon.LineResult) error {
	if len(lines) == 0 {
		return nil
	}

	results := make([]model.FeedLineResult, 0, len(lines))
	for _, line := range lines {
		results = append(results, model.FeedLineResult{
			FeedID:  feedID,
			ASIN:    line.ASIN,
			Phase:   phase,
			Outcome: line.Outcome,
			Message: line.Message,
		})
	}
	return p.feeds.AddLineResults(ctx, feedID, results)
}

// classify turns an external-call failure into either a transient counter
// bump or a terminal failure.
func (p *VerificationPoller) classify(ctx context.Context, feed *model.SyncFeed, prev model.FeedStatus, op string, err error) (*model.SyncFeed, error) {
	if amazon.IsFatal(err) {
		return p.fail(ctx, feed, fmt.Sprintf("%s failed permanently: %v", op, err))
	}
	log.Printf("[VerificationPoller] Feed %s: transient error during %s: %v", feed.ID, op, err)
	feed.TransientErrors++
	return p.persist(ctx, feed, prev)
}

func (p *VerificationPoller) fail(ctx context.Context, feed *model.SyncFeed, message string) (*model.SyncFeed, error) {
	prev := feed.Status
	feed.Status = model.StatusFailed
	feed.ErrorMessage = message
	log.Printf("[VerificationPoller] Feed %s: failed: %s", feed.ID, message)
	return p.persist(ctx, feed, prev)
}

func (p *VerificationPoller) advance(ctx context.Context, feed *model.SyncFeed, next model.FeedStatus) (*model.SyncFeed, error) {
	prev := feed.Status
	if !prev.CanTransition(next) {
		return nil, fmt.Errorf("illegal transition %s → %s for feed %s", prev, next, feed.ID)
	}
	feed.Status = next
	return p.persist(ctx, feed, prev)
}

// persist writes the feed guarded by the status the step started from. A
// lost compare-and-set means a concurrent poll or cancel advanced the feed
// first; the freshly read winner state is returned and this step's work is
// discarded.
func (p *VerificationPoller) persist(ctx context.Context, feed *model.SyncFeed, expected model.FeedStatus) (*model.SyncFeed, error) {
	err := p.feeds.UpdateFeedCAS(ctx, feed, expected)
	if errors.Is(err, repository.ErrStaleStatus) {
		log.Printf("[VerificationPoller] Feed %s: lost status race from %s, re-reading", feed.ID, expected)
		return p.feeds.GetFeed(ctx, feed.ID)
	}
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// processingStatus maps a *_submitted status to its *_processing successor.
func processingStatus(s model.FeedStatus) (model.FeedStatus, bool) {
	switch s {
	case model.StatusPriceSubmitted:
		return model.StatusPriceProcessing, true
	case model.StatusQuantitySubmitted:
		return model.StatusQuantityProcessing, true
	case model.StatusSubmitted:
		return model.StatusProcessing, true
	}
	return "", false
}

// doneStatus maps an awaiting-processing status to the status entered when
// Amazon reports DONE.
func doneStatus(s model.FeedStatus) model.FeedStatus {
	switch s {
	case model.StatusPriceSubmitted, model.StatusPriceProcessing:
		return model.StatusPriceVerifying
	case model.StatusQuantitySubmitted, model.StatusQuantityProcessing:
		return model.StatusCompleted
	default: // legacy submitted/processing
		return model.StatusDone
	}
}

// phaseFor identifies which phase a processing report belongs to.
func phaseFor(s model.FeedStatus, singlePhase bool) model.FeedPhase {
	if singlePhase {
		return model.PhaseCombined
	}
	if s == model.StatusQuantitySubmitted || s == model.StatusQuantityProcessing {
		return model.PhaseQuantity
	}
	return model.PhasePrice
}

// fatalMessage derives a human-readable failure message from a FATAL
// processing report.
func fatalMessage(lines []amazon.LineResult) string {
	for _, line := range lines {
		if line.Message != "" {
			return "amazon reported fatal processing error: " + line.Message
		}
	}
	return "amazon reported fatal processing error"
}
