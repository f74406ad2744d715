package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"resellhub-api/internal/amazon"
	"resellhub-api/internal/model"
	"resellhub-api/internal/repository"
	"resellhub-api/pkg/uid"
)

// ErrEmptyFeed is returned when feed creation is attempted with no entries.
var ErrEmptyFeed = errors.New("feed must contain at least one entry")

// CreateFeedOptions selects the submission mode for a new feed.
type CreateFeedOptions struct {
	// DryRun routes the feed through the simulator instead of Amazon.
	DryRun bool

	// SinglePhase uses the legacy one-feed mode: price and quantity
	// submitted together, no ordering safety between them.
	SinglePhase bool
}

// SyncOrchestrator owns the SyncFeed lifecycle: creation from aggregated
// entries, poll-driven progression through the price and quantity phases,
// and cancellation. It never blocks waiting on Amazon; each Poll performs
// the single next step and returns.
type SyncOrchestrator struct {
	feeds  repository.FeedRepository
	queue  repository.QueueRepository
	client amazon.FeedClient
	dryRun amazon.FeedClient
	poller *VerificationPoller
}

// NewSyncOrchestrator creates an orchestrator. client is the real Amazon
// client; dryRun substitutes for it on dry-run feeds. queue may be nil when
// feeds are created from entries the caller aggregated elsewhere.
func NewSyncOrchestrator(
	feeds repository.FeedRepository,
	queue repository.QueueRepository,
	client amazon.FeedClient,
	dryRun amazon.FeedClient,
	cfg PollerConfig,
) *SyncOrchestrator {
	if dryRun == nil {
		dryRun = amazon.NewDryRunSimulator()
	}
	return &SyncOrchestrator{
		feeds:  feeds,
		queue:  queue,
		client: client,
		dryRun: dryRun,
		poller: NewVerificationPoller(feeds, cfg),
	}
}

// CreateFeed snapshots the aggregated entries into a new feed and removes
// the included items from the sync queue. No external call is made here;
// the price feed is submitted on the first poll.
func (o *SyncOrchestrator) CreateFeed(ctx context.Context, entries []model.AggregatedEntry, opts CreateFeedOptions) (*model.SyncFeed, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyFeed
	}

	now := time.Now().UTC()
	feed := &model.SyncFeed{
		ID:          uid.New(),
		Status:      model.InitialStatus(opts.SinglePhase),
		IsDryRun:    opts.DryRun,
		SinglePhase: opts.SinglePhase,
		Entries:     entries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := o.feeds.CreateFeed(ctx, feed); err != nil {
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}
	log.Printf("[SyncOrchestrator] Created feed %s (%d entries, dry_run=%v, single_phase=%v)",
		feed.ID, len(entries), opts.DryRun, opts.SinglePhase)

	// Dry-run feeds leave the queue untouched so a real feed can follow.
	if o.queue != nil && !opts.DryRun {
		var itemIDs []string
		for _, entry := range entries {
			for _, item := range entry.Items {
				itemIDs = append(itemIDs, item.ID)
			}
		}
		if err := o.queue.Remove(ctx, itemIDs); err != nil {
			log.Printf("[SyncOrchestrator] Warning: failed to remove %d queued items for feed %s: %v",
				len(itemIDs), feed.ID, err)
		}
	}

	return feed, nil
}

// Poll performs the single next step for a feed. Idempotent and safe to
// call concurrently or repeatedly: terminal feeds are returned untouched
// without any external call, and racing polls resolve through the
// compare-and-set guard.
func (o *SyncOrchestrator) Poll(ctx context.Context, feedID string) (*model.SyncFeed, error) {
	feed, err := o.feeds.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if feed.Status.IsTerminal() {
		return feed, nil
	}
	return o.poller.Step(ctx, feed, o.clientFor(feed))
}

// Cancel moves a feed to cancelled from any non-terminal status. Already
// terminal feeds are returned unchanged. In-flight Amazon processing is not
// revoked; the feed simply stops being polled and its eventual Amazon-side
// result is ignored.
func (o *SyncOrchestrator) Cancel(ctx context.Context, feedID string) (*model.SyncFeed, error) {
	for {
		feed, err := o.feeds.GetFeed(ctx, feedID)
		if err != nil {
			return nil, err
		}
		if feed.Status.IsTerminal() {
			return feed, nil
		}

		prev := feed.Status
		feed.Status = model.StatusCancelled
		err = o.feeds.UpdateFeedCAS(ctx, feed, prev)
		if errors.Is(err, repository.ErrStaleStatus) {
			// A concurrent poll advanced the feed; re-read and try again
			// from whatever status it reached.
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Printf("[SyncOrchestrator] Feed %s cancelled (was %s)", feed.ID, prev)
		return feed, nil
	}
}

// GetStatus returns the feed without side effects.
func (o *SyncOrchestrator) GetStatus(ctx context.Context, feedID string) (*model.SyncFeed, error) {
	return o.feeds.GetFeed(ctx, feedID)
}

// GetLineResults returns the per-ASIN outcomes recorded for a feed.
func (o *SyncOrchestrator) GetLineResults(ctx context.Context, feedID string) ([]model.FeedLineResult, error) {
	if _, err := o.feeds.GetFeed(ctx, feedID); err != nil {
		return nil, err
	}
	return o.feeds.GetLineResults(ctx, feedID)
}

// ListActiveFeeds returns all feeds still in flight.
func (o *SyncOrchestrator) ListActiveFeeds(ctx context.Context) ([]*model.SyncFeed, error) {
	return o.feeds.ListActiveFeeds(ctx)
}

func (o *SyncOrchestrator) clientFor(feed *model.SyncFeed) amazon.FeedClient {
	if feed.IsDryRun {
		return o.dryRun
	}
	return o.client
}
