package amazon

import (
	"context"
	"fmt"
	"sync"

	"resellhub-api/internal/model"

	"github.com/shopspring/decimal"
)

// DryRunOptions configures synthetic outcomes for a simulated run.
type DryRunOptions struct {
	// LivePrices pins specific ASINs to a live price that never changes,
	// regardless of what was submitted. Used to exercise the
	// verification-failure path.
	LivePrices map[string]decimal.Decimal

	// Lines forces specific per-ASIN line results in processing reports.
	// ASINs not listed report success.
	Lines map[string]LineResult

	// FatalMessage, when non-empty, makes every feed report FATAL
	// processing. Used to exercise the fatal-failure path.
	FatalMessage string
}

// DryRunSimulator implements FeedClient without any network access. Feed
// submissions return synthetic ids immediately, processing reports DONE on
// the first status check, and live prices echo the submitted desired price
// unless overridden. The orchestrator cannot tell it apart from the real
// client.
type DryRunSimulator struct {
	mu      sync.Mutex
	opts    DryRunOptions
	desired map[string]decimal.Decimal
	feeds   map[string][]model.AggregatedEntry
	seq     int
}

// NewDryRunSimulator creates a simulator with default (all-success)
// behavior.
func NewDryRunSimulator() *DryRunSimulator {
	return NewDryRunSimulatorWithOptions(DryRunOptions{})
}

// NewDryRunSimulatorWithOptions creates a simulator with caller-supplied
// synthetic outcomes.
func NewDryRunSimulatorWithOptions(opts DryRunOptions) *DryRunSimulator {
	return &DryRunSimulator{
		opts:    opts,
		desired: make(map[string]decimal.Decimal),
		feeds:   make(map[string][]model.AggregatedEntry),
	}
}

// SubmitPriceFeed records the desired prices and returns a synthetic id.
func (s *DryRunSimulator) SubmitPriceFeed(_ context.Context, entries []model.AggregatedEntry) (string, error) {
	return s.submit("price", entries, true)
}

// SubmitQuantityFeed returns a synthetic id.
func (s *DryRunSimulator) SubmitQuantityFeed(_ context.Context, entries []model.AggregatedEntry) (string, error) {
	return s.submit("quantity", entries, false)
}

// SubmitCombinedFeed records desired prices and returns a synthetic id.
func (s *DryRunSimulator) SubmitCombinedFeed(_ context.Context, entries []model.AggregatedEntry) (string, error) {
	return s.submit("combined", entries, true)
}

func (s *DryRunSimulator) submit(kind string, entries []model.AggregatedEntry, recordPrices bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	feedID := fmt.Sprintf("dryrun-%s-%04d", kind, s.seq)
	s.feeds[feedID] = entries
	if recordPrices {
		for _, entry := range entries {
			s.desired[entry.ASIN] = entry.Price
		}
	}
	return feedID, nil
}

// GetFeedStatus reports DONE (or the configured FATAL) on the first check.
func (s *DryRunSimulator) GetFeedStatus(_ context.Context, feedID string) (*FeedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.feeds[feedID]
	if !ok {
		return nil, Fatal(fmt.Sprintf("unknown dry-run feed id %q", feedID), nil)
	}
	if s.opts.FatalMessage != "" {
		return &FeedResult{Status: ProcessingFatal, Lines: []LineResult{
			{Outcome: model.OutcomeError, Message: s.opts.FatalMessage},
		}}, nil
	}

	lines := make([]LineResult, 0, len(entries))
	for _, entry := range entries {
		if forced, ok := s.opts.Lines[entry.ASIN]; ok {
			forced.ASIN = entry.ASIN
			lines = append(lines, forced)
			continue
		}
		lines = append(lines, LineResult{ASIN: entry.ASIN, Outcome: model.OutcomeSuccess})
	}
	return &FeedResult{Status: ProcessingDone, Lines: lines}, nil
}

// GetLivePrice echoes the submitted desired price unless an override pins
// the ASIN elsewhere.
func (s *DryRunSimulator) GetLivePrice(_ context.Context, asin string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if price, ok := s.opts.LivePrices[asin]; ok {
		return price, nil
	}
	if price, ok := s.desired[asin]; ok {
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("no dry-run listing for asin %s", asin)
}

// Ensure DryRunSimulator implements FeedClient
var _ FeedClient = (*DryRunSimulator)(nil)
