package service

import (
	"context"
	"log"
	"sync"
	"time"

	"resellhub-api/internal/model"
)

// SchedulerConfig holds the poll cadence for the background scheduler.
type SchedulerConfig struct {
	// TickInterval is how often the scheduler scans for due feeds.
	TickInterval time.Duration

	// ProcessingInterval is the cadence while Amazon is processing a
	// submitted feed.
	ProcessingInterval time.Duration

	// VerifyInitialDelay is the wait before the first live-price check
	// after processing finishes.
	VerifyInitialDelay time.Duration

	// VerifyInterval is the cadence between subsequent live-price checks.
	VerifyInterval time.Duration
}

// DefaultSchedulerConfig returns the standard cadence: 30 s while Amazon is
// processing, 5 s before the first verification check, then 60 s between
// checks.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:       5 * time.Second,
		ProcessingInterval: 30 * time.Second,
		VerifyInitialDelay: 5 * time.Second,
		VerifyInterval:     60 * time.Second,
	}
}

// PollScheduler drives active feeds through the orchestrator on a timer.
// It owns the cadence only; the poll itself is the same idempotent Poll a
// manual caller uses, so a user clicking "poll now" can never conflict with
// the background loop.
type PollScheduler struct {
	orchestrator *SyncOrchestrator
	config       SchedulerConfig
	ticker       *time.Ticker
	stopCh       chan struct{}
	stopOnce     sync.Once
	isRunning    bool
	mu           sync.Mutex
}

// NewPollScheduler creates a new poll scheduler.
func NewPollScheduler(orchestrator *SyncOrchestrator, config SchedulerConfig) *PollScheduler {
	defaults := DefaultSchedulerConfig()
	if config.TickInterval == 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.ProcessingInterval == 0 {
		config.ProcessingInterval = defaults.ProcessingInterval
	}
	if config.VerifyInitialDelay == 0 {
		config.VerifyInitialDelay = defaults.VerifyInitialDelay
	}
	if config.VerifyInterval == 0 {
		config.VerifyInterval = defaults.VerifyInterval
	}

	return &PollScheduler{
		orchestrator: orchestrator,
		config:       config,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the scheduler loop.
func (s *PollScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.TickInterval)
	s.mu.Unlock()

	log.Printf("[PollScheduler] Started - tick:%v, processing:%v, verify:%v/%v",
		s.config.TickInterval, s.config.ProcessingInterval,
		s.config.VerifyInitialDelay, s.config.VerifyInterval)

	go s.run()
}

// run is the main scheduler loop.
func (s *PollScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.pollDueFeeds()
		case <-s.stopCh:
			log.Printf("[PollScheduler] Stopped")
			return
		}
	}
}

// pollDueFeeds polls every active feed whose cadence has elapsed.
func (s *PollScheduler) pollDueFeeds() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	feeds, err := s.orchestrator.ListActiveFeeds(ctx)
	if err != nil {
		log.Printf("[PollScheduler] Error listing active feeds: %v", err)
		return
	}

	for _, feed := range feeds {
		if !s.isDue(feed) {
			continue
		}
		if _, err := s.orchestrator.Poll(ctx, feed.ID); err != nil {
			log.Printf("[PollScheduler] Error polling feed %s: %v", feed.ID, err)
		}
	}
}

// isDue applies the cadence rules to one feed.
func (s *PollScheduler) isDue(feed *model.SyncFeed) bool {
	elapsed := time.Since(feed.UpdatedAt)

	switch {
	case feed.Status.IsVerifying():
		if feed.PollCount == 0 {
			return elapsed >= s.config.VerifyInitialDelay
		}
		return elapsed >= s.config.VerifyInterval
	case feed.Status.IsAwaitingProcessing():
		return elapsed >= s.config.ProcessingInterval
	default:
		// Submission states (price_pending, quantity_pending, pending,
		// price_verified, done) have outstanding work; poll immediately.
		return true
	}
}

// Stop stops the scheduler.
func (s *PollScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow polls all due feeds immediately, outside the timer.
func (s *PollScheduler) RunNow() {
	s.pollDueFeeds()
}
