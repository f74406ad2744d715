package service

import (
	"testing"
	"time"

	"resellhub-api/internal/model"

	"github.com/stretchr/testify/assert"
)

func schedulerForTest() *PollScheduler {
	return NewPollScheduler(nil, SchedulerConfig{
		TickInterval:       5 * time.Second,
		ProcessingInterval: 30 * time.Second,
		VerifyInitialDelay: 5 * time.Second,
		VerifyInterval:     60 * time.Second,
	})
}

func feedAt(status model.FeedStatus, age time.Duration, pollCount int) *model.SyncFeed {
	return &model.SyncFeed{
		ID:        "feed-1",
		Status:    status,
		PollCount: pollCount,
		UpdatedAt: time.Now().Add(-age),
	}
}

func TestScheduler_SubmissionStatesAreAlwaysDue(t *testing.T) {
	t.Parallel()
	s := schedulerForTest()

	for _, status := range []model.FeedStatus{
		model.StatusPricePending, model.StatusPriceVerified,
		model.StatusQuantityPending, model.StatusPending, model.StatusDone,
	} {
		assert.True(t, s.isDue(feedAt(status, 0, 0)), "%s should poll immediately", status)
	}
}

func TestScheduler_ProcessingCadence(t *testing.T) {
	t.Parallel()
	s := schedulerForTest()

	assert.False(t, s.isDue(feedAt(model.StatusPriceProcessing, 10*time.Second, 0)))
	assert.True(t, s.isDue(feedAt(model.StatusPriceProcessing, 31*time.Second, 0)))
	assert.False(t, s.isDue(feedAt(model.StatusQuantitySubmitted, 5*time.Second, 0)))
	assert.True(t, s.isDue(feedAt(model.StatusQuantitySubmitted, time.Minute, 0)))
}

func TestScheduler_VerificationCadence(t *testing.T) {
	t.Parallel()
	s := schedulerForTest()

	// First check waits only the initial delay.
	assert.False(t, s.isDue(feedAt(model.StatusPriceVerifying, time.Second, 0)))
	assert.True(t, s.isDue(feedAt(model.StatusPriceVerifying, 6*time.Second, 0)))

	// Subsequent checks wait the full verify interval.
	assert.False(t, s.isDue(feedAt(model.StatusPriceVerifying, 30*time.Second, 1)))
	assert.True(t, s.isDue(feedAt(model.StatusPriceVerifying, 61*time.Second, 1)))

	// Legacy verification follows the same cadence.
	assert.True(t, s.isDue(feedAt(model.StatusDoneVerifying, 6*time.Second, 0)))
	assert.False(t, s.isDue(feedAt(model.StatusDoneVerifying, 30*time.Second, 3)))
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	t.Parallel()

	orchestrator := NewSyncOrchestrator(nil, nil, nil, nil, PollerConfig{})

	// A one-hour tick never fires within the test.
	s := NewPollScheduler(orchestrator, SchedulerConfig{TickInterval: time.Hour})
	s.Start()
	s.Start() // second start is a no-op

	s.Stop()
	s.Stop() // second stop must not panic
}
