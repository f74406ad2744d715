package model_test

import (
	"testing"

	"resellhub-api/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestFeedStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []model.FeedStatus{
		model.StatusCompleted, model.StatusVerified,
		model.StatusVerificationFailed, model.StatusFailed, model.StatusCancelled,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	active := []model.FeedStatus{
		model.StatusPricePending, model.StatusPriceSubmitted, model.StatusPriceProcessing,
		model.StatusPriceVerifying, model.StatusPriceVerified,
		model.StatusQuantityPending, model.StatusQuantitySubmitted, model.StatusQuantityProcessing,
		model.StatusPending, model.StatusSubmitted, model.StatusProcessing,
		model.StatusDone, model.StatusDoneVerifying,
	}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestFeedStatus_TwoPhaseHappyPath(t *testing.T) {
	t.Parallel()

	chain := []model.FeedStatus{
		model.StatusPricePending, model.StatusPriceSubmitted, model.StatusPriceProcessing,
		model.StatusPriceVerifying, model.StatusPriceVerified,
		model.StatusQuantityPending, model.StatusQuantitySubmitted, model.StatusQuantityProcessing,
		model.StatusCompleted,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, chain[i].CanTransition(chain[i+1]),
			"%s -> %s should be legal", chain[i], chain[i+1])
	}
}

func TestFeedStatus_SinglePhaseHappyPath(t *testing.T) {
	t.Parallel()

	chain := []model.FeedStatus{
		model.StatusPending, model.StatusSubmitted, model.StatusProcessing,
		model.StatusDone, model.StatusDoneVerifying, model.StatusVerified,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, chain[i].CanTransition(chain[i+1]),
			"%s -> %s should be legal", chain[i], chain[i+1])
	}
}

func TestFeedStatus_QuantityNeverBeforePriceVerified(t *testing.T) {
	t.Parallel()

	early := []model.FeedStatus{
		model.StatusPricePending, model.StatusPriceSubmitted,
		model.StatusPriceProcessing, model.StatusPriceVerifying,
	}
	for _, s := range early {
		assert.False(t, s.CanTransition(model.StatusQuantityPending),
			"%s must not reach quantity_pending", s)
		assert.False(t, s.CanTransition(model.StatusQuantitySubmitted),
			"%s must not reach quantity_submitted", s)
	}

	// Only price_verified opens the quantity phase.
	assert.True(t, model.StatusPriceVerified.CanTransition(model.StatusQuantityPending))
}

func TestFeedStatus_ProcessingMaySkipToDone(t *testing.T) {
	t.Parallel()

	// Fast processing reports DONE without an observed in-progress tick.
	assert.True(t, model.StatusPriceSubmitted.CanTransition(model.StatusPriceVerifying))
	assert.True(t, model.StatusQuantitySubmitted.CanTransition(model.StatusCompleted))
	assert.True(t, model.StatusSubmitted.CanTransition(model.StatusDone))
}

func TestFeedStatus_CancelAndFailFromAnyActiveStatus(t *testing.T) {
	t.Parallel()

	active := []model.FeedStatus{
		model.StatusPricePending, model.StatusPriceVerifying, model.StatusPriceVerified,
		model.StatusQuantityProcessing, model.StatusPending, model.StatusDoneVerifying,
	}
	for _, s := range active {
		assert.True(t, s.CanTransition(model.StatusCancelled), "%s -> cancelled", s)
		assert.True(t, s.CanTransition(model.StatusFailed), "%s -> failed", s)
	}
}

func TestFeedStatus_TerminalAbsorbsEverything(t *testing.T) {
	t.Parallel()

	terminal := []model.FeedStatus{
		model.StatusCompleted, model.StatusVerified,
		model.StatusVerificationFailed, model.StatusFailed, model.StatusCancelled,
	}
	targets := []model.FeedStatus{
		model.StatusPricePending, model.StatusQuantityPending,
		model.StatusCancelled, model.StatusFailed, model.StatusCompleted,
	}
	for _, s := range terminal {
		for _, to := range targets {
			assert.False(t, s.CanTransition(to), "%s -> %s must be illegal", s, to)
		}
	}
}

func TestFeedStatus_NoBackwardTransitions(t *testing.T) {
	t.Parallel()

	assert.False(t, model.StatusPriceVerified.CanTransition(model.StatusPriceVerifying))
	assert.False(t, model.StatusPriceVerifying.CanTransition(model.StatusPriceSubmitted))
	assert.False(t, model.StatusQuantitySubmitted.CanTransition(model.StatusQuantityPending))
	assert.False(t, model.StatusDone.CanTransition(model.StatusProcessing))
}

func TestInitialStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.StatusPricePending, model.InitialStatus(false))
	assert.Equal(t, model.StatusPending, model.InitialStatus(true))
}

func TestFeedStatus_Classifiers(t *testing.T) {
	t.Parallel()

	assert.True(t, model.StatusPriceSubmitted.IsAwaitingProcessing())
	assert.True(t, model.StatusQuantityProcessing.IsAwaitingProcessing())
	assert.True(t, model.StatusProcessing.IsAwaitingProcessing())
	assert.False(t, model.StatusPriceVerifying.IsAwaitingProcessing())

	assert.True(t, model.StatusPriceVerifying.IsVerifying())
	assert.True(t, model.StatusDoneVerifying.IsVerifying())
	assert.False(t, model.StatusPriceVerified.IsVerifying())
}
