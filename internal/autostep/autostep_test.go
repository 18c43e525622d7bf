package autostep_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/autostep"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

func idx(i int) *int { return &i }

func TestTimerStartedWinsHighestPriority(t *testing.T) {
	events := []models.CookSessionEvent{
		{Type: models.EventTimerStart, StepIndex: idx(5), TimerID: "t1"},
		{Type: models.EventCheckStep, StepIndex: idx(2)},
		{Type: models.EventCheckStep, StepIndex: idx(2)},
	}
	s := autostep.Infer(events, 2)
	require.Equal(t, 5, s.SuggestedIndex)
	require.Equal(t, 0.8, s.Confidence)
	require.Equal(t, "Timer started", s.Reason)
}

func TestRepeatedCheckStepSignal(t *testing.T) {
	events := []models.CookSessionEvent{
		{Type: models.EventCheckStep, StepIndex: idx(3)},
		{Type: models.EventCheckStep, StepIndex: idx(3)},
	}
	s := autostep.Infer(events, 1)
	require.Equal(t, 3, s.SuggestedIndex)
	require.Equal(t, 0.7, s.Confidence)
}

func TestNoSignalFallsBackToCurrent(t *testing.T) {
	s := autostep.Infer(nil, 4)
	require.Equal(t, 4, s.SuggestedIndex)
	require.LessOrEqual(t, s.Confidence, 0.4)
}

func TestManualOverrideCapsConfidenceAndBlocksAutoJump(t *testing.T) {
	now := time.Now()
	until := now.Add(2 * time.Minute)
	raw := autostep.Suggestion{SuggestedIndex: 5, Confidence: 0.8, Reason: "Timer started"}

	capped, underOverride := autostep.ApplyOverrideCap(raw, &until, now)
	require.True(t, underOverride)
	require.Equal(t, 0.55, capped.Confidence)
	require.False(t, autostep.ShouldAutoJump(models.AutoStepAutoJump, capped.Confidence, underOverride))
}

func TestAutoJumpFiresAboveThresholdWithNoOverride(t *testing.T) {
	require.True(t, autostep.ShouldAutoJump(models.AutoStepAutoJump, 0.8, false))
	require.False(t, autostep.ShouldAutoJump(models.AutoStepSuggest, 0.8, false))
	require.False(t, autostep.ShouldAutoJump(models.AutoStepAutoJump, 0.6, false))
}
