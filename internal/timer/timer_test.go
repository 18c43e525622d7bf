package timer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/timer"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

func TestCreateIdempotentByClientID(t *testing.T) {
	existing := map[string]*models.Timer{
		"t1": {ID: "t1", ClientID: "c1", Label: "Boil"},
	}
	got := timer.Create(existing, "Boil again", 0, 60, "c1")
	require.Equal(t, "t1", got.ID)
	require.Equal(t, "Boil", got.Label)
}

func TestStartSetsDueAt(t *testing.T) {
	tm := &models.Timer{State: models.TimerCreated, DurationSec: 300}
	now := time.Now()
	require.NoError(t, timer.Start(tm, now))
	require.Equal(t, models.TimerRunning, tm.State)
	require.NotNil(t, tm.DueAt)
	require.WithinDuration(t, now.Add(300*time.Second), *tm.DueAt, time.Second)
}

func TestPauseResumeRoundTrip(t *testing.T) {
	tm := &models.Timer{State: models.TimerCreated, DurationSec: 300}
	t0 := time.Now()
	require.NoError(t, timer.Start(tm, t0))

	t1 := t0.Add(100 * time.Second)
	require.NoError(t, timer.Pause(tm, t1))
	require.Equal(t, models.TimerPaused, tm.State)
	require.NotNil(t, tm.RemainingSec)
	require.InDelta(t, 200, *tm.RemainingSec, 1)

	t2 := t1.Add(30 * time.Second)
	require.NoError(t, timer.Start(tm, t2))
	require.Equal(t, models.TimerRunning, tm.State)
	// due_at_after_resume == t2 + (d - (t1 - t0)), +-1s (spec §8)
	expected := t2.Add(200 * time.Second)
	require.WithinDuration(t, expected, *tm.DueAt, time.Second)
}

func TestPauseRejectsFromCreated(t *testing.T) {
	tm := &models.Timer{State: models.TimerCreated, DurationSec: 60}
	err := timer.Pause(tm, time.Now())
	require.Error(t, err)
}

func TestDoneClearsFields(t *testing.T) {
	tm := &models.Timer{State: models.TimerCreated, DurationSec: 60}
	now := time.Now()
	require.NoError(t, timer.Start(tm, now))
	require.NoError(t, timer.Done(tm))
	require.Equal(t, models.TimerDone, tm.State)
	require.Nil(t, tm.DueAt)
	require.Nil(t, tm.RemainingSec)
	require.Nil(t, tm.StartedAt)
}
