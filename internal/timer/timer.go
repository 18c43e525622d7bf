// Package timer implements TimerModel: the per-timer state machine and
// its derived time fields (spec §4.6).
package timer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// TransitionError marks an illegal state transition (spec §7 Validation).
type TransitionError struct {
	From, Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a timer in state %s", e.Action, e.From)
}

// Create makes a new timer in the created state. If clientID is
// non-empty and already present among existing, the existing timer is
// returned unchanged (spec §4.6 "idempotent creation").
func Create(existing map[string]*models.Timer, label string, stepIndex, durationSec int, clientID string) *models.Timer {
	if clientID != "" {
		for _, t := range existing {
			if t.ClientID == clientID {
				return t
			}
		}
	}
	return &models.Timer{
		ID:          uuid.NewString(),
		Label:       label,
		StepIndex:   stepIndex,
		DurationSec: durationSec,
		State:       models.TimerCreated,
		ClientID:    clientID,
	}
}

// Start transitions created/paused -> running, computing due_at from the
// remaining duration (spec §4.6).
func Start(t *models.Timer, now time.Time) error {
	switch t.State {
	case models.TimerCreated:
		due := now.Add(time.Duration(t.DurationSec) * time.Second)
		t.DueAt = &due
		t.StartedAt = &now
		t.RemainingSec = nil
		t.State = models.TimerRunning
	case models.TimerPaused:
		remaining := 0
		if t.RemainingSec != nil {
			remaining = *t.RemainingSec
		}
		due := now.Add(time.Duration(remaining) * time.Second)
		t.DueAt = &due
		t.StartedAt = &now
		t.RemainingSec = nil
		t.State = models.TimerRunning
	default:
		return &TransitionError{From: string(t.State), Action: "start"}
	}
	return nil
}

// Pause transitions running -> paused, snapshotting remaining_sec (spec §4.6).
func Pause(t *models.Timer, now time.Time) error {
	if t.State != models.TimerRunning {
		return &TransitionError{From: string(t.State), Action: "pause"}
	}
	remaining := 0
	if t.DueAt != nil {
		remaining = int(t.DueAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}
	t.RemainingSec = &remaining
	t.DueAt = nil
	t.StartedAt = nil
	t.State = models.TimerPaused
	return nil
}

// Done transitions running/paused -> done, clearing timekeeping fields.
func Done(t *models.Timer) error {
	if t.State != models.TimerRunning && t.State != models.TimerPaused {
		return &TransitionError{From: string(t.State), Action: "done"}
	}
	t.DueAt = nil
	t.RemainingSec = nil
	t.StartedAt = nil
	t.State = models.TimerDone
	return nil
}

// Delete tombstones the timer from any state.
func Delete(t *models.Timer) {
	t.DueAt = nil
	t.RemainingSec = nil
	t.StartedAt = nil
	t.State = models.TimerDeleted
}

// Remaining returns the remaining seconds as seen "now", independent of
// state (spec §4.6: "created: remaining is duration_sec").
func Remaining(t *models.Timer, now time.Time) int {
	switch t.State {
	case models.TimerCreated:
		return t.DurationSec
	case models.TimerRunning:
		if t.DueAt == nil {
			return 0
		}
		r := int(t.DueAt.Sub(now).Seconds())
		if r < 0 {
			return 0
		}
		return r
	case models.TimerPaused:
		if t.RemainingSec == nil {
			return 0
		}
		return *t.RemainingSec
	default:
		return 0
	}
}
