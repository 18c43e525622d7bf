// Package autostep implements AutoStepInferencer: priority-ranked signal
// rules over the recent event window, with a manual-override confidence
// cap (spec §4.8).
package autostep

import (
	"time"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// eventWindow bounds how many recent events the inferencer considers.
const eventWindow = 20

// manualOverrideWindow is the cooldown after an explicit step navigation
// during which the inferencer must not auto-jump (spec §4.8).
const manualOverrideWindow = 3 * time.Minute

// Suggestion is the output of one inference pass.
type Suggestion struct {
	SuggestedIndex int
	Confidence     float64
	Reason         string
}

// Infer applies the priority-ranked rules against the last events (newest
// first, already capped to eventWindow by the caller or here) and the
// current step index.
func Infer(events []models.CookSessionEvent, currentStepIndex int) Suggestion {
	if len(events) > eventWindow {
		events = events[:eventWindow]
	}

	if k, ok := latestStepIndexForType(events, models.EventTimerStart); ok {
		return Suggestion{SuggestedIndex: k, Confidence: 0.8, Reason: "Timer started"}
	}
	if k, ok := runningTimerStep(events); ok {
		return Suggestion{SuggestedIndex: k, Confidence: 0.8, Reason: "Timer running"}
	}
	if k, ok := fullyCompleteStep(events); ok {
		return Suggestion{SuggestedIndex: k + 1, Confidence: 0.75, Reason: "Step mostly complete"}
	}
	if k, ok := repeatedCheckStep(events); ok {
		return Suggestion{SuggestedIndex: k, Confidence: 0.7, Reason: "Multiple check events on this step"}
	}
	return Suggestion{SuggestedIndex: currentStepIndex, Confidence: 0.4, Reason: "No strong signal"}
}

// ApplyOverrideCap caps confidence and blocks auto-jump while a manual
// override window is active (spec §4.8).
func ApplyOverrideCap(s Suggestion, manualOverrideUntil *time.Time, now time.Time) (Suggestion, bool) {
	underOverride := manualOverrideUntil != nil && manualOverrideUntil.After(now)
	if underOverride && s.Confidence > 0.55 {
		s.Confidence = 0.55
	}
	return s, underOverride
}

// ShouldAutoJump decides whether auto_jump mode should move
// current_step_index in this mutation.
func ShouldAutoJump(mode models.AutoStepMode, confidence float64, underOverride bool) bool {
	return mode == models.AutoStepAutoJump && !underOverride && confidence >= 0.7
}

func latestStepIndexForType(events []models.CookSessionEvent, t models.EventType) (int, bool) {
	for _, e := range events {
		if e.Type == t && e.StepIndex != nil {
			return *e.StepIndex, true
		}
	}
	return 0, false
}

// runningTimerStep looks for a timer_start with no matching later
// timer_pause/timer_done/timer_delete for the same timer within the
// window, i.e. a timer still running.
func runningTimerStep(events []models.CookSessionEvent) (int, bool) {
	stopped := make(map[string]bool)
	for _, e := range events {
		switch e.Type {
		case models.EventTimerPause, models.EventTimerDone, models.EventTimerDelete:
			if e.TimerID != "" {
				stopped[e.TimerID] = true
			}
		}
	}
	for _, e := range events {
		if e.Type == models.EventTimerStart && e.TimerID != "" && !stopped[e.TimerID] && e.StepIndex != nil {
			return *e.StepIndex, true
		}
	}
	return 0, false
}

// fullyCompleteStep reports the step index of the newest check_step event
// in the window whose meta carries step_complete=true. The event log does
// not carry bullet counts, so the patch layer sets that flag when the
// check leaves every bullet of the step checked.
func fullyCompleteStep(events []models.CookSessionEvent) (int, bool) {
	for _, e := range events {
		if e.Type == models.EventCheckStep && e.StepIndex != nil && e.Meta != nil {
			if complete, ok := e.Meta["step_complete"].(bool); ok && complete {
				return *e.StepIndex, true
			}
		}
	}
	return 0, false
}

// repeatedCheckStep finds a step index with >=2 check_step events in the window.
func repeatedCheckStep(events []models.CookSessionEvent) (int, bool) {
	counts := make(map[int]int)
	for _, e := range events {
		if e.Type == models.EventCheckStep && e.StepIndex != nil {
			counts[*e.StepIndex]++
		}
	}
	best, bestCount := 0, 0
	for k, c := range counts {
		if c >= 2 && (c > bestCount || (c == bestCount && k < best)) {
			best, bestCount = k, c
		}
	}
	return best, bestCount >= 2
}
