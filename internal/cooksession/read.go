package cooksession

import (
	"context"
	"strconv"
	"time"

	"github.com/tasteos/cook-session-engine/internal/apperr"
	"github.com/tasteos/cook-session-engine/pkg/contracts"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// SummaryResult is the response to GET .../summary (spec §4.10 summary:
// "highlights ..., stats, events_tail").
type SummaryResult struct {
	Recap          string                  `json:"recap"`
	RecapSource    models.AdjustmentSource `json:"recap_source"`
	MethodKey      string                  `json:"method_key,omitempty"`
	ServingsBase   int                       `json:"servings_base"`
	ServingsTarget int                       `json:"servings_target"`
	Adjustments    int                       `json:"adjustments_count"`
	Duration       float64                   `json:"duration_seconds"`
	StepsCompleted int                       `json:"steps_completed"`
	StepsTotal     int                       `json:"steps_total"`
	TimersUsed     int                       `json:"timers_used"`
	EventsTail     []models.CookSessionEvent `json:"events_tail"`
}

// Summary assembles session highlights, an AI-or-heuristic recap, and a
// trailing event slice (spec §4.10 summary).
func (s *Service) Summary(ctx context.Context, workspaceID, sessionID string) (*SummaryResult, error) {
	session, err := s.Get(ctx, workspaceID, sessionID)
	if err != nil {
		return nil, err
	}
	recipe, err := s.store.GetRecipe(ctx, workspaceID, session.RecipeID)
	if err != nil {
		return nil, apperr.NotFound(err.Error())
	}
	effective := session.EffectiveSteps(recipe.Steps)

	stepsCompleted := 0
	for i, step := range effective {
		bullets := session.StepChecks[i]
		if stepComplete(step, bullets) {
			stepsCompleted++
		}
	}

	end := time.Now().UTC()
	if session.CompletedAt != nil {
		end = *session.CompletedAt
	}

	stats := contracts.SessionStats{
		RecipeTitle:     recipe.Title,
		StepsCompleted:  stepsCompleted,
		StepsTotal:      len(effective),
		TimersUsed:      len(session.Timers),
		AdjustmentsMade: len(session.AdjustmentsLog),
		Elapsed:         end.Sub(session.StartedAt),
	}

	recap, source := s.recap(ctx, stats)

	tail, err := s.log.Recent(ctx, workspaceID, sessionID, 10)
	if err != nil {
		tail = nil
	}

	return &SummaryResult{
		Recap:          recap,
		RecapSource:    source,
		MethodKey:      session.MethodKey,
		ServingsBase:   session.ServingsBase,
		ServingsTarget: session.ServingsTarget,
		Adjustments:    len(session.AdjustmentsLog),
		Duration:       stats.Elapsed.Seconds(),
		StepsCompleted: stepsCompleted,
		StepsTotal:     len(effective),
		TimersUsed:     len(session.Timers),
		EventsTail:     tail,
	}, nil
}

func (s *Service) recap(ctx context.Context, stats contracts.SessionStats) (string, models.AdjustmentSource) {
	if text, ok := s.ai.Recap(ctx, stats); ok {
		return text, models.SourceAI
	}
	return heuristicRecap(stats), models.SourceHeuristic
}

func heuristicRecap(stats contracts.SessionStats) string {
	minutes := int(stats.Elapsed.Round(time.Minute).Minutes())
	msg := stats.RecipeTitle + ": completed " + strconv.Itoa(stats.StepsCompleted) + "/" + strconv.Itoa(stats.StepsTotal) + " steps"
	if minutes > 0 {
		msg += " in " + strconv.Itoa(minutes) + " min"
	}
	if stats.AdjustmentsMade > 0 {
		msg += ", " + strconv.Itoa(stats.AdjustmentsMade) + " adjustment(s) made"
	}
	if stats.TimersUsed > 0 {
		msg += ", " + strconv.Itoa(stats.TimersUsed) + " timer(s) used"
	}
	return msg
}

// NextActionKind distinguishes the suggestion surfaced by next_action.
type NextActionKind string

const (
	NextCheckBullet     NextActionKind = "check_bullet"
	NextStartTimer      NextActionKind = "start_timer"
	NextSuggestTimer    NextActionKind = "suggested_timer"
	NextGoToNextStep    NextActionKind = "next_step"
	NextCompleteSession NextActionKind = "complete_session"
)

// NextActionResult is the response to GET .../next (spec §4.10 next_action).
type NextActionResult struct {
	Kind        NextActionKind `json:"kind"`
	StepIndex   *int           `json:"step_index,omitempty"`
	BulletIndex *int           `json:"bullet_index,omitempty"`
	TimerID     string         `json:"timer_id,omitempty"`
	MinutesEst  *int           `json:"minutes_est,omitempty"`
}

// NextAction computes a deterministic priority-ordered suggestion (spec
// §4.10 next_action: "unchecked bullets on current step -> pending
// non-running timer -> step has unbuilt timer and a minutes_est -> go to
// next step -> complete_session").
func (s *Service) NextAction(ctx context.Context, workspaceID, sessionID string) (*NextActionResult, error) {
	session, err := s.Get(ctx, workspaceID, sessionID)
	if err != nil {
		return nil, err
	}
	recipe, err := s.store.GetRecipe(ctx, workspaceID, session.RecipeID)
	if err != nil {
		return nil, apperr.NotFound(err.Error())
	}
	effective := session.EffectiveSteps(recipe.Steps)
	cur := session.CurrentStepIndex

	if cur < len(effective) {
		step := effective[cur]
		checked := session.StepChecks[cur]
		for b := range step.Bullets {
			if !checked[b] {
				stepIdx, bulletIdx := cur, b
				return &NextActionResult{Kind: NextCheckBullet, StepIndex: &stepIdx, BulletIndex: &bulletIdx}, nil
			}
		}

		for _, t := range session.Timers {
			if t.StepIndex == cur && t.State != models.TimerRunning && t.State != models.TimerDone && t.State != models.TimerDeleted {
				stepIdx := cur
				return &NextActionResult{Kind: NextStartTimer, StepIndex: &stepIdx, TimerID: t.ID}, nil
			}
		}

		if step.MinutesEst != nil && !hasTimerForStep(session, cur) {
			stepIdx := cur
			minutes := *step.MinutesEst
			return &NextActionResult{Kind: NextSuggestTimer, StepIndex: &stepIdx, MinutesEst: &minutes}, nil
		}
	}

	if cur+1 < len(effective) {
		next := cur + 1
		return &NextActionResult{Kind: NextGoToNextStep, StepIndex: &next}, nil
	}

	return &NextActionResult{Kind: NextCompleteSession}, nil
}

func hasTimerForStep(session *models.CookSession, stepIndex int) bool {
	for _, t := range session.Timers {
		if t.StepIndex == stepIndex && t.State != models.TimerDeleted {
			return true
		}
	}
	return false
}
