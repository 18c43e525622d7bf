// Package adjustment implements AdjustmentEngine: preview/apply/undo of
// step-level adjustments with an append-only log (spec §4.7), plus the
// step-help supplement from original_source/test_cook_step_help*.py.
package adjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/tasteos/cook-session-engine/pkg/contracts"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// RangeError marks an out-of-range step_index (spec §4.7 Preview "Fail
// when step_index is out of range").
type RangeError struct {
	StepIndex, Len int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("step_index %d out of range [0,%d)", e.StepIndex, e.Len)
}

// Engine generates adjustment previews and mutates a session's
// adjustments_log/steps_override in place. Callers own persistence.
type Engine struct {
	ai contracts.AIClient
}

func New(ai contracts.AIClient) *Engine {
	if ai == nil {
		ai = contracts.NoopAIClient{}
	}
	return &Engine{ai: ai}
}

// Preview computes a proposed replacement for effectiveSteps[stepIndex]
// given a free-form kind (e.g. "too_salty", "burning"). It does not
// mutate session state.
func (e *Engine) Preview(ctx context.Context, effectiveSteps []models.RecipeStep, stepIndex int, kind string) (models.Adjustment, []models.RecipeStep, error) {
	if stepIndex < 0 || stepIndex >= len(effectiveSteps) {
		return models.Adjustment{}, nil, &RangeError{StepIndex: stepIndex, Len: len(effectiveSteps)}
	}

	step := effectiveSteps[stepIndex]
	adj, ok := e.ai.SuggestAdjustment(ctx, step, kind)
	if !ok {
		adj = heuristicAdjustment(step, stepIndex, kind)
	}
	adj.StepIndex = stepIndex

	preview := make([]models.RecipeStep, len(effectiveSteps))
	copy(preview, effectiveSteps)
	preview[stepIndex] = models.RecipeStep{
		StepIndex:  stepIndex,
		Title:      adj.Title,
		Bullets:    adj.Bullets,
		MinutesEst: adj.MinutesEst,
	}
	return adj, preview, nil
}

// heuristicAdjustment is the deterministic fallback used when the
// AIClient is unavailable (spec §9, "AI calls with fallback").
func heuristicAdjustment(step models.RecipeStep, stepIndex int, kind string) models.Adjustment {
	title := step.Title
	bullets := append([]string(nil), step.Bullets...)
	switch kind {
	case "too_salty":
		title = step.Title + " (reduce salt)"
		bullets = append(bullets, "Taste before adding more salt; consider a splash of acid or dairy to balance.")
	case "burning":
		title = step.Title + " (lower heat)"
		bullets = append(bullets, "Reduce heat and stir more frequently.")
	default:
		title = step.Title + " (adjusted)"
		bullets = append(bullets, fmt.Sprintf("Adjusted for: %s", kind))
	}
	return models.Adjustment{
		StepIndex:  stepIndex,
		Kind:       kind,
		Title:      title,
		Bullets:    bullets,
		MinutesEst: step.MinutesEst,
		Confidence: 0.5,
		Source:     models.SourceHeuristic,
	}
}

// Apply records the before_step snapshot and sets steps_override (spec
// §4.7 Apply). effectiveSteps is the session's current effective list;
// stepsOverride is the caller-supplied full replacement list.
func Apply(session *models.CookSession, effectiveSteps []models.RecipeStep, adjustmentID string, stepIndex int, stepsOverride []models.RecipeStep, adj models.Adjustment) error {
	if stepIndex < 0 || stepIndex >= len(effectiveSteps) {
		return &RangeError{StepIndex: stepIndex, Len: len(effectiveSteps)}
	}
	before := effectiveSteps[stepIndex]

	session.AdjustmentsLog = append(session.AdjustmentsLog, models.AdjustmentLogEntry{
		AdjustmentID: adjustmentID,
		Adjustment:   adj,
		BeforeStep:   before,
		AppliedAt:    time.Now().UTC(),
	})
	session.StepsOverride = append([]models.RecipeStep(nil), stepsOverride...)
	return nil
}

// UndoError marks an undo request that names an unknown or
// already-undone adjustment.
type UndoError struct {
	AdjustmentID string
}

func (e *UndoError) Error() string {
	return fmt.Sprintf("adjustment %q not found or already undone", e.AdjustmentID)
}

// Undo restores the named (or, if empty, most-recent non-undone) entry's
// before_step into the effective step list (spec §4.7 Undo).
// recipeSteps is the session's recipe-level steps, used to detect when
// restoration equals the original so steps_override can be cleared.
func Undo(session *models.CookSession, recipeSteps []models.RecipeStep, adjustmentID string) error {
	idx := -1
	if adjustmentID == "" {
		for i := len(session.AdjustmentsLog) - 1; i >= 0; i-- {
			if session.AdjustmentsLog[i].UndoneAt == nil {
				idx = i
				break
			}
		}
	} else {
		for i, e := range session.AdjustmentsLog {
			if e.AdjustmentID == adjustmentID && e.UndoneAt == nil {
				idx = i
				break
			}
		}
	}
	if idx == -1 {
		return &UndoError{AdjustmentID: adjustmentID}
	}

	entry := &session.AdjustmentsLog[idx]
	now := time.Now().UTC()
	entry.UndoneAt = &now

	effective := models.EffectiveSteps(recipeSteps, session.StepsOverride)
	restored := make([]models.RecipeStep, len(effective))
	copy(restored, effective)
	stepIdx := entry.Adjustment.StepIndex
	if stepIdx >= 0 && stepIdx < len(restored) {
		restored[stepIdx] = entry.BeforeStep
	}

	if stepsEqual(restored, recipeSteps) {
		session.StepsOverride = nil
	} else {
		session.StepsOverride = restored
	}
	return nil
}

func stepsEqual(a, b []models.RecipeStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Title != b[i].Title {
			return false
		}
		if len(a[i].Bullets) != len(b[i].Bullets) {
			return false
		}
		for j := range a[i].Bullets {
			if a[i].Bullets[j] != b[i].Bullets[j] {
				return false
			}
		}
	}
	return true
}

// StepHelp returns a short tip for the given step, falling back to a
// templated hint (spec SPEC_FULL §4, step help supplement).
func (e *Engine) StepHelp(ctx context.Context, step models.RecipeStep) (string, models.AdjustmentSource) {
	if tip, ok := e.ai.StepHelp(ctx, step); ok {
		return tip, models.SourceAI
	}
	if len(step.Bullets) > 0 {
		return fmt.Sprintf("Focus on: %s", step.Bullets[0]), models.SourceHeuristic
	}
	return fmt.Sprintf("Follow the instructions for %q carefully.", step.Title), models.SourceHeuristic
}
