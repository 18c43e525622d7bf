package cooksession

import (
	"context"
	"time"

	"github.com/tasteos/cook-session-engine/internal/apperr"
	"github.com/tasteos/cook-session-engine/internal/timer"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// manualOverrideWindow (spec §4.8: "a manual navigation sets
// manual_override_until = now + 3 minutes").
const manualOverrideWindow = 3 * time.Minute

// TimerCreateRequest is the timer_create patch sub-command.
type TimerCreateRequest struct {
	StepIndex   int    `json:"step_index"`
	Label       string `json:"label"`
	DurationSec int    `json:"duration_sec"`
	ClientID    string `json:"client_id,omitempty"`
}

// TimerActionRequest is the timer_action patch sub-command.
type TimerActionRequest struct {
	TimerID string `json:"timer_id"`
	Action  string `json:"action"` // start | pause | done | delete
}

// PatchRequest is the tagged union of CookSession patch sub-commands
// (spec §4.10 patch, §9 "Aggregate with many optional-field patches").
// Exactly one field is set per call: Patch rejects a body that names more
// than one sub-command, so each call produces exactly one event.
type PatchRequest struct {
	CurrentStepIndex *int                 `json:"current_step_index,omitempty"`
	ServingsTarget   *int                 `json:"servings_target,omitempty"`
	AutoStepEnabled  *bool                `json:"auto_step_enabled,omitempty"`
	AutoStepMode     *models.AutoStepMode `json:"auto_step_mode,omitempty"`
	StepChecksPatch  *StepChecksPatch     `json:"step_checks_patch,omitempty"`
	TimerCreate      *TimerCreateRequest  `json:"timer_create,omitempty"`
	TimerAction      *TimerActionRequest  `json:"timer_action,omitempty"`
}

// StepChecksPatch toggles one bullet's checked state.
type StepChecksPatch struct {
	StepIndex   int  `json:"step_index"`
	BulletIndex int  `json:"bullet_index"`
	Checked     bool `json:"checked"`
}

// Patch applies one PatchRequest to a session (spec §4.10 patch).
func (s *Service) Patch(ctx context.Context, workspaceID, sessionID string, req PatchRequest) (*models.CookSession, error) {
	set := 0
	for _, present := range []bool{req.CurrentStepIndex != nil, req.ServingsTarget != nil, req.AutoStepEnabled != nil, req.AutoStepMode != nil, req.StepChecksPatch != nil, req.TimerCreate != nil, req.TimerAction != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return nil, apperr.Validation("patch body names more than one sub-command")
	}
	return s.run(ctx, workspaceID, sessionID, func(ctx context.Context, session *models.CookSession, recipe *models.Recipe) (models.EventType, eventDetail, error) {
		switch {
		case req.CurrentStepIndex != nil:
			return s.patchCurrentStep(ctx, workspaceID, sessionID, session, recipe, *req.CurrentStepIndex)
		case req.ServingsTarget != nil:
			return s.patchServingsTarget(session, *req.ServingsTarget)
		case req.AutoStepEnabled != nil:
			return s.patchAutoStepEnabled(session, *req.AutoStepEnabled)
		case req.AutoStepMode != nil:
			return s.patchAutoStepMode(session, *req.AutoStepMode)
		case req.StepChecksPatch != nil:
			return s.patchStepChecks(ctx, workspaceID, sessionID, session, recipe, *req.StepChecksPatch)
		case req.TimerCreate != nil:
			return s.patchTimerCreate(ctx, workspaceID, sessionID, session, recipe, *req.TimerCreate)
		case req.TimerAction != nil:
			return s.patchTimerAction(ctx, workspaceID, sessionID, session, *req.TimerAction)
		default:
			return "", eventDetail{}, apperr.Validation("patch body names no recognized sub-command")
		}
	})
}

func (s *Service) patchCurrentStep(ctx context.Context, workspaceID, sessionID string, session *models.CookSession, recipe *models.Recipe, newIndex int) (models.EventType, eventDetail, error) {
	effectiveLen := len(session.EffectiveSteps(recipe.Steps))
	if newIndex < 0 || newIndex >= effectiveLen {
		return "", eventDetail{}, apperr.Validation("current_step_index out of range")
	}
	from := session.CurrentStepIndex
	session.CurrentStepIndex = newIndex
	now := time.Now().UTC()
	until := now.Add(manualOverrideWindow)
	session.ManualOverrideUntil = &until

	detail := eventDetail{StepIndex: &newIndex, Meta: map[string]interface{}{"from": from, "to": newIndex}}
	s.rerunAutoStep(ctx, workspaceID, sessionID, session, models.EventStepNavigate, detail)
	return models.EventStepNavigate, detail, nil
}

func (s *Service) patchServingsTarget(session *models.CookSession, target int) (models.EventType, eventDetail, error) {
	if target < 1 {
		return "", eventDetail{}, apperr.Validation("servings_target must be >= 1")
	}
	session.ServingsTarget = target
	return models.EventStepNavigate, eventDetail{Meta: map[string]interface{}{"servings_target": target}}, nil
}

func (s *Service) patchAutoStepEnabled(session *models.CookSession, enabled bool) (models.EventType, eventDetail, error) {
	session.AutoStepEnabled = enabled
	if !enabled {
		session.AutoStepSuggestedIndex = nil
		session.AutoStepConfidence = 0
		session.AutoStepReason = ""
	}
	return models.EventStepNavigate, eventDetail{Meta: map[string]interface{}{"auto_step_enabled": enabled}}, nil
}

func (s *Service) patchAutoStepMode(session *models.CookSession, mode models.AutoStepMode) (models.EventType, eventDetail, error) {
	if mode != models.AutoStepSuggest && mode != models.AutoStepAutoJump {
		return "", eventDetail{}, apperr.Validation("unknown auto_step_mode")
	}
	session.AutoStepMode = mode
	return models.EventStepNavigate, eventDetail{Meta: map[string]interface{}{"auto_step_mode": mode}}, nil
}

func (s *Service) patchStepChecks(ctx context.Context, workspaceID, sessionID string, session *models.CookSession, recipe *models.Recipe, patch StepChecksPatch) (models.EventType, eventDetail, error) {
	effective := session.EffectiveSteps(recipe.Steps)
	if patch.StepIndex < 0 || patch.StepIndex >= len(effective) {
		return "", eventDetail{}, apperr.Validation("step_checks_patch.step_index out of range")
	}
	if session.StepChecks == nil {
		session.StepChecks = map[int]map[int]bool{}
	}
	bullets, ok := session.StepChecks[patch.StepIndex]
	if !ok {
		bullets = map[int]bool{}
		session.StepChecks[patch.StepIndex] = bullets
	}
	if patch.Checked {
		bullets[patch.BulletIndex] = true
	} else {
		delete(bullets, patch.BulletIndex)
	}

	stepIdx := patch.StepIndex
	bulletIdx := patch.BulletIndex
	meta := map[string]interface{}{"checked": patch.Checked}
	if stepComplete(effective[patch.StepIndex], bullets) {
		meta["step_complete"] = true
	}
	detail := eventDetail{StepIndex: &stepIdx, BulletIndex: &bulletIdx, Meta: meta}
	s.rerunAutoStep(ctx, workspaceID, sessionID, session, models.EventCheckStep, detail)
	return models.EventCheckStep, detail, nil
}

func stepComplete(step models.RecipeStep, bullets map[int]bool) bool {
	if len(step.Bullets) == 0 {
		return false
	}
	for i := range step.Bullets {
		if !bullets[i] {
			return false
		}
	}
	return true
}

func (s *Service) patchTimerCreate(ctx context.Context, workspaceID, sessionID string, session *models.CookSession, recipe *models.Recipe, req TimerCreateRequest) (models.EventType, eventDetail, error) {
	effective := session.EffectiveSteps(recipe.Steps)
	if req.StepIndex < 0 || req.StepIndex >= len(effective) {
		return "", eventDetail{}, apperr.Validation("timer_create.step_index out of range")
	}
	if req.DurationSec <= 0 {
		return "", eventDetail{}, apperr.Validation("timer_create.duration_sec must be positive")
	}
	if session.Timers == nil {
		session.Timers = map[string]*models.Timer{}
	}
	t := timer.Create(session.Timers, req.Label, req.StepIndex, req.DurationSec, req.ClientID)
	session.Timers[t.ID] = t

	stepIdx := req.StepIndex
	detail := eventDetail{StepIndex: &stepIdx, TimerID: t.ID}
	s.rerunAutoStep(ctx, workspaceID, sessionID, session, models.EventTimerCreate, detail)
	return models.EventTimerCreate, detail, nil
}

func (s *Service) patchTimerAction(ctx context.Context, workspaceID, sessionID string, session *models.CookSession, req TimerActionRequest) (models.EventType, eventDetail, error) {
	t, ok := session.Timers[req.TimerID]
	if !ok {
		return "", eventDetail{}, apperr.NotFound("timer not found: " + req.TimerID)
	}

	now := time.Now().UTC()
	var evType models.EventType
	var err error
	switch req.Action {
	case "start":
		err = timer.Start(t, now)
		evType = models.EventTimerStart
	case "pause":
		err = timer.Pause(t, now)
		evType = models.EventTimerPause
	case "done":
		err = timer.Done(t)
		evType = models.EventTimerDone
	case "delete":
		timer.Delete(t)
		evType = models.EventTimerDelete
	default:
		return "", eventDetail{}, apperr.Validation("unknown timer action: " + req.Action)
	}
	if err != nil {
		return "", eventDetail{}, apperr.Validation(err.Error())
	}

	stepIdx := t.StepIndex
	detail := eventDetail{StepIndex: &stepIdx, TimerID: t.ID}
	s.rerunAutoStep(ctx, workspaceID, sessionID, session, evType, detail)
	return evType, detail, nil
}
