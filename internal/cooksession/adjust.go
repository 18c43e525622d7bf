package cooksession

import (
	"context"

	"github.com/google/uuid"

	"github.com/tasteos/cook-session-engine/internal/adjustment"
	"github.com/tasteos/cook-session-engine/internal/apperr"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// AdjustPreviewResult is the read-only response to adjust/preview.
type AdjustPreviewResult struct {
	Adjustment   models.Adjustment   `json:"adjustment"`
	StepsPreview []models.RecipeStep `json:"steps_preview"`
}

// AdjustApplyRequest is the body of adjust/apply: normally the verbatim
// adjustment + steps_preview returned by a prior adjust/preview call
// (spec §6 end-to-end scenario 2).
type AdjustApplyRequest struct {
	StepIndex     int                 `json:"step_index"`
	Adjustment    models.Adjustment   `json:"adjustment"`
	StepsOverride []models.RecipeStep `json:"steps_override"`
}

// AdjustPreview computes a proposed replacement step without mutating
// state (spec §4.10 adjust/preview delegating to AdjustmentEngine).
func (s *Service) AdjustPreview(ctx context.Context, workspaceID, sessionID string, stepIndex int, kind string) (*AdjustPreviewResult, error) {
	session, err := s.Get(ctx, workspaceID, sessionID)
	if err != nil {
		return nil, err
	}
	recipe, err := s.store.GetRecipe(ctx, workspaceID, session.RecipeID)
	if err != nil {
		return nil, apperr.NotFound(err.Error())
	}
	effective := session.EffectiveSteps(recipe.Steps)

	adj, preview, err := s.adj.Preview(ctx, effective, stepIndex, kind)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	adj.ID = uuid.NewString()
	return &AdjustPreviewResult{Adjustment: adj, StepsPreview: preview}, nil
}

// AdjustApply records the adjustment and replaces steps_override (spec §4.10 adjust/apply).
func (s *Service) AdjustApply(ctx context.Context, workspaceID, sessionID string, req AdjustApplyRequest) (*models.CookSession, error) {
	if req.Adjustment.ID == "" {
		req.Adjustment.ID = uuid.NewString()
	}
	return s.run(ctx, workspaceID, sessionID, func(ctx context.Context, session *models.CookSession, recipe *models.Recipe) (models.EventType, eventDetail, error) {
		effective := session.EffectiveSteps(recipe.Steps)
		if err := adjustment.Apply(session, effective, req.Adjustment.ID, req.StepIndex, req.StepsOverride, req.Adjustment); err != nil {
			return "", eventDetail{}, apperr.Validation(err.Error())
		}
		stepIdx := req.StepIndex
		meta := map[string]interface{}{"adjustment_id": req.Adjustment.ID, "kind": req.Adjustment.Kind}
		return models.EventAdjustApply, eventDetail{StepIndex: &stepIdx, Meta: meta}, nil
	})
}

// AdjustUndo restores the named (or most recent) non-undone entry's
// before_step (spec §4.10 adjust/undo).
func (s *Service) AdjustUndo(ctx context.Context, workspaceID, sessionID, adjustmentID string) (*models.CookSession, error) {
	return s.run(ctx, workspaceID, sessionID, func(ctx context.Context, session *models.CookSession, recipe *models.Recipe) (models.EventType, eventDetail, error) {
		if err := adjustment.Undo(session, recipe.Steps, adjustmentID); err != nil {
			return "", eventDetail{}, apperr.Validation(err.Error())
		}
		meta := map[string]interface{}{"adjustment_id": adjustmentID}
		return models.EventAdjustUndo, eventDetail{Meta: meta}, nil
	})
}
