package cooksession

import (
	"context"

	"github.com/tasteos/cook-session-engine/internal/apperr"
	"github.com/tasteos/cook-session-engine/internal/method"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// MethodPreviewResult is the read-only response to method/preview.
type MethodPreviewResult struct {
	StepsPreview []models.RecipeStep `json:"steps_preview"`
	Tradeoffs    method.Tradeoffs    `json:"tradeoffs"`
}

// MethodCatalogEntry describes one curated method for the GET /cook/methods listing.
type MethodCatalogEntry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// MethodCatalog returns the curated method table's keys (spec §6 GET /cook/methods).
func MethodCatalog() []MethodCatalogEntry {
	keys := method.Keys()
	out := make([]MethodCatalogEntry, len(keys))
	for i, k := range keys {
		out[i] = MethodCatalogEntry{Key: k, Label: method.Label(k)}
	}
	return out
}

// MethodPreview synthesizes a replacement step list and tradeoffs
// without mutating state (spec §4.10 method/preview).
func (s *Service) MethodPreview(ctx context.Context, workspaceID, sessionID, methodKey string) (*MethodPreviewResult, error) {
	session, err := s.Get(ctx, workspaceID, sessionID)
	if err != nil {
		return nil, err
	}
	recipe, err := s.store.GetRecipe(ctx, workspaceID, session.RecipeID)
	if err != nil {
		return nil, apperr.NotFound(err.Error())
	}
	effective := session.EffectiveSteps(recipe.Steps)

	preview, tradeoffs, err := method.Preview(effective, recipe.TimeMinutes, methodKey)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return &MethodPreviewResult{StepsPreview: preview, Tradeoffs: tradeoffs}, nil
}

// MethodApplyRequest is the body of method/apply: the preview result the
// client accepted.
type MethodApplyRequest struct {
	MethodKey     string              `json:"method_key"`
	StepsOverride []models.RecipeStep `json:"steps_override"`
}

// MethodApply sets method_key and steps_override (spec §4.10 method/apply).
func (s *Service) MethodApply(ctx context.Context, workspaceID, sessionID string, req MethodApplyRequest) (*models.CookSession, error) {
	return s.run(ctx, workspaceID, sessionID, func(ctx context.Context, session *models.CookSession, recipe *models.Recipe) (models.EventType, eventDetail, error) {
		method.Apply(session, req.MethodKey, req.StepsOverride)
		meta := map[string]interface{}{"method_key": req.MethodKey}
		return models.EventMethodApply, eventDetail{Meta: meta}, nil
	})
}

// MethodReset clears method_key, collapsing steps_override to whatever
// the adjustments log alone would produce (spec §4.10 method/reset).
func (s *Service) MethodReset(ctx context.Context, workspaceID, sessionID string) (*models.CookSession, error) {
	return s.run(ctx, workspaceID, sessionID, func(ctx context.Context, session *models.CookSession, recipe *models.Recipe) (models.EventType, eventDetail, error) {
		method.Reset(session, recipe.Steps)
		return models.EventMethodReset, eventDetail{}, nil
	})
}
