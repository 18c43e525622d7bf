// Package contracts defines the capability boundary between the cook
// session engine and AI-generated content. Every operation that can be
// enriched by an LLM also has a deterministic fallback, so callers never
// have to special-case AI unavailability — see spec §9, "AI calls with
// fallback".
package contracts

import (
	"context"
	"time"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// AIClient is the capability interface for LLM-backed enrichment.
// Implementations may call out to a real model provider; tests and the
// default wiring use a deterministic stub. Every method returns
// (result, ok) rather than an error: ok=false means "fall back",
// distinct from a hard failure the caller must surface.
type AIClient interface {
	// SuggestAdjustment proposes a step adjustment given the current
	// step and a free-text situation description (e.g. "this looks
	// overcooked already").
	SuggestAdjustment(ctx context.Context, step models.RecipeStep, situation string) (models.Adjustment, bool)

	// StepHelp returns a short tip for the given step.
	StepHelp(ctx context.Context, step models.RecipeStep) (string, bool)

	// Recap returns a one-line narrative summary of a finished session
	// given its deterministic stats.
	Recap(ctx context.Context, stats SessionStats) (string, bool)
}

// SessionStats is the deterministic input to Recap: enough signal to
// build a templated fallback sentence without calling an AI client.
type SessionStats struct {
	RecipeTitle     string
	StepsCompleted  int
	StepsTotal      int
	TimersUsed      int
	AdjustmentsMade int
	Elapsed         time.Duration
}

// NoopAIClient always falls back; used when no AI provider is
// configured. It is the default wired into CookSession so AI-assisted
// features degrade to their heuristic form rather than erroring.
type NoopAIClient struct{}

func (NoopAIClient) SuggestAdjustment(context.Context, models.RecipeStep, string) (models.Adjustment, bool) {
	return models.Adjustment{}, false
}

func (NoopAIClient) StepHelp(context.Context, models.RecipeStep) (string, bool) {
	return "", false
}

func (NoopAIClient) Recap(context.Context, SessionStats) (string, bool) {
	return "", false
}
