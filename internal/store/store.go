// Package store provides the storage interface and in-memory
// implementation backing the cook session engine.
package store

import (
	"context"
	"time"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// Store is the primary storage interface for the service. Handler and
// engine code depends on this interface so tests can swap in fakes
// without touching production wiring.
type Store interface {
	RecipeStore
	CookSessionStore
	EventStore
	DensityOverrideStore

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Recipe Store ────────────────────────────────────────────

// RecipeStore is the read-mostly collaborator CookSession reads recipes
// through. Recipe ingestion/authoring is out of scope for this engine
// (spec §1 Non-goals); this is the thin seam the aggregate depends on.
type RecipeStore interface {
	GetRecipe(ctx context.Context, workspaceID, recipeID string) (*models.Recipe, error)
	CreateRecipe(ctx context.Context, recipe *models.Recipe) error
	ListRecipes(ctx context.Context, workspaceID string) ([]models.Recipe, error)
}

// ── CookSession Store ───────────────────────────────────────

type CookSessionStore interface {
	GetCookSession(ctx context.Context, workspaceID, id string) (*models.CookSession, error)
	CreateCookSession(ctx context.Context, session *models.CookSession) error
	// UpdateCookSession performs an optimistic compare-and-swap on
	// StateVersion: it fails with ErrConflict if the stored version does
	// not equal expectedVersion, so CookSession's retry loop (spec §7,
	// Transient) can re-read and reapply.
	UpdateCookSession(ctx context.Context, session *models.CookSession, expectedVersion int64) error
	ListActiveCookSessions(ctx context.Context, workspaceID string) ([]models.CookSession, error)
}

// ── Event Store ─────────────────────────────────────────────

type EventStore interface {
	AppendEvent(ctx context.Context, event *models.CookSessionEvent) error
	ListRecentEvents(ctx context.Context, workspaceID, sessionID string, limit int) ([]models.CookSessionEvent, error)
}

// ── Density Override Store ──────────────────────────────────

type DensityOverrideStore interface {
	GetDensityOverride(ctx context.Context, workspaceID, ingredientKey string) (*models.IngredientDensityOverride, error)
	GetDensityOverrideByID(ctx context.Context, workspaceID, id string) (*models.IngredientDensityOverride, error)
	UpsertDensityOverride(ctx context.Context, override *models.IngredientDensityOverride) error
	ListDensityOverrides(ctx context.Context, workspaceID, query string) ([]models.IngredientDensityOverride, error)
	DeleteDensityOverrideByID(ctx context.Context, workspaceID, id string) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrConflict is returned by UpdateCookSession when the expected
// StateVersion does not match the stored one — the Transient case of
// the error taxonomy (spec §7), retried by the caller.
type ErrConflict struct {
	Entity string
	Key    string
}

func (e *ErrConflict) Error() string {
	return e.Entity + " version conflict: " + e.Key
}

// ── Filter helpers ──────────────────────────────────────────

// ListFilter provides common pagination/filter options.
type ListFilter struct {
	Limit  int
	Offset int
	Since  *time.Time
}
