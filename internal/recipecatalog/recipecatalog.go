// Package recipecatalog is a thread-safe read-through cache in front of the
// recipe store, seeded at startup with a small set of built-in recipes so a
// freshly started server has something to cook without an ingestion
// pipeline (recipe authoring is out of scope for this module, see
// pkg/models.Recipe).
package recipecatalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// Catalog caches recipes by workspace for the recipe read endpoints
// (GET /recipes, GET /recipes/{id}) so repeated reads don't round-trip
// the store. The cook session service reads recipes from the store
// directly, not through this cache.
type Catalog struct {
	mu    sync.RWMutex
	cache map[string]*models.Recipe // key: workspaceID+":"+recipeID
	store store.RecipeStore
}

// New wraps a RecipeStore with a read-through cache.
func New(s store.RecipeStore) *Catalog {
	return &Catalog{cache: make(map[string]*models.Recipe), store: s}
}

func key(workspaceID, recipeID string) string { return workspaceID + ":" + recipeID }

// Get returns a recipe, checking the cache before falling through to the store.
func (c *Catalog) Get(ctx context.Context, workspaceID, recipeID string) (*models.Recipe, error) {
	c.mu.RLock()
	r, ok := c.cache[key(workspaceID, recipeID)]
	c.mu.RUnlock()
	if ok {
		cp := *r
		return &cp, nil
	}

	r, err := c.store.GetRecipe(ctx, workspaceID, recipeID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[key(workspaceID, recipeID)] = r
	c.mu.Unlock()
	return r, nil
}

// List delegates to the store and refreshes the cache with the result.
func (c *Catalog) List(ctx context.Context, workspaceID string) ([]models.Recipe, error) {
	recipes, err := c.store.ListRecipes(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	for i := range recipes {
		cp := recipes[i]
		c.cache[key(workspaceID, recipes[i].ID)] = &cp
	}
	c.mu.Unlock()
	return recipes, nil
}

// Register creates a recipe in the store and populates the cache, used by
// Seed and by any future recipe-authoring surface.
func (c *Catalog) Register(ctx context.Context, recipe *models.Recipe) error {
	if err := c.store.CreateRecipe(ctx, recipe); err != nil {
		return err
	}
	c.mu.Lock()
	c.cache[key(recipe.WorkspaceID, recipe.ID)] = recipe
	c.mu.Unlock()
	return nil
}

// Invalidate drops a cached entry, used after any write that changes a
// recipe's steps or servings outside this package.
func (c *Catalog) Invalidate(workspaceID, recipeID string) {
	c.mu.Lock()
	delete(c.cache, key(workspaceID, recipeID))
	c.mu.Unlock()
}

// Seed registers the built-in demo recipes for workspaceID, skipping any
// whose ID already exists so repeated calls at every server startup are
// idempotent.
func (c *Catalog) Seed(ctx context.Context, workspaceID string) error {
	seeded := 0
	for _, r := range builtinRecipes(workspaceID) {
		if _, err := c.store.GetRecipe(ctx, workspaceID, r.ID); err == nil {
			continue
		}
		if err := c.Register(ctx, r); err != nil {
			return err
		}
		seeded++
	}
	log.Info().Int("recipes", seeded).Str("workspace_id", workspaceID).Msg("recipecatalog: seeded built-in recipes")
	return nil
}

func minutes(n int) *int { return &n }

// builtinRecipes returns a handful of starter recipes so a fresh workspace
// has something to cook immediately, the same role the teacher catalog's
// loadBuiltinDefaults plays for model capability data.
func builtinRecipes(workspaceID string) []*models.Recipe {
	return []*models.Recipe{
		{
			ID:          "tomato-soup",
			WorkspaceID: workspaceID,
			Title:       "Tomato Soup",
			Servings:    4,
			TimeMinutes: 45,
			Steps: []models.RecipeStep{
				{StepIndex: 0, Title: "Saute aromatics", Bullets: []string{"Heat oil over medium", "Add onion and garlic", "Cook until translucent"}, MinutesEst: minutes(8)},
				{StepIndex: 1, Title: "Simmer the base", Bullets: []string{"Add crushed tomatoes", "Add stock", "Simmer uncovered"}, MinutesEst: minutes(20)},
				{StepIndex: 2, Title: "Finish and blend", Bullets: []string{"Stir in cream", "Blend until smooth", "Season to taste"}, MinutesEst: minutes(10)},
			},
		},
		{
			ID:          "weeknight-chili",
			WorkspaceID: workspaceID,
			Title:       "Weeknight Chili",
			Servings:    6,
			TimeMinutes: 90,
			Steps: []models.RecipeStep{
				{StepIndex: 0, Title: "Brown the meat", Bullets: []string{"Heat pot over high", "Brown ground beef", "Drain excess fat"}, MinutesEst: minutes(10)},
				{StepIndex: 1, Title: "Build the chili", Bullets: []string{"Add onion and pepper", "Stir in spices", "Add beans and tomatoes"}, MinutesEst: minutes(15)},
				{StepIndex: 2, Title: "Simmer low and slow", Bullets: []string{"Reduce to low heat", "Cover partially", "Stir occasionally"}, MinutesEst: minutes(60)},
			},
		},
		{
			ID:          "sheet-pan-salmon",
			WorkspaceID: workspaceID,
			Title:       "Sheet Pan Salmon",
			Servings:    2,
			TimeMinutes: 30,
			Steps: []models.RecipeStep{
				{StepIndex: 0, Title: "Prep the pan", Bullets: []string{"Preheat oven to 425F", "Line sheet pan", "Toss vegetables with oil"}, MinutesEst: minutes(8)},
				{StepIndex: 1, Title: "Roast", Bullets: []string{"Add salmon to pan", "Season fillets", "Roast until flaky"}, MinutesEst: minutes(15)},
				{StepIndex: 2, Title: "Rest and plate", Bullets: []string{"Rest salmon briefly", "Squeeze lemon", "Plate and serve"}},
			},
		},
	}
}
