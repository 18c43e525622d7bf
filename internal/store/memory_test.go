package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// newTestStore creates a fresh in-memory store for tests with no
// persistence, keeping it off the real TASTEOS_DATA_DIR.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	os.Unsetenv("TASTEOS_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetRecipe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recipe := &models.Recipe{
		ID:          "r1",
		WorkspaceID: "ws1",
		Title:       "Soup",
		Servings:    4,
		Steps: []models.RecipeStep{
			{StepIndex: 0, Title: "Boil water", Bullets: []string{"full heat"}},
		},
	}
	require.NoError(t, s.CreateRecipe(ctx, recipe))

	got, err := s.GetRecipe(ctx, "ws1", "r1")
	require.NoError(t, err)
	require.Equal(t, "Soup", got.Title)
	require.Len(t, got.Steps, 1)

	_, err = s.GetRecipe(ctx, "ws1", "missing")
	require.Error(t, err)
}

func TestCookSessionCreateAndOptimisticUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &models.CookSession{
		ID:           "s1",
		WorkspaceID:  "ws1",
		RecipeID:     "r1",
		Status:       models.SessionActive,
		StepChecks:   map[int]map[int]bool{},
		Timers:       map[string]*models.Timer{},
		StateVersion: 0,
	}
	require.NoError(t, s.CreateCookSession(ctx, sess))

	got, err := s.GetCookSession(ctx, "ws1", "s1")
	require.NoError(t, err)
	require.Equal(t, int64(0), got.StateVersion)

	got.CurrentStepIndex = 1
	got.StateVersion = 1
	require.NoError(t, s.UpdateCookSession(ctx, got, 0))

	// Stale expected version is rejected.
	stale := got.Clone()
	stale.StateVersion = 2
	err = s.UpdateCookSession(ctx, stale, 0)
	require.Error(t, err)
	var conflict *store.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestEventLogAppendAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		idx := i
		require.NoError(t, s.AppendEvent(ctx, &models.CookSessionEvent{
			ID:          "e" + string(rune('0'+i)),
			WorkspaceID: "ws1",
			SessionID:   "s1",
			Type:        models.EventStepNavigate,
			StepIndex:   &idx,
		}))
	}

	recent, err := s.ListRecentEvents(ctx, "ws1", "s1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, 3, *recent[0].StepIndex)
	require.Equal(t, 4, *recent[1].StepIndex)
}

func TestDensityOverrideCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	override := &models.IngredientDensityOverride{
		ID:            "d1",
		WorkspaceID:   "ws1",
		IngredientKey: "flour",
		DisplayName:   "All-purpose flour",
		DensityGPerML: 0.55,
	}
	require.NoError(t, s.UpsertDensityOverride(ctx, override))

	got, err := s.GetDensityOverride(ctx, "ws1", "flour")
	require.NoError(t, err)
	require.Equal(t, 0.55, got.DensityGPerML)

	byID, err := s.GetDensityOverrideByID(ctx, "ws1", "d1")
	require.NoError(t, err)
	require.Equal(t, "flour", byID.IngredientKey)

	list, err := s.ListDensityOverrides(ctx, "ws1", "flo")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteDensityOverrideByID(ctx, "ws1", "d1"))
	_, err = s.GetDensityOverride(ctx, "ws1", "flour")
	require.Error(t, err)
	_, err = s.GetDensityOverrideByID(ctx, "ws1", "d1")
	require.Error(t, err)
}
