package adjustment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/adjustment"
	"github.com/tasteos/cook-session-engine/pkg/contracts"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

func steps() []models.RecipeStep {
	return []models.RecipeStep{
		{StepIndex: 0, Title: "Saute onions", Bullets: []string{"Medium heat", "5 minutes"}},
		{StepIndex: 1, Title: "Add tomatoes", Bullets: []string{"Simmer 10 minutes"}},
	}
}

func TestPreviewOutOfRange(t *testing.T) {
	e := adjustment.New(nil)
	_, _, err := e.Preview(context.Background(), steps(), 5, "burning")
	require.Error(t, err)
	var rangeErr *adjustment.RangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestPreviewHeuristicFallback(t *testing.T) {
	e := adjustment.New(contracts.NoopAIClient{})
	adj, preview, err := e.Preview(context.Background(), steps(), 1, "burning")
	require.NoError(t, err)
	require.Equal(t, models.SourceHeuristic, adj.Source)
	require.Equal(t, 1, adj.StepIndex)
	require.Contains(t, preview[1].Title, "lower heat")
	require.Equal(t, "Saute onions", preview[0].Title)
}

func TestApplyRecordsBeforeStepAndUndoRestores(t *testing.T) {
	recipeSteps := steps()
	session := &models.CookSession{StepChecks: map[int]map[int]bool{}}

	e := adjustment.New(nil)
	adj, preview, err := e.Preview(context.Background(), recipeSteps, 1, "too_salty")
	require.NoError(t, err)

	require.NoError(t, adjustment.Apply(session, recipeSteps, "adj-1", 1, preview, adj))
	require.Len(t, session.AdjustmentsLog, 1)
	require.Equal(t, "Add tomatoes", session.AdjustmentsLog[0].BeforeStep.Title)
	require.NotNil(t, session.StepsOverride)
	require.Contains(t, session.StepsOverride[1].Title, "reduce salt")

	require.NoError(t, adjustment.Undo(session, recipeSteps, "adj-1"))
	require.NotNil(t, session.AdjustmentsLog[0].UndoneAt)
	require.Nil(t, session.StepsOverride)
}

func TestUndoMostRecentWhenIDOmitted(t *testing.T) {
	recipeSteps := steps()
	session := &models.CookSession{}
	e := adjustment.New(nil)

	adj0, preview0, _ := e.Preview(context.Background(), recipeSteps, 0, "burning")
	require.NoError(t, adjustment.Apply(session, recipeSteps, "adj-a", 0, preview0, adj0))

	afterFirst := session.StepsOverride
	adj1, preview1, _ := e.Preview(context.Background(), afterFirst, 1, "too_salty")
	require.NoError(t, adjustment.Apply(session, afterFirst, "adj-b", 1, preview1, adj1))

	require.NoError(t, adjustment.Undo(session, recipeSteps, ""))
	require.Nil(t, session.AdjustmentsLog[0].UndoneAt)
	require.NotNil(t, session.AdjustmentsLog[1].UndoneAt)
	require.Contains(t, session.StepsOverride[0].Title, "lower heat")
	require.Equal(t, "Add tomatoes", session.StepsOverride[1].Title)
}

func TestUndoUnknownIDErrors(t *testing.T) {
	session := &models.CookSession{}
	err := adjustment.Undo(session, steps(), "nope")
	require.Error(t, err)
	var undoErr *adjustment.UndoError
	require.ErrorAs(t, err, &undoErr)
}

func TestStepHelpFallback(t *testing.T) {
	e := adjustment.New(nil)
	tip, source := e.StepHelp(context.Background(), steps()[0])
	require.Equal(t, models.SourceHeuristic, source)
	require.Contains(t, tip, "Medium heat")
}
