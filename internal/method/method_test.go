package method_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/method"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

func minutes(m int) *int { return &m }

func steps() []models.RecipeStep {
	return []models.RecipeStep{
		{StepIndex: 0, Title: "Brown the meat", MinutesEst: minutes(10)},
		{StepIndex: 1, Title: "Simmer", MinutesEst: minutes(50)},
	}
}

func TestPreviewUnknownMethod(t *testing.T) {
	_, _, err := method.Preview(steps(), 60, "microwave")
	require.Error(t, err)
	var unknown *method.UnknownMethodError
	require.ErrorAs(t, err, &unknown)
}

func TestPreviewAirFryerShortensTime(t *testing.T) {
	preview, tradeoffs, err := method.Preview(steps(), 60, "air_fryer")
	require.NoError(t, err)
	require.Contains(t, preview[0].Title, "Air fryer:")
	require.Less(t, tradeoffs.TimeDeltaMin, 0)
	require.Equal(t, 8, *preview[0].MinutesEst)
}

func TestPreviewSlowCookerLengthensTime(t *testing.T) {
	_, tradeoffs, err := method.Preview(steps(), 60, "slow_cooker")
	require.NoError(t, err)
	require.Greater(t, tradeoffs.TimeDeltaMin, 0)
}

func TestApplyThenResetWithNoAdjustmentsClearsOverride(t *testing.T) {
	session := &models.CookSession{}
	preview, _, err := method.Preview(steps(), 60, "oven")
	require.NoError(t, err)

	method.Apply(session, "oven", preview)
	require.Equal(t, "oven", session.MethodKey)
	require.NotNil(t, session.StepsOverride)

	method.Reset(session, steps())
	require.Empty(t, session.MethodKey)
	require.Nil(t, session.StepsOverride)
}

func TestResetPreservesActiveAdjustments(t *testing.T) {
	session := &models.CookSession{
		AdjustmentsLog: []models.AdjustmentLogEntry{
			{
				AdjustmentID: "adj-1",
				Adjustment: models.Adjustment{
					StepIndex: 0,
					Title:     "Brown the meat (reduce salt)",
					Bullets:   []string{"less salt"},
				},
				BeforeStep: steps()[0],
			},
		},
	}
	preview, _, _ := method.Preview(steps(), 60, "oven")
	method.Apply(session, "oven", preview)

	method.Reset(session, steps())
	require.Empty(t, session.MethodKey)
	require.NotNil(t, session.StepsOverride)
	require.Equal(t, "Brown the meat (reduce salt)", session.StepsOverride[0].Title)
	require.Equal(t, "Simmer", session.StepsOverride[1].Title)
}
