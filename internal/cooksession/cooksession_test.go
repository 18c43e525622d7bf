package cooksession_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/bus"
	"github.com/tasteos/cook-session-engine/internal/config"
	"github.com/tasteos/cook-session-engine/internal/cooksession"
	"github.com/tasteos/cook-session-engine/internal/eventlog"
	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/pkg/contracts"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

func newService(t *testing.T) (*cooksession.Service, store.Store, *models.Recipe) {
	t.Helper()
	os.Unsetenv("TASTEOS_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	minutes := 10
	recipe := &models.Recipe{
		ID:          "r1",
		WorkspaceID: "ws1",
		Title:       "Tomato Soup",
		Servings:    4,
		TimeMinutes: 60,
		Steps: []models.RecipeStep{
			{StepIndex: 0, Title: "Saute onions", Bullets: []string{"Heat oil", "Add onions"}, MinutesEst: &minutes},
			{StepIndex: 1, Title: "Add tomatoes", Bullets: []string{"Add tomatoes", "Simmer"}},
		},
	}
	require.NoError(t, s.CreateRecipe(context.Background(), recipe))

	retry := config.RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	svc := cooksession.New(s, eventlog.New(s), bus.New(), contracts.NoopAIClient{}, retry)
	return svc, s, recipe
}

func TestStartInitializesServingsAndVersion(t *testing.T) {
	svc, _, _ := newService(t)
	session, err := svc.Start(context.Background(), "ws1", "r1")
	require.NoError(t, err)
	require.Equal(t, models.SessionActive, session.Status)
	require.Equal(t, 4, session.ServingsBase)
	require.Equal(t, 4, session.ServingsTarget)
	require.Equal(t, int64(1), session.StateVersion)
	require.Equal(t, 0, session.CurrentStepIndex)
}

func TestPatchCurrentStepIncrementsVersionAndEmitsEvent(t *testing.T) {
	svc, s, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	idx := 1
	updated, err := svc.Patch(ctx, "ws1", session.ID, cooksession.PatchRequest{CurrentStepIndex: &idx})
	require.NoError(t, err)
	require.Equal(t, 1, updated.CurrentStepIndex)
	require.Equal(t, int64(2), updated.StateVersion)

	events, err := s.ListRecentEvents(ctx, "ws1", session.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// The store lists the window oldest first; the navigate event is newest.
	require.Equal(t, models.EventStepNavigate, events[1].Type)
}

func TestPatchCurrentStepOutOfRangeRejected(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	idx := 5
	_, err = svc.Patch(ctx, "ws1", session.ID, cooksession.PatchRequest{CurrentStepIndex: &idx})
	require.Error(t, err)
}

func TestTimerCreateAndStart(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	session, err = svc.Patch(ctx, "ws1", session.ID, cooksession.PatchRequest{
		TimerCreate: &cooksession.TimerCreateRequest{StepIndex: 0, Label: "Boil", DurationSec: 300},
	})
	require.NoError(t, err)
	require.Len(t, session.Timers, 1)

	var timerID string
	for id := range session.Timers {
		timerID = id
	}
	session, err = svc.Patch(ctx, "ws1", session.ID, cooksession.PatchRequest{
		TimerAction: &cooksession.TimerActionRequest{TimerID: timerID, Action: "start"},
	})
	require.NoError(t, err)
	require.Equal(t, models.TimerRunning, session.Timers[timerID].State)
	require.NotNil(t, session.Timers[timerID].DueAt)
}

func TestAdjustPreviewApplyUndoRoundTrip(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	preview, err := svc.AdjustPreview(ctx, "ws1", session.ID, 0, "too_salty")
	require.NoError(t, err)
	require.NotEmpty(t, preview.Adjustment.ID)

	session, err = svc.AdjustApply(ctx, "ws1", session.ID, cooksession.AdjustApplyRequest{
		StepIndex:     0,
		Adjustment:    preview.Adjustment,
		StepsOverride: preview.StepsPreview,
	})
	require.NoError(t, err)
	require.Len(t, session.AdjustmentsLog, 1)
	require.Contains(t, session.StepsOverride[0].Title, "reduce salt")

	session, err = svc.AdjustUndo(ctx, "ws1", session.ID, preview.Adjustment.ID)
	require.NoError(t, err)
	require.Nil(t, session.StepsOverride)
	require.NotNil(t, session.AdjustmentsLog[0].UndoneAt)
}

func TestMethodPreviewApplyReset(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	preview, err := svc.MethodPreview(ctx, "ws1", session.ID, "air_fryer")
	require.NoError(t, err)
	require.Less(t, preview.Tradeoffs.TimeDeltaMin, 0)

	session, err = svc.MethodApply(ctx, "ws1", session.ID, cooksession.MethodApplyRequest{
		MethodKey:     "air_fryer",
		StepsOverride: preview.StepsPreview,
	})
	require.NoError(t, err)
	require.Equal(t, "air_fryer", session.MethodKey)

	session, err = svc.MethodReset(ctx, "ws1", session.ID)
	require.NoError(t, err)
	require.Empty(t, session.MethodKey)
	require.Nil(t, session.StepsOverride)
}

func TestCompleteThenMutateIsGone(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	session, err = svc.Complete(ctx, "ws1", session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionDone, session.Status)
	require.NotNil(t, session.CompletedAt)

	idx := 1
	_, err = svc.Patch(ctx, "ws1", session.ID, cooksession.PatchRequest{CurrentStepIndex: &idx})
	require.Error(t, err)
}

func TestNextActionPrioritizesUncheckedBullets(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	action, err := svc.NextAction(ctx, "ws1", session.ID)
	require.NoError(t, err)
	require.Equal(t, cooksession.NextCheckBullet, action.Kind)
}

func TestSummaryProducesHeuristicRecap(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, "ws1", session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SourceHeuristic, summary.RecapSource)
	require.Contains(t, summary.Recap, "Tomato Soup")
}

func TestActiveFindsStartedSession(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	started, err := svc.Start(ctx, "ws1", "r1")
	require.NoError(t, err)

	active, err := svc.Active(ctx, "ws1", "r1")
	require.NoError(t, err)
	require.Equal(t, started.ID, active.ID)
}
