// Package cooksession implements the CookSession aggregate (spec §4.10):
// the single mutating surface that wires TimerModel, AdjustmentEngine,
// AutoStepInferencer, MethodSwitcher, EventLog, SessionBus, and the
// optimistic-concurrency retry loop (spec §7, Transient) around one
// another.
package cooksession

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/tasteos/cook-session-engine/internal/adjustment"
	"github.com/tasteos/cook-session-engine/internal/apperr"
	"github.com/tasteos/cook-session-engine/internal/autostep"
	"github.com/tasteos/cook-session-engine/internal/bus"
	"github.com/tasteos/cook-session-engine/internal/config"
	"github.com/tasteos/cook-session-engine/internal/eventlog"
	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/pkg/contracts"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// Service is the CookSession aggregate root's runtime: it loads/saves
// through Store, delegates to the component engines, and guarantees that
// every successful mutation increments state_version and appends exactly
// one event (spec §3 invariant 4).
type Service struct {
	store store.Store
	log   *eventlog.Log
	bus   *bus.Bus
	adj   *adjustment.Engine
	ai    contracts.AIClient
	retry config.RetryConfig
}

func New(s store.Store, log *eventlog.Log, b *bus.Bus, ai contracts.AIClient, retry config.RetryConfig) *Service {
	if ai == nil {
		ai = contracts.NoopAIClient{}
	}
	return &Service{store: s, log: log, bus: b, adj: adjustment.New(ai), ai: ai, retry: retry}
}

// EventLog exposes the append-only event log backing this service so
// read-only handlers (recent-events listing) can query it directly
// without the aggregate's retry/transaction machinery.
func (s *Service) EventLog() *eventlog.Log { return s.log }

// mutation describes one in-place change to a freshly loaded session. It
// must be safe to call more than once against successive fresh reads,
// since the retry loop reapplies it on every optimistic-concurrency
// conflict (spec §7, Transient).
type mutation func(ctx context.Context, session *models.CookSession, recipe *models.Recipe) (models.EventType, eventDetail, error)

// eventDetail carries the per-mutation fields EventLog needs beyond type
// and session/workspace id.
type eventDetail struct {
	StepIndex   *int
	BulletIndex *int
	TimerID     string
	Meta        map[string]interface{}
}

// run loads the session, applies fn, persists with optimistic
// concurrency (retrying on ErrConflict with exponential backoff up to
// retry.MaxRetries times), appends the event, and publishes on the bus.
func (s *Service) run(ctx context.Context, workspaceID, sessionID string, fn mutation) (*models.CookSession, error) {
	var result *models.CookSession
	var evType models.EventType
	var detail eventDetail

	op := func() error {
		session, err := s.store.GetCookSession(ctx, workspaceID, sessionID)
		if err != nil {
			var nf *store.ErrNotFound
			if errors.As(err, &nf) {
				return backoff.Permanent(apperr.NotFound(err.Error()))
			}
			return backoff.Permanent(apperr.Transient(err.Error()))
		}
		if session.Status != models.SessionActive {
			return backoff.Permanent(apperr.Gone("session is not active"))
		}

		recipe, err := s.store.GetRecipe(ctx, workspaceID, session.RecipeID)
		if err != nil {
			return backoff.Permanent(apperr.NotFound(err.Error()))
		}

		expectedVersion := session.StateVersion
		evType, detail, err = fn(ctx, session, recipe)
		if err != nil {
			var appErr *apperr.Error
			if errors.As(err, &appErr) && appErr.Kind != apperr.KindTransient {
				return backoff.Permanent(err)
			}
			return err
		}

		if err := validateInvariants(session, recipe); err != nil {
			return backoff.Permanent(err)
		}

		session.StateVersion = expectedVersion + 1
		session.UpdatedAt = time.Now().UTC()

		if err := s.store.UpdateCookSession(ctx, session, expectedVersion); err != nil {
			var conflict *store.ErrConflict
			if errors.As(err, &conflict) {
				return err // retryable: someone else wrote first
			}
			return backoff.Permanent(apperr.Transient(err.Error()))
		}

		result = session.Clone()
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.retry.InitialBackoff),
		backoff.WithMaxInterval(s.retry.MaxBackoff),
	), uint64(s.retry.MaxRetries))

	if err := backoff.Retry(op, bo); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		var conflict *store.ErrConflict
		if errors.As(err, &conflict) {
			return nil, apperr.Transient("exhausted retries on session version conflict: " + err.Error())
		}
		return nil, apperr.Transient(err.Error())
	}

	if _, err := s.log.Append(ctx, workspaceID, sessionID, evType, detail.StepIndex, detail.BulletIndex, detail.TimerID, detail.Meta); err != nil {
		// The state mutation already committed, but invariant 4 (spec §3:
		// "every successful mutation appends exactly one EventLog record")
		// was not met. Only publish-bus failures are swallowed (spec §7);
		// surface this one as Transient so the caller sees the mutation
		// as incomplete instead of silently losing the event.
		return nil, apperr.Transient("event log append failed: " + err.Error())
	}

	s.bus.Publish(sessionID, workspaceID, result.UpdatedAt)
	return result, nil
}

func validateInvariants(session *models.CookSession, recipe *models.Recipe) error {
	if session.ServingsBase < 1 || session.ServingsTarget < 1 {
		return apperr.Fatal("servings must be >= 1")
	}
	effective := session.EffectiveSteps(recipe.Steps)
	n := len(effective)
	if session.CurrentStepIndex < 0 || session.CurrentStepIndex >= n {
		return apperr.Validation("current_step_index out of range")
	}
	for stepIdx := range session.StepChecks {
		if stepIdx < 0 || stepIdx >= n {
			return apperr.Validation("step_checks references an out-of-range step")
		}
	}
	for _, t := range session.Timers {
		if t.StepIndex < 0 || t.StepIndex >= n {
			return apperr.Validation("timer references an out-of-range step")
		}
	}
	if session.AutoStepSuggestedIndex != nil {
		if *session.AutoStepSuggestedIndex < 0 || *session.AutoStepSuggestedIndex >= n {
			return apperr.Validation("auto_step_suggested_index out of range")
		}
	}
	return nil
}

// Start creates a new active session for recipe_id (spec §4.10 start).
func (s *Service) Start(ctx context.Context, workspaceID, recipeID string) (*models.CookSession, error) {
	recipe, err := s.store.GetRecipe(ctx, workspaceID, recipeID)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			return nil, apperr.NotFound(err.Error())
		}
		return nil, apperr.Transient(err.Error())
	}

	servings := recipe.Servings
	if servings < 1 {
		servings = 1
	}
	now := time.Now().UTC()
	session := &models.CookSession{
		ID:               uuid.NewString(),
		WorkspaceID:      workspaceID,
		RecipeID:         recipeID,
		Status:           models.SessionActive,
		StartedAt:        now,
		UpdatedAt:        now,
		CurrentStepIndex: 0,
		StepChecks:       map[int]map[int]bool{},
		ServingsBase:     servings,
		ServingsTarget:   servings,
		Timers:           map[string]*models.Timer{},
		AdjustmentsLog:   []models.AdjustmentLogEntry{},
		AutoStepMode:     models.AutoStepSuggest,
		StateVersion:     1,
	}
	if err := s.store.CreateCookSession(ctx, session); err != nil {
		return nil, apperr.Transient(err.Error())
	}
	if _, err := s.log.Append(ctx, workspaceID, session.ID, models.EventSessionStart, nil, nil, "", map[string]interface{}{"recipe_id": recipeID}); err != nil {
		return nil, apperr.Transient("event log append failed: " + err.Error())
	}
	s.bus.Publish(session.ID, workspaceID, now)
	return session.Clone(), nil
}

// Get returns the full session state (spec §4.10 get).
func (s *Service) Get(ctx context.Context, workspaceID, sessionID string) (*models.CookSession, error) {
	session, err := s.store.GetCookSession(ctx, workspaceID, sessionID)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			return nil, apperr.NotFound(err.Error())
		}
		return nil, apperr.Transient(err.Error())
	}
	return session, nil
}

// Active returns the single active session for a recipe, if any (spec §4.10 active).
func (s *Service) Active(ctx context.Context, workspaceID, recipeID string) (*models.CookSession, error) {
	sessions, err := s.store.ListActiveCookSessions(ctx, workspaceID)
	if err != nil {
		return nil, apperr.Transient(err.Error())
	}
	for i := range sessions {
		if sessions[i].RecipeID == recipeID {
			return &sessions[i], nil
		}
	}
	return nil, apperr.NotFound("no active session for recipe " + recipeID)
}

// rerunAutoStep re-evaluates AutoStepInferencer and writes its result
// into the session's auto_step_* fields, applying the auto_jump
// transition when eligible. It must be called whenever step checks,
// timers, or the current step change (spec §4.10 patch). pendingType and
// pendingDetail describe the sub-command in progress: its event has not
// been appended to the EventLog yet (the commit order is state-write
// then event-append, spec §5), so it is folded in as the newest event
// alongside the last ~19 already-persisted ones.
func (s *Service) rerunAutoStep(ctx context.Context, workspaceID, sessionID string, session *models.CookSession, pendingType models.EventType, pendingDetail eventDetail) {
	if !session.AutoStepEnabled {
		return
	}
	recent, err := s.log.Recent(ctx, workspaceID, sessionID, 19)
	if err != nil {
		recent = nil
	}
	pending := models.CookSessionEvent{
		Type:        pendingType,
		StepIndex:   pendingDetail.StepIndex,
		BulletIndex: pendingDetail.BulletIndex,
		TimerID:     pendingDetail.TimerID,
		Meta:        pendingDetail.Meta,
		CreatedAt:   time.Now().UTC(),
	}
	events := append([]models.CookSessionEvent{pending}, recent...)

	suggestion := autostep.Infer(events, session.CurrentStepIndex)
	capped, underOverride := autostep.ApplyOverrideCap(suggestion, session.ManualOverrideUntil, time.Now().UTC())

	idx := capped.SuggestedIndex
	session.AutoStepSuggestedIndex = &idx
	session.AutoStepConfidence = capped.Confidence
	session.AutoStepReason = capped.Reason

	if autostep.ShouldAutoJump(session.AutoStepMode, capped.Confidence, underOverride) {
		session.CurrentStepIndex = idx
	}
}
