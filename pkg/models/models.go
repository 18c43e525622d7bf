// Package models holds the data shapes shared across the cook session
// engine: recipes (the external input), cook sessions (the aggregate),
// timers, adjustments, events, and density overrides.
package models

import "time"

// ── Recipe (external input to the core) ─────────────────────

// RecipeStep is one step of a Recipe's ordered step list.
type RecipeStep struct {
	StepIndex  int      `json:"step_index"`
	Title      string   `json:"title"`
	Bullets    []string `json:"bullets"`
	MinutesEst *int     `json:"minutes_est,omitempty"`
}

// Recipe is read-only from the cook session engine's point of view;
// ingestion and authoring live outside this module's scope.
type Recipe struct {
	ID          string       `json:"id" db:"id"`
	WorkspaceID string       `json:"workspace_id" db:"workspace_id"`
	Title       string       `json:"title" db:"title"`
	Servings    int          `json:"servings" db:"servings"`
	TimeMinutes int          `json:"time_minutes" db:"time_minutes"`
	Steps       []RecipeStep `json:"steps"`
}

// EffectiveSteps returns override when non-nil, else the recipe's own
// steps. See GLOSSARY: "Effective steps".
func EffectiveSteps(recipeSteps []RecipeStep, override []RecipeStep) []RecipeStep {
	if override != nil {
		return override
	}
	return recipeSteps
}

// ── CookSession ──────────────────────────────────────────────

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionDone      SessionStatus = "done"
	SessionAbandoned SessionStatus = "abandoned"
)

type AutoStepMode string

const (
	AutoStepSuggest  AutoStepMode = "suggest"
	AutoStepAutoJump AutoStepMode = "auto_jump"
)

// AdjustmentSource distinguishes how an adjustment/preview/recap was
// produced. Callers must not assume "ai" — see spec §9, AI calls with
// fallback.
type AdjustmentSource string

const (
	SourceAI        AdjustmentSource = "ai"
	SourceHeuristic AdjustmentSource = "heuristic"
	SourceUser      AdjustmentSource = "user"
	SourceTest      AdjustmentSource = "test"
	SourceMock      AdjustmentSource = "mock"
)

// Adjustment is a proposed or applied step-level change.
type Adjustment struct {
	ID         string           `json:"id"`
	StepIndex  int              `json:"step_index"`
	Kind       string           `json:"kind"`
	Title      string           `json:"title"`
	Bullets    []string         `json:"bullets"`
	MinutesEst *int             `json:"minutes_est,omitempty"`
	Confidence float64          `json:"confidence"`
	Source     AdjustmentSource `json:"source"`
}

// AdjustmentLogEntry records an applied adjustment plus enough state to
// undo it later. Append-only: undo sets UndoneAt, never removes entries.
type AdjustmentLogEntry struct {
	AdjustmentID string     `json:"adjustment_id"`
	Adjustment   Adjustment `json:"adjustment"`
	BeforeStep   RecipeStep `json:"before_step"`
	AppliedAt    time.Time  `json:"applied_at"`
	UndoneAt     *time.Time `json:"undone_at,omitempty"`
}

// CookSession is the aggregate root for a single user's cooking run.
type CookSession struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	RecipeID    string `json:"recipe_id" db:"recipe_id"`

	Status      SessionStatus `json:"status" db:"status"`
	StartedAt   time.Time     `json:"started_at" db:"started_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	EndedReason string        `json:"ended_reason,omitempty" db:"ended_reason"`

	CurrentStepIndex int                  `json:"current_step_index"`
	StepChecks       map[int]map[int]bool `json:"step_checks"`
	ServingsBase     int                  `json:"servings_base"`
	ServingsTarget   int                  `json:"servings_target"`

	Timers map[string]*Timer `json:"timers"`

	MethodKey      string               `json:"method_key,omitempty"`
	StepsOverride  []RecipeStep         `json:"steps_override,omitempty"`
	AdjustmentsLog []AdjustmentLogEntry `json:"adjustments_log"`

	AutoStepEnabled        bool         `json:"auto_step_enabled"`
	AutoStepMode           AutoStepMode `json:"auto_step_mode"`
	AutoStepSuggestedIndex *int         `json:"auto_step_suggested_index,omitempty"`
	AutoStepConfidence     float64      `json:"auto_step_confidence"`
	AutoStepReason         string       `json:"auto_step_reason,omitempty"`
	ManualOverrideUntil    *time.Time   `json:"manual_override_until,omitempty"`

	StateVersion int64 `json:"state_version"`
}

// EffectiveSteps returns steps_override if set, else the caller-supplied
// recipe steps.
func (s *CookSession) EffectiveSteps(recipeSteps []RecipeStep) []RecipeStep {
	return EffectiveSteps(recipeSteps, s.StepsOverride)
}

// Clone makes a deep-enough copy for safe handoff outside the session's
// write lock (maps and slices are copied one level deep).
func (s *CookSession) Clone() *CookSession {
	cp := *s
	cp.StepChecks = make(map[int]map[int]bool, len(s.StepChecks))
	for k, v := range s.StepChecks {
		inner := make(map[int]bool, len(v))
		for bk, bv := range v {
			inner[bk] = bv
		}
		cp.StepChecks[k] = inner
	}
	cp.Timers = make(map[string]*Timer, len(s.Timers))
	for k, v := range s.Timers {
		t := *v
		cp.Timers[k] = &t
	}
	if s.StepsOverride != nil {
		cp.StepsOverride = append([]RecipeStep(nil), s.StepsOverride...)
	}
	cp.AdjustmentsLog = append([]AdjustmentLogEntry(nil), s.AdjustmentsLog...)
	if s.AutoStepSuggestedIndex != nil {
		idx := *s.AutoStepSuggestedIndex
		cp.AutoStepSuggestedIndex = &idx
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	if s.ManualOverrideUntil != nil {
		t := *s.ManualOverrideUntil
		cp.ManualOverrideUntil = &t
	}
	return &cp
}

// ── Timer ────────────────────────────────────────────────────

type TimerState string

const (
	TimerCreated TimerState = "created"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
	TimerDone    TimerState = "done"
	TimerDeleted TimerState = "deleted"
)

// Timer is a user-managed cooking timer scoped to a session step.
type Timer struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	StepIndex   int        `json:"step_index"`
	DurationSec int        `json:"duration_sec"`
	State       TimerState `json:"state"`

	DueAt        *time.Time `json:"due_at,omitempty"`
	RemainingSec *int       `json:"remaining_sec,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`

	ClientID string `json:"client_id,omitempty"`
}

// ── CookSessionEvent ─────────────────────────────────────────

type EventType string

const (
	EventSessionStart    EventType = "session_start"
	EventStepNavigate    EventType = "step_navigate"
	EventCheckStep       EventType = "check_step"
	EventTimerCreate     EventType = "timer_create"
	EventTimerStart      EventType = "timer_start"
	EventTimerPause      EventType = "timer_pause"
	EventTimerDone       EventType = "timer_done"
	EventTimerDelete     EventType = "timer_delete"
	EventAdjustApply     EventType = "adjust_apply"
	EventAdjustUndo      EventType = "adjust_undo"
	EventMethodApply     EventType = "method_apply"
	EventMethodReset     EventType = "method_reset"
	EventSessionComplete EventType = "session_complete"
	EventSessionAbandon  EventType = "session_abandon"
)

// CookSessionEvent is an append-only, per-session audit record.
type CookSessionEvent struct {
	ID          string                 `json:"id" db:"id"`
	WorkspaceID string                 `json:"workspace_id" db:"workspace_id"`
	SessionID   string                 `json:"session_id" db:"session_id"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	Type        EventType              `json:"type" db:"type"`
	StepIndex   *int                   `json:"step_index,omitempty"`
	BulletIndex *int                   `json:"bullet_index,omitempty"`
	TimerID     string                 `json:"timer_id,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// ── IngredientDensityOverride ────────────────────────────────

// IngredientDensityOverride is a workspace-scoped ingredient density that
// supersedes the common-ingredient table for unit conversion.
type IngredientDensityOverride struct {
	ID            string    `json:"id" db:"id"`
	WorkspaceID   string    `json:"workspace_id" db:"workspace_id"`
	IngredientKey string    `json:"ingredient_key" db:"ingredient_key"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	DensityGPerML float64   `json:"density_g_per_ml" db:"density_g_per_ml"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ── IdempotencyRecord (ephemeral) ────────────────────────────

type IdempotencyState string

const (
	IdempotencyProcessing IdempotencyState = "processing"
	IdempotencyDone       IdempotencyState = "done"
)

// IdempotencyRecord is the value stored in the idempotency KV, keyed by
// (workspace_id, route_key, client_key).
type IdempotencyRecord struct {
	State       IdempotencyState  `json:"state"`
	RequestHash string            `json:"request_hash"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
