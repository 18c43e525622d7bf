// Package handlers implements the HTTP handlers for the cook session
// engine: the IdempotencyGate-guarded session surface, the unit
// conversion and density endpoints, and the session event stream.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tasteos/cook-session-engine/internal/api/middleware"
	"github.com/tasteos/cook-session-engine/internal/apperr"
	"github.com/tasteos/cook-session-engine/internal/bus"
	"github.com/tasteos/cook-session-engine/internal/cooksession"
	"github.com/tasteos/cook-session-engine/internal/idempotency"
	"github.com/tasteos/cook-session-engine/internal/recipecatalog"
	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/internal/units"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// Handlers holds all handler dependencies for the cook/units surface.
type Handlers struct {
	Sessions  *cooksession.Service
	Recipes   *recipecatalog.Catalog
	Resolver  *units.Resolver
	Densities *units.DensityService
	Bus       *bus.Bus
	Idemp     *idempotency.Gate
}

// New creates a new Handlers instance with all dependencies wired.
func New(sessions *cooksession.Service, recipes *recipecatalog.Catalog, resolver *units.Resolver, densities *units.DensityService, b *bus.Bus, idemp *idempotency.Gate) *Handlers {
	return &Handlers{Sessions: sessions, Recipes: recipes, Resolver: resolver, Densities: densities, Bus: b, Idemp: idemp}
}

// ── Idempotency-guarded mutation wrapper ────────────────────────

// withIdempotency runs fn at most once per (workspace, route, client
// key) and replays the cached response for every subsequent call with
// the same body (spec §4.3). routeKey identifies the endpoint
// independent of path parameters, e.g. "session.start".
func (h *Handlers) withIdempotency(w http.ResponseWriter, r *http.Request, routeKey string, fn func() (int, interface{})) {
	workspace := middleware.GetWorkspace(r.Context())
	clientKey := r.Header.Get("Idempotency-Key")

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	reqHash := idempotency.Hash(r.Method, r.URL.Path, body)

	outcome, stored := h.Idemp.Begin(r.Context(), workspace, routeKey, clientKey, reqHash)
	switch outcome {
	case idempotency.OutcomeMissingKey:
		respondError(w, http.StatusBadRequest, "Idempotency-Key header is required")
		return
	case idempotency.OutcomeConflict:
		respondError(w, http.StatusConflict, "idempotency key is already processing or was reused with a different payload")
		return
	case idempotency.OutcomeReplay:
		for k, v := range stored.Headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stored.Status)
		w.Write(stored.Body)
		return
	}

	status, payload := fn()

	respBody, _ := json.Marshal(payload)
	if status >= 200 && status < 300 {
		h.Idemp.Store(workspace, routeKey, clientKey, reqHash, status, map[string]string{"Content-Type": "application/json"}, respBody)
	} else {
		h.Idemp.Abort(workspace, routeKey, clientKey)
	}
	respondJSON(w, status, payload)
}

// ── Cook session handlers ────────────────────────────────────────

type startSessionRequest struct {
	RecipeID string `json:"recipe_id"`
}

// StartSession handles POST /cook/session/start (spec §6, §4.10 start).
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RecipeID == "" {
		respondError(w, http.StatusBadRequest, "recipe_id is required")
		return
	}
	workspace := middleware.GetWorkspace(r.Context())

	h.withIdempotency(w, r, "session.start", func() (int, interface{}) {
		session, err := h.Sessions.Start(r.Context(), workspace, req.RecipeID)
		if err != nil {
			return errStatusAndBody(err)
		}
		return http.StatusCreated, session
	})
}

// ActiveSession handles GET /cook/session/active?recipe_id=… (spec §6).
func (h *Handlers) ActiveSession(w http.ResponseWriter, r *http.Request) {
	recipeID := r.URL.Query().Get("recipe_id")
	if recipeID == "" {
		respondError(w, http.StatusBadRequest, "recipe_id query parameter is required")
		return
	}
	workspace := middleware.GetWorkspace(r.Context())
	session, err := h.Sessions.Active(r.Context(), workspace, recipeID)
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GetSession handles GET /cook/session/{id} (spec §6, §4.10 get).
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")
	session, err := h.Sessions.Get(r.Context(), workspace, sessionID)
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// PatchSession handles PATCH /cook/session/{id} (spec §6, §4.10 patch).
func (h *Handlers) PatchSession(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req cooksession.PatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.withIdempotency(w, r, "session.patch", func() (int, interface{}) {
		session, err := h.Sessions.Patch(r.Context(), workspace, sessionID, req)
		if err != nil {
			return errStatusAndBody(err)
		}
		h.Bus.Publish(session.ID, workspace, session.UpdatedAt)
		return http.StatusOK, session
	})
}

// AdjustPreview handles POST /cook/session/{id}/adjust/preview (spec §6).
func (h *Handlers) AdjustPreview(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req struct {
		StepIndex int    `json:"step_index"`
		Kind      string `json:"kind"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Sessions.AdjustPreview(r.Context(), workspace, sessionID, req.StepIndex, req.Kind)
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// AdjustApply handles POST /cook/session/{id}/adjust/apply (spec §6).
func (h *Handlers) AdjustApply(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req cooksession.AdjustApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.withIdempotency(w, r, "session.adjust.apply", func() (int, interface{}) {
		session, err := h.Sessions.AdjustApply(r.Context(), workspace, sessionID, req)
		if err != nil {
			return errStatusAndBody(err)
		}
		h.Bus.Publish(session.ID, workspace, session.UpdatedAt)
		return http.StatusOK, session
	})
}

// AdjustUndo handles POST /cook/session/{id}/adjust/undo (spec §6).
func (h *Handlers) AdjustUndo(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req struct {
		AdjustmentID string `json:"adjustment_id,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.withIdempotency(w, r, "session.adjust.undo", func() (int, interface{}) {
		session, err := h.Sessions.AdjustUndo(r.Context(), workspace, sessionID, req.AdjustmentID)
		if err != nil {
			return errStatusAndBody(err)
		}
		h.Bus.Publish(session.ID, workspace, session.UpdatedAt)
		return http.StatusOK, session
	})
}

// MethodCatalog handles GET /cook/methods (spec §6).
func (h *Handlers) MethodCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cooksession.MethodCatalog())
}

// MethodPreview handles POST /cook/session/{id}/method/preview (spec §6).
func (h *Handlers) MethodPreview(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req struct {
		MethodKey string `json:"method_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Sessions.MethodPreview(r.Context(), workspace, sessionID, req.MethodKey)
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// MethodApply handles POST /cook/session/{id}/method/apply (spec §6).
func (h *Handlers) MethodApply(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req cooksession.MethodApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.withIdempotency(w, r, "session.method.apply", func() (int, interface{}) {
		session, err := h.Sessions.MethodApply(r.Context(), workspace, sessionID, req)
		if err != nil {
			return errStatusAndBody(err)
		}
		h.Bus.Publish(session.ID, workspace, session.UpdatedAt)
		return http.StatusOK, session
	})
}

// MethodReset handles POST /cook/session/{id}/method/reset (spec §6).
func (h *Handlers) MethodReset(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	h.withIdempotency(w, r, "session.method.reset", func() (int, interface{}) {
		session, err := h.Sessions.MethodReset(r.Context(), workspace, sessionID)
		if err != nil {
			return errStatusAndBody(err)
		}
		h.Bus.Publish(session.ID, workspace, session.UpdatedAt)
		return http.StatusOK, session
	})
}

// CompleteSession handles POST /cook/session/{id}/complete (spec §6).
func (h *Handlers) CompleteSession(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	h.withIdempotency(w, r, "session.complete", func() (int, interface{}) {
		session, err := h.Sessions.Complete(r.Context(), workspace, sessionID)
		if err != nil {
			return errStatusAndBody(err)
		}
		h.Bus.Publish(session.ID, workspace, session.UpdatedAt)
		return http.StatusOK, session
	})
}

// AbandonSession handles POST /cook/session/{id}/abandon. Not listed in
// the endpoint table but required to drive the Abandon lifecycle
// transition the aggregate exposes alongside Complete (spec §4.10).
func (h *Handlers) AbandonSession(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	_ = decodeJSON(r, &req)

	h.withIdempotency(w, r, "session.abandon", func() (int, interface{}) {
		session, err := h.Sessions.Abandon(r.Context(), workspace, sessionID, req.Reason)
		if err != nil {
			return errStatusAndBody(err)
		}
		h.Bus.Publish(session.ID, workspace, session.UpdatedAt)
		return http.StatusOK, session
	})
}

// SessionSummary handles GET /cook/session/{id}/summary (spec §6).
func (h *Handlers) SessionSummary(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")
	result, err := h.Sessions.Summary(r.Context(), workspace, sessionID)
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// NextAction handles GET /cook/session/{id}/next (spec §6).
func (h *Handlers) NextAction(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")
	result, err := h.Sessions.NextAction(r.Context(), workspace, sessionID)
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RecentEvents handles GET /cook/session/{id}/events/recent?limit=N (spec §6).
func (h *Handlers) RecentEvents(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	sessionID := chi.URLParam(r, "id")

	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	// Touch the session first so an unknown id surfaces Not Found
	// rather than an empty event list.
	if _, err := h.Sessions.Get(r.Context(), workspace, sessionID); err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}

	events, err := h.Sessions.EventLog().Recent(r.Context(), workspace, sessionID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.CookSessionEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

// keepAliveInterval is the stream's idle keep-alive cadence (spec
// §4.11, §6: "every 15 s").
const keepAliveInterval = 15 * time.Second

// StreamEvents handles GET /cook/session/{id}/events: a long-lived
// unidirectional SSE feed forwarding SessionBus session_updated
// notifications for this session (spec §4.11, §6).
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	workspace := middleware.GetWorkspace(r.Context())

	if _, err := h.Sessions.Get(r.Context(), workspace, sessionID); err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.Bus.Subscribe(sessionID)
	defer h.Bus.Unsubscribe(sessionID, ch)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(msg)
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ── Unit / density handlers ──────────────────────────────────────

type convertRequest struct {
	Qty            float64 `json:"qty"`
	FromUnit       string  `json:"from_unit"`
	ToUnit         string  `json:"to_unit,omitempty"`
	TargetSystem   string  `json:"target_system,omitempty"`
	IngredientName string  `json:"ingredient_name,omitempty"`
	ForceCrossType bool    `json:"force_cross_type,omitempty"`
}

// Convert handles POST /units/convert (spec §4.1, §6).
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FromUnit == "" {
		respondError(w, http.StatusBadRequest, "from_unit is required")
		return
	}
	if req.ToUnit == "" && req.TargetSystem == "" {
		respondError(w, http.StatusBadRequest, "either to_unit or target_system is required")
		return
	}

	workspace := middleware.GetWorkspace(r.Context())
	result := h.Resolver.Convert(r.Context(), req.Qty, req.FromUnit, req.ToUnit, units.ConvertOptions{
		IngredientName: req.IngredientName,
		WorkspaceID:    workspace,
		ForceCrossType: req.ForceCrossType,
		TargetSystem:   units.TargetSystem(req.TargetSystem),
	})
	respondJSON(w, http.StatusOK, result)
}

// UpsertDensity handles PUT /units/densities (spec §4.2, §6). The body
// accepts either a flat `density` number or a `density: {mass_value,
// mass_unit, vol_value, vol_unit}` pair.
func (h *Handlers) UpsertDensity(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())

	var raw struct {
		IngredientName string          `json:"ingredient_name"`
		Density        json.RawMessage `json:"density"`
	}
	if err := decodeJSON(r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if raw.IngredientName == "" {
		respondError(w, http.StatusBadRequest, "ingredient_name is required")
		return
	}

	h.withIdempotency(w, r, "densities.upsert", func() (int, interface{}) {
		var flat float64
		if err := json.Unmarshal(raw.Density, &flat); err == nil {
			override, err := h.Densities.UpsertByDensity(r.Context(), workspace, raw.IngredientName, flat)
			return densityResult(override, err)
		}

		var pair struct {
			MassValue float64 `json:"mass_value"`
			MassUnit  string  `json:"mass_unit"`
			VolValue  float64 `json:"vol_value"`
			VolUnit   string  `json:"vol_unit"`
		}
		if err := json.Unmarshal(raw.Density, &pair); err != nil {
			return http.StatusBadRequest, map[string]string{"error": "density must be a number or a mass/volume pair"}
		}
		override, err := h.Densities.UpsertByMassVolumePair(r.Context(), workspace, raw.IngredientName, pair.MassValue, pair.MassUnit, pair.VolValue, pair.VolUnit)
		return densityResult(override, err)
	})
}

func densityResult(override *models.IngredientDensityOverride, err error) (int, interface{}) {
	if err != nil {
		var verr *units.ValidationError
		if errors.As(err, &verr) {
			return http.StatusBadRequest, map[string]string{"error": verr.Error()}
		}
		return http.StatusInternalServerError, map[string]string{"error": err.Error()}
	}
	return http.StatusOK, override
}

// ListDensities handles GET /units/densities?query=… (spec §4.2, §6).
func (h *Handlers) ListDensities(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	query := r.URL.Query().Get("query")
	overrides, err := h.Densities.List(r.Context(), workspace, query)
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	if overrides == nil {
		overrides = []models.IngredientDensityOverride{}
	}
	respondJSON(w, http.StatusOK, overrides)
}

// DeleteDensity handles DELETE /units/densities/{id} (spec §3, §4.2, §6:
// id is the override's own id, not its ingredient_key).
func (h *Handlers) DeleteDensity(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.Densities.Delete(r.Context(), workspace, id); err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Recipe listing ───────────────────────────────────────────────
//
// Recipe ingestion/authoring is out of scope (spec §1 Non-goals); this
// thin read surface is what lets a client discover a recipe_id to cook.

// ListRecipes handles GET /recipes.
func (h *Handlers) ListRecipes(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	recipes, err := h.Recipes.List(r.Context(), workspace)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, recipes)
}

// GetRecipe handles GET /recipes/{id}.
func (h *Handlers) GetRecipe(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.GetWorkspace(r.Context())
	recipe, err := h.Recipes.Get(r.Context(), workspace, chi.URLParam(r, "id"))
	if err != nil {
		status, body := errStatusAndBody(err)
		respondJSON(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, recipe)
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("failed to encode response body")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errStatusAndBody maps an apperr.Error (spec §7 taxonomy) to an HTTP
// status and a JSON body; any other error is treated as internal.
func errStatusAndBody(err error) (int, interface{}) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return apperr.HTTPStatus(appErr.Kind), map[string]string{"error": appErr.Message, "kind": string(appErr.Kind)}
	}
	var notFound *store.ErrNotFound
	if errors.As(err, &notFound) {
		return http.StatusNotFound, map[string]string{"error": err.Error(), "kind": string(apperr.KindNotFound)}
	}
	return http.StatusInternalServerError, map[string]string{"error": err.Error()}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return json.Unmarshal(body, dst)
}
