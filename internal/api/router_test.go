package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/api"
	"github.com/tasteos/cook-session-engine/internal/api/handlers"
	"github.com/tasteos/cook-session-engine/internal/bus"
	"github.com/tasteos/cook-session-engine/internal/config"
	"github.com/tasteos/cook-session-engine/internal/cooksession"
	"github.com/tasteos/cook-session-engine/internal/eventlog"
	"github.com/tasteos/cook-session-engine/internal/idempotency"
	"github.com/tasteos/cook-session-engine/internal/recipecatalog"
	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/internal/units"
	"github.com/tasteos/cook-session-engine/pkg/contracts"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	os.Unsetenv("TASTEOS_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	recipe := &models.Recipe{
		ID:          "r1",
		WorkspaceID: "default",
		Title:       "Tomato Soup",
		Servings:    4,
		TimeMinutes: 60,
		Steps: []models.RecipeStep{
			{StepIndex: 0, Title: "Saute onions", Bullets: []string{"Heat oil", "Add onions"}},
			{StepIndex: 1, Title: "Add tomatoes", Bullets: []string{"Add tomatoes", "Simmer"}},
		},
	}
	require.NoError(t, s.CreateRecipe(context.Background(), recipe))

	b := bus.New()
	evLog := eventlog.New(s)
	resolver := units.NewResolver(s)
	densities := units.NewDensityService(s, resolver)
	retry := config.RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	sessions := cooksession.New(s, evLog, b, contracts.NoopAIClient{}, retry)
	recipes := recipecatalog.New(s)

	idemp := idempotency.NewGate(time.Minute, time.Minute, time.Hour)
	t.Cleanup(idemp.Stop)

	h := handlers.New(sessions, recipes, resolver, densities, b, idemp)
	cfg := &config.Config{Version: "test"}
	return api.NewRouter(cfg, h)
}

func startSession(t *testing.T, r http.Handler, idempKey string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"recipe_id": "r1"})
	req := httptest.NewRequest(http.MethodPost, "/api/cook/session/start", bytes.NewReader(body))
	req.Header.Set("Idempotency-Key", idempKey)
	req.Header.Set("X-Workspace-Id", "default")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var session map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func TestStartSessionRequiresIdempotencyKey(t *testing.T) {
	r := newTestRouter(t)
	body, _ := json.Marshal(map[string]string{"recipe_id": "r1"})
	req := httptest.NewRequest(http.MethodPost, "/api/cook/session/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartSessionReplaysOnRepeatedKey(t *testing.T) {
	r := newTestRouter(t)
	first := startSession(t, r, "key-1")

	body, _ := json.Marshal(map[string]string{"recipe_id": "r1"})
	req := httptest.NewRequest(http.MethodPost, "/api/cook/session/start", bytes.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	req.Header.Set("X-Workspace-Id", "default")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var replayed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	require.Equal(t, first["id"], replayed["id"])
}

func TestStartSessionConflictsOnSameKeyDifferentBody(t *testing.T) {
	r := newTestRouter(t)
	startSession(t, r, "key-2")

	body, _ := json.Marshal(map[string]string{"recipe_id": "r1", "note": "different payload"})
	req := httptest.NewRequest(http.MethodPost, "/api/cook/session/start", bytes.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-2")
	req.Header.Set("X-Workspace-Id", "default")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPatchAdvancesStepAndGetReflectsIt(t *testing.T) {
	r := newTestRouter(t)
	session := startSession(t, r, "key-3")
	id := session["id"].(string)

	patchBody, _ := json.Marshal(map[string]interface{}{"current_step_index": 1})
	req := httptest.NewRequest(http.MethodPatch, "/api/cook/session/"+id+"/", bytes.NewReader(patchBody))
	req.Header.Set("Idempotency-Key", "key-3-patch")
	req.Header.Set("X-Workspace-Id", "default")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/cook/session/"+id+"/", nil)
	req.Header.Set("X-Workspace-Id", "default")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, float64(1), got["current_step_index"])
}

func TestGetSessionNotFound(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/cook/session/does-not-exist/", nil)
	req.Header.Set("X-Workspace-Id", "default")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConvertUnits(t *testing.T) {
	r := newTestRouter(t)
	body, _ := json.Marshal(map[string]interface{}{"qty": 2, "from_unit": "cup", "to_unit": "ml"})
	req := httptest.NewRequest(http.MethodPost, "/api/units/convert", bytes.NewReader(body))
	req.Header.Set("X-Workspace-Id", "default")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "ml", result["Unit"])
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
