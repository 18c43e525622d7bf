// Package store — in-memory Store implementation.
// Supports optional file-based snapshot persistence so data survives
// restarts; this is the only Store implementation this service ships
// (spec §5: "a transactional row-store ... assumed", no database
// driver in scope).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Recipes          map[string]*models.Recipe                    `json:"recipes"`
	CookSessions     map[string]*models.CookSession                `json:"cook_sessions"`
	Events           map[string][]*models.CookSessionEvent         `json:"events"`
	DensityOverrides map[string]*models.IngredientDensityOverride `json:"density_overrides"`
}

// MemoryStore implements Store with in-memory maps guarded by one mutex.
type MemoryStore struct {
	mu sync.RWMutex

	recipes       map[string]*models.Recipe                    // key: workspace:recipe_id
	cookSessions  map[string]*models.CookSession                // key: workspace:session_id
	events        map[string][]*models.CookSessionEvent         // key: workspace:session_id → append-only log
	densities     map[string]*models.IngredientDensityOverride // key: workspace:ingredient_key
	densitiesByID map[string]*models.IngredientDensityOverride // key: id

	// Persistence
	snapshotPath string
	saveMu       sync.Mutex
	saveCh       chan struct{}
	doneCh       chan struct{}
}

// NewMemoryStore creates a new in-memory store. If TASTEOS_DATA_DIR is
// set, data is persisted to a JSON file in that directory; otherwise the
// store is purely in-memory.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		recipes:       make(map[string]*models.Recipe),
		cookSessions:  make(map[string]*models.CookSession),
		events:        make(map[string][]*models.CookSessionEvent),
		densities:     make(map[string]*models.IngredientDensityOverride),
		densitiesByID: make(map[string]*models.IngredientDensityOverride),
		saveCh:        make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}

	dataDir := os.Getenv("TASTEOS_DATA_DIR")
	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "cook-session-data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("memory store configured")
	return m
}

func recipeKey(workspaceID, id string) string   { return workspaceID + ":" + id }
func sessionKey(workspaceID, id string) string  { return workspaceID + ":" + id }
func densityKey(workspaceID, key string) string { return workspaceID + ":" + strings.ToLower(key) }

// ── Recipe Store ────────────────────────────────────────────

func (m *MemoryStore) GetRecipe(_ context.Context, workspaceID, recipeID string) (*models.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recipes[recipeKey(workspaceID, recipeID)]
	if !ok {
		return nil, &ErrNotFound{Entity: "recipe", Key: recipeID}
	}
	cp := *r
	cp.Steps = append([]models.RecipeStep(nil), r.Steps...)
	return &cp, nil
}

func (m *MemoryStore) CreateRecipe(_ context.Context, recipe *models.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *recipe
	cp.Steps = append([]models.RecipeStep(nil), recipe.Steps...)
	m.recipes[recipeKey(recipe.WorkspaceID, recipe.ID)] = &cp
	m.scheduleSave()
	return nil
}

func (m *MemoryStore) ListRecipes(_ context.Context, workspaceID string) ([]models.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Recipe, 0)
	for k, r := range m.recipes {
		if strings.HasPrefix(k, workspaceID+":") {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── CookSession Store ───────────────────────────────────────

func (m *MemoryStore) GetCookSession(_ context.Context, workspaceID, id string) (*models.CookSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.cookSessions[sessionKey(workspaceID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "cook_session", Key: id}
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CreateCookSession(_ context.Context, session *models.CookSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(session.WorkspaceID, session.ID)
	if _, exists := m.cookSessions[key]; exists {
		return fmt.Errorf("cook session %s already exists", session.ID)
	}
	m.cookSessions[key] = session.Clone()
	m.scheduleSave()
	return nil
}

func (m *MemoryStore) UpdateCookSession(_ context.Context, session *models.CookSession, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(session.WorkspaceID, session.ID)
	current, ok := m.cookSessions[key]
	if !ok {
		return &ErrNotFound{Entity: "cook_session", Key: session.ID}
	}
	if current.StateVersion != expectedVersion {
		return &ErrConflict{Entity: "cook_session", Key: session.ID}
	}
	m.cookSessions[key] = session.Clone()
	m.scheduleSave()
	return nil
}

func (m *MemoryStore) ListActiveCookSessions(_ context.Context, workspaceID string) ([]models.CookSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CookSession, 0)
	for k, s := range m.cookSessions {
		if strings.HasPrefix(k, workspaceID+":") && s.Status == models.SessionActive {
			out = append(out, *s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ── Event Store ─────────────────────────────────────────────

func (m *MemoryStore) AppendEvent(_ context.Context, event *models.CookSessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(event.WorkspaceID, event.SessionID)
	m.events[key] = append(m.events[key], event)
	m.scheduleSave()
	return nil
}

func (m *MemoryStore) ListRecentEvents(_ context.Context, workspaceID, sessionID string, limit int) ([]models.CookSessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := sessionKey(workspaceID, sessionID)
	all := m.events[key]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]models.CookSessionEvent, 0, limit)
	for i := len(all) - limit; i < len(all); i++ {
		out = append(out, *all[i])
	}
	return out, nil
}

// ── Density Override Store ──────────────────────────────────

func (m *MemoryStore) GetDensityOverride(_ context.Context, workspaceID, ingredientKey string) (*models.IngredientDensityOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.densities[densityKey(workspaceID, ingredientKey)]
	if !ok {
		return nil, &ErrNotFound{Entity: "density_override", Key: ingredientKey}
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) GetDensityOverrideByID(_ context.Context, workspaceID, id string) (*models.IngredientDensityOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.densitiesByID[id]
	if !ok || d.WorkspaceID != workspaceID {
		return nil, &ErrNotFound{Entity: "density_override", Key: id}
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) UpsertDensityOverride(_ context.Context, override *models.IngredientDensityOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := densityKey(override.WorkspaceID, override.IngredientKey)
	if existing, ok := m.densities[key]; ok {
		override.CreatedAt = existing.CreatedAt
		if existing.ID != override.ID {
			delete(m.densitiesByID, existing.ID)
		}
	}
	cp := *override
	m.densities[key] = &cp
	m.densitiesByID[cp.ID] = &cp
	m.scheduleSave()
	return nil
}

func (m *MemoryStore) ListDensityOverrides(_ context.Context, workspaceID, query string) ([]models.IngredientDensityOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	out := make([]models.IngredientDensityOverride, 0)
	for k, d := range m.densities {
		if !strings.HasPrefix(k, workspaceID+":") {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.IngredientKey), q) && !strings.Contains(strings.ToLower(d.DisplayName), q) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientKey < out[j].IngredientKey })
	return out, nil
}

func (m *MemoryStore) DeleteDensityOverrideByID(_ context.Context, workspaceID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.densitiesByID[id]
	if !ok || d.WorkspaceID != workspaceID {
		return &ErrNotFound{Entity: "density_override", Key: id}
	}
	delete(m.densitiesByID, id)
	delete(m.densities, densityKey(workspaceID, d.IngredientKey))
	m.scheduleSave()
	return nil
}

// ── Lifecycle ────────────────────────────────────────────────

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	if m.snapshotPath != "" {
		close(m.doneCh)
		m.saveSnapshot()
	}
	return nil
}

// ── Persistence (debounced, matches the teacher's save-loop shape) ──

func (m *MemoryStore) scheduleSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

func (m *MemoryStore) saveLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	dirty := false
	for {
		select {
		case <-m.saveCh:
			dirty = true
		case <-ticker.C:
			if dirty {
				m.saveSnapshot()
				dirty = false
			}
		case <-m.doneCh:
			return
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	snap := snapshot{
		Recipes:          m.recipes,
		CookSessions:     m.cookSessions,
		Events:           m.events,
		DensityOverrides: m.densities,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal snapshot")
		return
	}

	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Warn().Err(err).Msg("failed to write snapshot")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Warn().Err(err).Msg("failed to finalize snapshot")
	}
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Msg("failed to parse snapshot, starting empty")
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Recipes != nil {
		m.recipes = snap.Recipes
	}
	if snap.CookSessions != nil {
		m.cookSessions = snap.CookSessions
	}
	if snap.Events != nil {
		m.events = snap.Events
	}
	if snap.DensityOverrides != nil {
		m.densities = snap.DensityOverrides
		m.densitiesByID = make(map[string]*models.IngredientDensityOverride, len(snap.DensityOverrides))
		for _, d := range m.densities {
			m.densitiesByID[d.ID] = d
		}
	}
}
