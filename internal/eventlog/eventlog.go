// Package eventlog implements EventLog: an append-only per-session log of
// semantic events with a bounded recent-query (spec §4.4).
package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/pkg/models"
)

// Log writes through to the Store's EventStore; it exists as its own
// type so CookSession depends on a narrow, named collaborator rather
// than the full Store interface.
type Log struct {
	store store.EventStore
}

func New(s store.EventStore) *Log {
	return &Log{store: s}
}

// Append writes one event. This package does not manage transactions:
// cooksession calls Append after the session write has committed, so the
// two writes are not atomic with each other.
func (l *Log) Append(ctx context.Context, workspaceID, sessionID string, eventType models.EventType, stepIndex, bulletIndex *int, timerID string, meta map[string]interface{}) (*models.CookSessionEvent, error) {
	ev := &models.CookSessionEvent{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		SessionID:   sessionID,
		CreatedAt:   time.Now().UTC(),
		Type:        eventType,
		StepIndex:   stepIndex,
		BulletIndex: bulletIndex,
		TimerID:     timerID,
		Meta:        meta,
	}
	if err := l.store.AppendEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Recent returns the newest `limit` events, newest first (spec §4.4).
func (l *Log) Recent(ctx context.Context, workspaceID, sessionID string, limit int) ([]models.CookSessionEvent, error) {
	events, err := l.store.ListRecentEvents(ctx, workspaceID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	// ListRecentEvents returns oldest-of-window-first; reverse to
	// newest-first per the contract.
	out := make([]models.CookSessionEvent, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out, nil
}
