package cooksession

import (
	"context"
	"time"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// Complete sets the session to done (spec §4.10 complete; boundary
// behavior "completing an already-done session is rejected with the
// Gone kind" is enforced by run()'s active-status check).
func (s *Service) Complete(ctx context.Context, workspaceID, sessionID string) (*models.CookSession, error) {
	return s.terminate(ctx, workspaceID, sessionID, models.SessionDone, models.EventSessionComplete, "completed")
}

// Abandon sets the session to abandoned (spec §4.10 complete/abandon).
func (s *Service) Abandon(ctx context.Context, workspaceID, sessionID, reason string) (*models.CookSession, error) {
	if reason == "" {
		reason = "abandoned"
	}
	return s.terminate(ctx, workspaceID, sessionID, models.SessionAbandoned, models.EventSessionAbandon, reason)
}

func (s *Service) terminate(ctx context.Context, workspaceID, sessionID string, status models.SessionStatus, evType models.EventType, reason string) (*models.CookSession, error) {
	return s.run(ctx, workspaceID, sessionID, func(ctx context.Context, session *models.CookSession, recipe *models.Recipe) (models.EventType, eventDetail, error) {
		now := time.Now().UTC()
		session.Status = status
		session.CompletedAt = &now
		session.EndedReason = reason
		for _, t := range session.Timers {
			if t.State == models.TimerRunning || t.State == models.TimerPaused {
				t.State = models.TimerDone
				t.DueAt = nil
				t.RemainingSec = nil
				t.StartedAt = nil
			}
		}
		return evType, eventDetail{Meta: map[string]interface{}{"ended_reason": reason}}, nil
	})
}
