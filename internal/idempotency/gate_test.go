package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/idempotency"
)

func TestBeginMissingKeyRejected(t *testing.T) {
	g := idempotency.NewGate(60*time.Second, 24*time.Hour, time.Hour)
	defer g.Stop()
	outcome, _ := g.Begin(context.Background(), "ws1", "session.start", "", "h1")
	require.Equal(t, idempotency.OutcomeMissingKey, outcome)
}

func TestReplayOnSameHash(t *testing.T) {
	g := idempotency.NewGate(60*time.Second, 24*time.Hour, time.Hour)
	defer g.Stop()
	ctx := context.Background()

	outcome, _ := g.Begin(ctx, "ws1", "session.start", "k1", "h1")
	require.Equal(t, idempotency.OutcomeProceed, outcome)
	g.Store("ws1", "session.start", "k1", "h1", 200, map[string]string{"X-Foo": "bar"}, []byte(`{"ok":true}`))

	outcome, resp := g.Begin(ctx, "ws1", "session.start", "k1", "h1")
	require.Equal(t, idempotency.OutcomeReplay, outcome)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, []byte(`{"ok":true}`), resp.Body)
}

func TestConflictOnDifferentHashWhileDone(t *testing.T) {
	g := idempotency.NewGate(60*time.Second, 24*time.Hour, time.Hour)
	defer g.Stop()
	ctx := context.Background()

	g.Begin(ctx, "ws1", "session.start", "k1", "h1")
	g.Store("ws1", "session.start", "k1", "h1", 200, nil, []byte("{}"))

	outcome, _ := g.Begin(ctx, "ws1", "session.start", "k1", "h2")
	require.Equal(t, idempotency.OutcomeConflict, outcome)
}

func TestConflictWhileStillProcessing(t *testing.T) {
	g := idempotency.NewGate(60*time.Second, 24*time.Hour, time.Hour)
	defer g.Stop()
	ctx := context.Background()

	outcome, _ := g.Begin(ctx, "ws1", "session.start", "k1", "h1")
	require.Equal(t, idempotency.OutcomeProceed, outcome)

	outcome, _ = g.Begin(ctx, "ws1", "session.start", "k1", "h1")
	require.Equal(t, idempotency.OutcomeConflict, outcome)
}

func TestAbortAllowsRetry(t *testing.T) {
	g := idempotency.NewGate(60*time.Second, 24*time.Hour, time.Hour)
	defer g.Stop()
	ctx := context.Background()

	g.Begin(ctx, "ws1", "session.start", "k1", "h1")
	g.Abort("ws1", "session.start", "k1")

	outcome, _ := g.Begin(ctx, "ws1", "session.start", "k1", "h1")
	require.Equal(t, idempotency.OutcomeProceed, outcome)
}
