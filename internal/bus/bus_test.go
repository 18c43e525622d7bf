package bus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasteos/cook-session-engine/internal/bus"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := bus.New()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe("s1", ch)

	now := time.Now()
	b.Publish("s1", "ws1", now)

	select {
	case msg := <-ch:
		require.Equal(t, "session_updated", msg.Type)
		require.Equal(t, "s1", msg.SessionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := bus.New()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe("s1", ch)

	for i := 0; i < 64; i++ {
		b.Publish("s1", "ws1", time.Now())
	}
	// No panic/deadlock means the non-blocking send held.
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := bus.New()
	ch := b.Subscribe("s1")
	b.Unsubscribe("s1", ch)

	_, ok := <-ch
	require.False(t, ok)
}
