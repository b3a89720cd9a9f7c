package handlers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusfeed_backend/feed"
	"campusfeed_backend/store"
)

func newPostHandler(t *testing.T) *PostHandler {
	t.Helper()
	m := store.NewMemory()
	t.Cleanup(m.Close)
	return NewPostHandler(m, feed.NewThreadManager(m))
}

func TestFeedSessionsExpireWhenIdle(t *testing.T) {
	h := newPostHandler(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	first := h.session("a")
	require.Same(t, first, h.session("a"))

	// Touching any session past the TTL sweeps the idle one out.
	now = now.Add(sessionIdleTTL + time.Minute)
	h.session("b")

	h.mu.Lock()
	_, kept := h.sessions["a"]
	h.mu.Unlock()
	require.False(t, kept)

	require.NotSame(t, first, h.session("a"))
}

func TestFeedSessionsCapped(t *testing.T) {
	h := newPostHandler(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	for i := 0; i < maxFeedSessions; i++ {
		h.session(fmt.Sprintf("s%04d", i))
		now = now.Add(time.Millisecond)
	}

	h.mu.Lock()
	size := len(h.sessions)
	h.mu.Unlock()
	require.Equal(t, maxFeedSessions, size)

	// One more session evicts the least recently used, not the map bound.
	h.session("overflow")

	h.mu.Lock()
	size = len(h.sessions)
	_, oldestKept := h.sessions["s0000"]
	_, newestKept := h.sessions["overflow"]
	h.mu.Unlock()
	require.Equal(t, maxFeedSessions, size)
	require.False(t, oldestKept)
	require.True(t, newestKept)
}
