package feed

import (
	"context"
	"encoding/json"
	"sync"

	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

// Moderator drives the post lifecycle: pending until a moderator approves
// or rejects, and either terminal state may overwrite the other.
type Moderator struct {
	store store.Store
}

func NewModerator(s store.Store) *Moderator {
	return &Moderator{store: s}
}

// Transition sets the moderation state of a post. Only admin/subadmin
// principals may call it; the write is a single idempotent field update.
func (m *Moderator) Transition(ctx context.Context, p *Principal, postID string, approve bool) error {
	if !p.Moderator() {
		return ErrForbidden
	}
	target := models.StateRejected
	if approve {
		target = models.StateApproved
	}
	if err := m.store.UpdateFields(ctx, store.Posts, postID, map[string]any{
		"moderationState": target,
	}); err != nil {
		return storeErr(err)
	}
	return nil
}

// PendingCounter keeps the moderator queue-depth indicator: the count of
// posts whose state is anything but approved, recomputed reactively from
// the post collection's change feed.
type PendingCounter struct {
	mu          sync.RWMutex
	states      map[string]models.ModerationState
	unsubscribe func()
	done        chan struct{}
}

func NewPendingCounter(ctx context.Context, s store.Store) (*PendingCounter, error) {
	c := &PendingCounter{
		states: make(map[string]models.ModerationState),
		done:   make(chan struct{}),
	}

	// Subscribe before the initial load so no change slips between the
	// snapshot and the feed; replayed events are idempotent per ID.
	events, unsubscribe := s.Subscribe(store.Posts)
	c.unsubscribe = unsubscribe

	docs, err := s.List(ctx, store.Posts)
	if err != nil {
		unsubscribe()
		return nil, storeErr(err)
	}
	for _, d := range docs {
		var post models.Post
		if err := d.Unmarshal(&post); err != nil {
			continue
		}
		c.states[post.ID] = post.State
	}

	go c.run(events)
	return c, nil
}

func (c *PendingCounter) run(events <-chan store.Event) {
	defer close(c.done)
	for ev := range events {
		c.mu.Lock()
		switch ev.Type {
		case store.EventDeleted:
			delete(c.states, ev.ID)
		default:
			var post models.Post
			if err := json.Unmarshal(ev.Doc, &post); err == nil {
				c.states[ev.ID] = post.State
			}
		}
		c.mu.Unlock()
	}
}

func (c *PendingCounter) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, state := range c.states {
		if state != models.StateApproved {
			n++
		}
	}
	return n
}

// Close tears the subscription down and waits for the projection goroutine
// to drain.
func (c *PendingCounter) Close() {
	c.unsubscribe()
	<-c.done
}
