package feed

import (
	"fmt"
	"sync"
	"time"

	"campusfeed_backend/models"
)

// Upcoming reports whether a post's scheduled publish time has not yet
// elapsed.
func Upcoming(post models.Post, now time.Time) bool {
	return post.PublishAt.After(now)
}

// VisibleTo is the audience rule: moderators see everything, including
// upcoming and unapproved posts, so moderation can happen ahead of release.
// Everyone else sees a post only once it is approved AND the clock has
// reached publishAt.
func VisibleTo(p *Principal, post models.Post, now time.Time) bool {
	if p.Moderator() {
		return true
	}
	return post.State == models.StateApproved && !post.PublishAt.After(now)
}

// CountdownString decomposes the time until publication into
// days/hours/minutes/seconds, e.g. "2d 5h 11m 42s". Empty once the moment
// has passed.
func CountdownString(remaining time.Duration) string {
	if remaining <= 0 {
		return ""
	}
	secs := int64(remaining / time.Second)
	days := secs / 86400
	hours := (secs / 3600) % 24
	minutes := (secs / 60) % 60
	seconds := secs % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// CountdownTicker recomputes countdown strings for every tracked upcoming
// post on a fixed one-second tick, applied to all of them simultaneously.
// Activation is refcounted: the first Activate starts the single ticker
// goroutine, the last Deactivate stops it, and repeated cycles never
// accumulate duplicate tickers.
type CountdownTicker struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	posts   map[string]time.Time
	refs    int
	stop    chan struct{}
	running int

	out chan map[string]string
}

func NewCountdownTicker() *CountdownTicker {
	return &CountdownTicker{
		interval: time.Second,
		now:      time.Now,
		posts:    make(map[string]time.Time),
		out:      make(chan map[string]string, 1),
	}
}

// Updates delivers one map per tick: post ID to countdown string for every
// tracked post still in the future.
func (t *CountdownTicker) Updates() <-chan map[string]string {
	return t.out
}

// Observe records or clears one post's scheduled publish time. Entries for
// other posts are untouched, so concurrent observers never evict each
// other; the tick loop prunes entries once their moment passes.
func (t *CountdownTicker) Observe(post models.Post) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if Upcoming(post, now) {
		t.posts[post.ID] = post.PublishAt
	} else {
		delete(t.posts, post.ID)
	}
}

// Forget drops a deleted post from the tracked set.
func (t *CountdownTicker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.posts, id)
}

// Activate registers interest in countdown updates, starting the ticker if
// it is not running.
func (t *CountdownTicker) Activate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs++
	if t.refs == 1 {
		t.stop = make(chan struct{})
		t.running++
		go t.run(t.stop)
	}
}

// Deactivate drops one registration; when no view depends on the ticker
// anymore the goroutine and its timer are released.
func (t *CountdownTicker) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refs == 0 {
		return
	}
	t.refs--
	if t.refs == 0 {
		close(t.stop)
		t.stop = nil
	}
}

// Active reports whether any view currently depends on the ticker.
func (t *CountdownTicker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs > 0
}

func (t *CountdownTicker) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer func() {
		t.mu.Lock()
		t.running--
		t.mu.Unlock()
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			now := t.now()
			updated := make(map[string]string, len(t.posts))
			for id, at := range t.posts {
				if remaining := at.Sub(now); remaining > 0 {
					updated[id] = CountdownString(remaining)
				} else {
					delete(t.posts, id)
				}
			}
			t.mu.Unlock()

			select {
			case t.out <- updated:
			default:
				// Nobody consuming this tick; skip it rather than block.
			}
		}
	}
}
