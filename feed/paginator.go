package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

const DefaultPageSize = 6

// Page is one fetched batch plus the cursor marking its last item.
type Page struct {
	Items      []models.Post
	NextCursor *store.Cursor
	HasMore    bool
}

// Paginator accumulates feed pages for one client session. Fetches are
// forward-only and append-only: items already loaded are never dropped by a
// later fetch, and a HasMore=false result is terminal until the session is
// replaced. Visibility and search filtering happen as a second pass over
// the accumulated items so the cursor chain is unaffected by the search
// term.
type Paginator struct {
	store    store.Store
	pageSize int

	mu       sync.Mutex
	fetching bool
	items    []models.Post
	cursor   *store.Cursor
	hasMore  bool
}

func NewPaginator(s store.Store, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{store: s, pageSize: pageSize, hasMore: true}
}

// Resume positions a fresh session at a previously issued cursor so a
// client can continue after its server-side session expired. A session
// that already fetched something keeps its own cursor chain.
func (p *Paginator) Resume(c *store.Cursor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 && !p.fetching {
		p.cursor = c
	}
}

// FetchPage loads the next batch in (publishAt DESC, id DESC) order and
// appends it to the session. Overlapping calls are rejected with
// ErrFetchInFlight so two fetches never race on the same cursor.
func (p *Paginator) FetchPage(ctx context.Context) (Page, error) {
	p.mu.Lock()
	if p.fetching {
		p.mu.Unlock()
		return Page{}, ErrFetchInFlight
	}
	if !p.hasMore {
		p.mu.Unlock()
		return Page{HasMore: false, NextCursor: p.cursor}, nil
	}
	p.fetching = true
	cursor := p.cursor
	p.mu.Unlock()

	docs, err := p.store.GetPage(ctx, store.Posts, cursor, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetching = false
	if err != nil {
		return Page{}, storeErr(err)
	}

	batch := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		var post models.Post
		if err := d.Unmarshal(&post); err != nil {
			return Page{}, storeErr(err)
		}
		batch = append(batch, post)
	}

	p.items = append(p.items, batch...)
	if len(batch) > 0 {
		last := batch[len(batch)-1]
		p.cursor = &store.Cursor{PublishAt: last.PublishAt, ID: last.ID}
	}
	if len(batch) < p.pageSize {
		p.hasMore = false
	}
	return Page{Items: batch, NextCursor: p.cursor, HasMore: p.hasMore}, nil
}

// Loaded returns a copy of every item fetched so far.
func (p *Paginator) Loaded() []models.Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Post, len(p.items))
	copy(out, p.items)
	return out
}

// Visible applies the render-time pass over the accumulated items:
// moderators see both moderation states, everyone else only approved,
// schedule-eligible posts; then an optional case-insensitive substring
// search over title, body and author name.
func (p *Paginator) Visible(principal *Principal, search string, now time.Time) []models.Post {
	items := p.Loaded()

	visible := lo.Filter(items, func(post models.Post, _ int) bool {
		return VisibleTo(principal, post, now)
	})

	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return visible
	}
	return lo.Filter(visible, func(post models.Post, _ int) bool {
		return strings.Contains(strings.ToLower(post.Title), q) ||
			strings.Contains(strings.ToLower(post.Desc), q) ||
			strings.Contains(strings.ToLower(post.AuthorName), q)
	})
}
