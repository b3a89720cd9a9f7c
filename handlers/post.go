package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campusfeed_backend/feed"
	"campusfeed_backend/middleware"
	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

const (
	// Feed sessions are held server-side, so idle ones must be reclaimed
	// or an anonymous caller could mint unbounded paginator state.
	sessionIdleTTL  = 15 * time.Minute
	maxFeedSessions = 1024
)

type feedSession struct {
	pag      *feed.Paginator
	lastSeen time.Time
}

type PostHandler struct {
	store   store.Store
	threads *feed.ThreadManager
	now     func() time.Time

	// One paginator per feed session; a session is forward-only and is
	// discarded by the client starting over with a fresh session ID.
	// Idle sessions expire after sessionIdleTTL and the registry is
	// capped, evicting least-recently-used entries.
	mu       sync.Mutex
	sessions map[string]*feedSession
}

func NewPostHandler(s store.Store, threads *feed.ThreadManager) *PostHandler {
	return &PostHandler{
		store:    s,
		threads:  threads,
		now:      time.Now,
		sessions: make(map[string]*feedSession),
	}
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	p := middleware.Principal(c)
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	publishAt := now
	if req.PublishAt != nil {
		publishAt = *req.PublishAt
	}

	post := models.Post{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Desc:       req.Desc,
		Image:      req.Image,
		AuthorID:   p.ID,
		AuthorName: p.DisplayName,
		AuthorImg:  p.AvatarURL,
		CreatedAt:  now,
		PublishAt:  publishAt,
		State:      models.StatePending,
		Likers:     []string{},
		Dislikers:  []string{},
	}
	if err := h.store.Append(c.Request.Context(), store.Posts, post.ID, post); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

// GetFeed serves one paginator session: each call fetches the next page and
// returns the full accumulated set after the visibility+search pass, so the
// search term never disturbs the cursor chain.
func (h *PostHandler) GetFeed(c *gin.Context) {
	p := middleware.Principal(c)

	session := c.Query("session")
	if session == "" {
		session = c.GetHeader("X-Feed-Session")
	}
	if session == "" {
		session = uuid.NewString()
	}

	pag := h.session(session)

	// A cursor lets a client resume where an expired session left off.
	if token := c.Query("cursor"); token != "" {
		cur, err := store.DecodeCursor(token)
		if err != nil {
			respondError(c, fmt.Errorf("%w: %v", feed.ErrValidation, err))
			return
		}
		pag.Resume(&cur)
	}

	page, err := pag.FetchPage(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	visible := pag.Visible(p, c.Query("search"), now)

	items := make([]models.PostResponse, 0, len(visible))
	for _, post := range visible {
		items = append(items, h.response(c, post, now))
	}

	resp := models.FeedPageResponse{Items: items, HasMore: page.HasMore}
	if page.NextCursor != nil {
		resp.NextCursor = page.NextCursor.Encode()
	}
	c.JSON(http.StatusOK, gin.H{
		"session":     session,
		"items":       resp.Items,
		"next_cursor": resp.NextCursor,
		"has_more":    resp.HasMore,
	})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	p := middleware.Principal(c)
	postID := c.Param("id")

	var post models.Post
	if err := h.store.Get(c.Request.Context(), store.Posts, postID, &post); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found", "reason": "not_found"})
		return
	}

	now := time.Now()
	if !feed.VisibleTo(p, post, now) {
		// Hidden posts are indistinguishable from missing ones.
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found", "reason": "not_found"})
		return
	}

	c.JSON(http.StatusOK, h.response(c, post, now))
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	p := middleware.Principal(c)
	postID := c.Param("id")

	var req models.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var post models.Post
	if err := h.store.Get(c.Request.Context(), store.Posts, postID, &post); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found", "reason": "not_found"})
		return
	}
	if post.AuthorID != p.ID && !p.Moderator() {
		respondError(c, feed.ErrForbidden)
		return
	}

	// Moderation state is deliberately untouched by edits.
	fields := map[string]any{}
	if req.Title != "" {
		fields["title"] = req.Title
	}
	if req.Desc != "" {
		fields["desc"] = req.Desc
	}
	if req.Image != "" {
		fields["image"] = req.Image
	}
	if len(fields) == 0 {
		respondError(c, feed.ErrValidation)
		return
	}
	if err := h.store.UpdateFields(c.Request.Context(), store.Posts, postID, fields); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post updated"})
}

// DeletePost removes the post and its whole comment tree. Deletion is
// terminal and total.
func (h *PostHandler) DeletePost(c *gin.Context) {
	p := middleware.Principal(c)
	postID := c.Param("id")

	var post models.Post
	if err := h.store.Get(c.Request.Context(), store.Posts, postID, &post); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found", "reason": "not_found"})
		return
	}
	if post.AuthorID != p.ID && !p.Moderator() {
		respondError(c, feed.ErrForbidden)
		return
	}

	if err := h.threads.DeleteThread(c.Request.Context(), postID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.Delete(c.Request.Context(), store.Posts, postID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

func (h *PostHandler) session(id string) *feed.Paginator {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for key, s := range h.sessions {
		if now.Sub(s.lastSeen) > sessionIdleTTL {
			delete(h.sessions, key)
		}
	}

	s, ok := h.sessions[id]
	if !ok {
		if len(h.sessions) >= maxFeedSessions {
			h.evictOldestLocked()
		}
		s = &feedSession{pag: feed.NewPaginator(h.store, feed.DefaultPageSize)}
		h.sessions[id] = s
	}
	s.lastSeen = now
	return s.pag
}

func (h *PostHandler) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, s := range h.sessions {
		if oldestKey == "" || s.lastSeen.Before(oldest) {
			oldestKey, oldest = key, s.lastSeen
		}
	}
	delete(h.sessions, oldestKey)
}

func (h *PostHandler) response(c *gin.Context, post models.Post, now time.Time) models.PostResponse {
	count, err := h.threads.CommentCount(c.Request.Context(), post.ID)
	if err != nil {
		count = 0
	}
	resp := models.PostResponse{
		Post:         post,
		LikeCount:    len(post.Likers),
		DislikeCount: len(post.Dislikers),
		CommentCount: count,
		Upcoming:     feed.Upcoming(post, now),
	}
	if resp.Upcoming {
		resp.Countdown = feed.CountdownString(post.PublishAt.Sub(now))
	}
	return resp
}
