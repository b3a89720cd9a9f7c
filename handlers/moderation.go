package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"campusfeed_backend/feed"
	"campusfeed_backend/middleware"
	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

type ModerationHandler struct {
	store     store.Store
	moderator *feed.Moderator
	pending   *feed.PendingCounter
}

func NewModerationHandler(s store.Store, moderator *feed.Moderator, pending *feed.PendingCounter) *ModerationHandler {
	return &ModerationHandler{store: s, moderator: moderator, pending: pending}
}

// Moderate applies an approve/disapprove action to a post. Routing already
// guarantees a moderator principal; the engine checks again regardless.
func (h *ModerationHandler) Moderate(c *gin.Context) {
	p := middleware.Principal(c)
	var req models.ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.moderator.Transition(c.Request.Context(), p, c.Param("id"), req.Action == "approve"); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post " + req.Action + "d"})
}

// PendingCount exposes the reactive queue-depth indicator.
func (h *ModerationHandler) PendingCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pending": h.pending.Count()})
}

// Queue lists posts for the dashboard, split into approved vs
// pending/disapproved like the admin view expects.
func (h *ModerationHandler) Queue(c *gin.Context) {
	show := c.DefaultQuery("show", "pending")

	docs, err := h.store.List(c.Request.Context(), store.Posts)
	if err != nil {
		respondError(c, err)
		return
	}

	var posts []models.Post
	for _, d := range docs {
		var post models.Post
		if err := d.Unmarshal(&post); err != nil {
			continue
		}
		approved := post.State == models.StateApproved
		if (show == "approved") == approved {
			posts = append(posts, post)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].PublishAt.Equal(posts[j].PublishAt) {
			return posts[i].PublishAt.After(posts[j].PublishAt)
		}
		return posts[i].ID > posts[j].ID
	})

	c.JSON(http.StatusOK, posts)
}
