package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campusfeed_backend/feed"
	"campusfeed_backend/middleware"
	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

// anonSessionHeader carries the client's 4-digit viewing-session token so
// pseudonyms stay stable for the lifetime of that session.
const anonSessionHeader = "X-Anon-Session"

type CommentHandler struct {
	store   store.Store
	threads *feed.ThreadManager
	masks   *feed.Pseudonyms
}

func NewCommentHandler(s store.Store, threads *feed.ThreadManager, masks *feed.Pseudonyms) *CommentHandler {
	return &CommentHandler{store: s, threads: threads, masks: masks}
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	p := middleware.Principal(c)
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mask := h.masks.Session(c.GetHeader(anonSessionHeader))
	comment, err := h.threads.PostComment(c.Request.Context(), p, mask, feed.CommentInput{
		PostID:   c.Param("id"),
		Text:     req.Text,
		Image:    req.Image,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment, "session": mask.Token()})
}

func (h *CommentHandler) GetComments(c *gin.Context) {
	p := middleware.Principal(c)
	postID := c.Param("id")

	var post models.Post
	if err := h.store.Get(c.Request.Context(), store.Posts, postID, &post); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found", "reason": "not_found"})
		return
	}
	if !feed.VisibleTo(p, post, time.Now()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found", "reason": "not_found"})
		return
	}

	thread, err := h.threads.Thread(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	p := middleware.Principal(c)
	if err := h.threads.DeleteComment(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
