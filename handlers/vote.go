package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusfeed_backend/feed"
	"campusfeed_backend/middleware"
)

type VoteHandler struct {
	votes *feed.VotingLedger
}

func NewVoteHandler(votes *feed.VotingLedger) *VoteHandler {
	return &VoteHandler{votes: votes}
}

func (h *VoteHandler) ToggleLike(c *gin.Context) {
	p := middleware.Principal(c)
	liked, err := h.votes.ToggleLike(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (h *VoteHandler) ToggleDislike(c *gin.Context) {
	p := middleware.Principal(c)
	disliked, err := h.votes.ToggleDislike(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disliked": disliked})
}
