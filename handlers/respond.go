package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusfeed_backend/feed"
)

// respondError maps the engine's error taxonomy onto HTTP statuses and
// returns the structured failure body every endpoint shares.
func respondError(c *gin.Context, err error) {
	reason := feed.ReasonCode(err)
	status := http.StatusInternalServerError
	switch reason {
	case "validation_error":
		status = http.StatusBadRequest
	case "authorization_error":
		status = http.StatusForbidden
	case "rate_limit_exceeded":
		status = http.StatusTooManyRequests
	case "not_found":
		status = http.StatusNotFound
	case "store_unavailable":
		status = http.StatusServiceUnavailable
	case "fetch_in_flight":
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error(), "reason": reason})
}
