package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

type UserHandler struct {
	store store.Store
}

func NewUserHandler(s store.Store) *UserHandler {
	return &UserHandler{store: s}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	docs, err := h.store.List(c.Request.Context(), store.Users)
	if err != nil {
		respondError(c, err)
		return
	}
	users := make([]models.UserResponse, 0, len(docs))
	for _, d := range docs {
		var user models.User
		if err := d.Unmarshal(&user); err != nil {
			continue
		}
		users = append(users, user.Response())
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) SetRole(c *gin.Context) {
	var req models.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.UpdateFields(c.Request.Context(), store.Users, c.Param("id"), map[string]any{
		"role": req.Role,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

func (h *UserHandler) DisableUser(c *gin.Context) {
	h.setDisabled(c, true)
}

func (h *UserHandler) EnableUser(c *gin.Context) {
	h.setDisabled(c, false)
}

func (h *UserHandler) setDisabled(c *gin.Context, disabled bool) {
	if err := h.store.UpdateFields(c.Request.Context(), store.Users, c.Param("id"), map[string]any{
		"disabled": disabled,
	}); err != nil {
		respondError(c, err)
		return
	}
	msg := "User enabled"
	if disabled {
		msg = "User disabled"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
