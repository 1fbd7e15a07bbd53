package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matchchat/internal/pkg/chat/application/usecase"
)

// PresenceController reports whether a user is online and when they were last active.
type PresenceController struct {
	presence *usecase.PresenceNotifier
}

func NewPresenceController(presence *usecase.PresenceNotifier) *PresenceController {
	return &PresenceController{presence: presence}
}

func (h *PresenceController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}
		c.JSON(http.StatusOK, h.presence.Snapshot(c.Request.Context(), userID))
	}
}
