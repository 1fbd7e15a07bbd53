package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"matchchat/internal/pkg/chat/application/usecase"
)

// MarkReadController marks messages from a partner as read over HTTP, for
// clients that render history without an open socket.
type MarkReadController struct {
	UC      *usecase.MarkReadUseCase
	ident   Identifier
	timeout time.Duration
}

func NewMarkReadController(uc *usecase.MarkReadUseCase, ident Identifier, timeout time.Duration) *MarkReadController {
	return &MarkReadController{UC: uc, ident: ident, timeout: inflightOrDefault(timeout)}
}

type markReadRequest struct {
	MessageID string `json:"messageId"`
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.ident.UserID(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		var req markReadRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		ids, err := h.UC.Execute(ctx, usecase.MarkReadInput{
			MessageID: req.MessageID,
			ReaderID:  userID,
			SenderID:  c.Param("partnerId"),
		})
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": errorMessage(err), "messageIds": ids})
			return
		}
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"messageIds": ids})
	}
}
