package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"matchchat/internal/pkg/chat/application/event"
	"matchchat/internal/pkg/chat/application/usecase"
)

// GetConversationController serves the caller's copy of a conversation.
type GetConversationController struct {
	UC      *usecase.GetConversationUseCase
	ident   Identifier
	timeout time.Duration
}

func NewGetConversationController(uc *usecase.GetConversationUseCase, ident Identifier, timeout time.Duration) *GetConversationController {
	return &GetConversationController{UC: uc, ident: ident, timeout: inflightOrDefault(timeout)}
}

func (h *GetConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.ident.UserID(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		limit := usecase.DefaultHistoryLimit
		offset := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.GetConversationInput{
			OwnerID:   userID,
			PartnerID: c.Param("partnerId"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": errorMessage(err)})
			return
		}

		out := make([]event.MessagePayload, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			out = append(out, event.NewMessagePayload(m))
		}
		c.JSON(http.StatusOK, gin.H{
			"ownerId":   conv.OwnerID,
			"partnerId": conv.PartnerID,
			"messages":  out,
			"limit":     limit,
			"offset":    offset,
			"count":     len(out),
		})
	}
}
