package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"matchchat/internal/pkg/chat/application/event"
	"matchchat/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint).
// It runs the same engine path as a websocket "send" frame.
type SendMessageController struct {
	UC      *usecase.SendMessageUseCase
	ident   Identifier
	timeout time.Duration
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, ident Identifier, timeout time.Duration) *SendMessageController {
	return &SendMessageController{UC: uc, ident: ident, timeout: inflightOrDefault(timeout)}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	MessageID string     `json:"messageId"`
	Receiver  string     `json:"receiver" binding:"required"`
	Content   string     `json:"content" binding:"required"`
	Timestamp *time.Time `json:"timestamp"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.ident.UserID(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in := usecase.SendMessageInput{
			MessageID:  req.MessageID,
			SenderID:   userID,
			ReceiverID: req.Receiver,
			Content:    req.Content,
		}
		if req.Timestamp != nil {
			in.CreatedAt = *req.Timestamp
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		res, err := h.UC.Execute(ctx, in)
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": errorMessage(err), "messageId": req.MessageID})
			return
		}

		status := http.StatusCreated
		if res.Duplicate {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{
			"message":   event.NewMessagePayload(res.Message),
			"duplicate": res.Duplicate,
		})
	}
}
