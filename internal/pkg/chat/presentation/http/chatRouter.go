package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"matchchat/internal/infrastructure/realtime"
	"matchchat/internal/pkg/chat/application/usecase"
	"matchchat/internal/pkg/chat/presentation/controller"
)

// Options are what the chat routes need from the composition root.
type Options struct {
	Hub             *realtime.Hub
	Engine          *usecase.Engine
	Identifier      controller.Identifier
	Log             logrus.FieldLogger
	InflightTimeout time.Duration
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, opts Options) {
	socketCtl := controller.NewChatSocketController(opts.Hub, opts.Engine, opts.Identifier, opts.Log, opts.InflightTimeout)
	historyCtl := controller.NewGetConversationController(opts.Engine.History, opts.Identifier, opts.InflightTimeout)
	readCtl := controller.NewMarkReadController(opts.Engine.Read, opts.Identifier, opts.InflightTimeout)
	sendCtl := controller.NewSendMessageController(opts.Engine.Send, opts.Identifier, opts.InflightTimeout)
	presenceCtl := controller.NewPresenceController(opts.Engine.Presence)

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/ws", socketCtl.Handle())

	// POST /api/v1/chat/messages -> send a message without a socket
	g.POST("/messages", sendCtl.Handle())

	// GET /api/v1/chat/conversations/:partnerId -> caller's copy of the conversation
	g.GET("/conversations/:partnerId", historyCtl.Handle())

	// POST /api/v1/chat/conversations/:partnerId/read -> mark messages from partner read
	g.POST("/conversations/:partnerId/read", readCtl.Handle())

	// GET /api/v1/chat/presence/:userId -> online status and last activity
	g.GET("/presence/:userId", presenceCtl.Handle())
}
