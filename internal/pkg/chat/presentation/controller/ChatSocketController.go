package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"matchchat/internal/infrastructure/realtime"
	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
	"matchchat/internal/pkg/chat/application/usecase"
)

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
type ChatSocketController struct {
	hub             *realtime.Hub
	engine          *usecase.Engine
	ident           Identifier
	log             logrus.FieldLogger
	inflightTimeout time.Duration
	readTimeout     time.Duration
}

func NewChatSocketController(hub *realtime.Hub, engine *usecase.Engine, ident Identifier, log logrus.FieldLogger, inflightTimeout time.Duration) *ChatSocketController {
	return &ChatSocketController{
		hub:             hub,
		engine:          engine,
		ident:           ident,
		log:             log,
		inflightTimeout: inflightOrDefault(inflightTimeout),
		readTimeout:     defaultReadTimeout,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Identity comes from the token or user_id, not from cookies.
		return true
	},
}

const (
	defaultReadTimeout = 60 * time.Second
	maxFrameSize       = 1 << 20
)

// session is one upgraded connection and its owner.
type session struct {
	conn   *realtime.Connection
	userID string
	log    logrus.FieldLogger
}

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ctl.ident.UserID(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			ctl.log.WithError(err).Debug("websocket upgrade failed")
			return
		}

		conn := realtime.NewConnection(userID, ws)
		conn.Start()
		s := &session{conn: conn, userID: userID, log: ctl.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"handle_id": conn.ID(),
		})}

		ctx := context.WithoutCancel(c.Request.Context())
		ctl.connect(ctx, s)
		defer ctl.disconnect(ctx, s)

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					s.log.WithError(err).Debug("websocket read ended")
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))

			in, err := event.Decode(data)
			if err != nil {
				ctl.replyError(s, event.CodeBadRequest, "invalid frame", "")
				continue
			}
			ctl.dispatch(ctx, s, in)
		}
	}
}

func (ctl *ChatSocketController) connect(ctx context.Context, s *session) {
	if ctl.hub.Register(s.userID, s.conn) {
		ctl.engine.Presence.AnnounceOnline(ctx, s.userID)
	} else {
		ctl.engine.Presence.Touch(ctx, s.userID)
	}
	_ = s.conn.Send(event.Encode(event.Connected{Type: event.TypeConnected, UserID: s.userID}))
	s.log.Info("websocket connected")
}

// disconnect tears the handle down. Rooms are captured before leaving so the
// offline event reaches the partners that shared them.
func (ctl *ChatSocketController) disconnect(ctx context.Context, s *session) {
	rooms := ctl.hub.RoomsOfUser(s.userID)
	ctl.hub.LeaveAll(s.conn)
	if ctl.hub.Unregister(s.userID, s.conn) {
		ctl.engine.Presence.AnnounceOffline(ctx, s.userID, rooms)
	}
	s.conn.Close(websocket.CloseNormalClosure, "session closed")
	s.log.Info("websocket disconnected")
}

func (ctl *ChatSocketController) dispatch(ctx context.Context, s *session, in event.Inbound) {
	switch in.Type {
	case event.TypeJoin:
		ctl.handleJoin(ctx, s, in)
	case event.TypeLeave:
		ctl.handleLeave(s, in)
	case event.TypeSend:
		ctl.handleSend(ctx, s, in)
	case event.TypeTyping, event.TypeStopTyping:
		ctl.handleTyping(s, in)
	case event.TypeSeen:
		ctl.handleSeen(ctx, s, in)
	case event.TypePing:
		ctl.handlePing(ctx, s, in)
	default:
		ctl.replyError(s, event.CodeUnsupportedType, "unknown frame type", "")
	}
}

// actingAs checks that a user id named in a frame is the caller. An empty
// id means the caller.
func (ctl *ChatSocketController) actingAs(s *session, claimed string) bool {
	if claimed != "" && claimed != s.userID {
		ctl.replyError(s, event.CodeForbidden, "frame names another user", "")
		return false
	}
	return true
}

func (ctl *ChatSocketController) handleJoin(ctx context.Context, s *session, in event.Inbound) {
	if !ctl.actingAs(s, in.UserID) {
		return
	}

	jctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout)
	room, err := ctl.engine.Join.Execute(jctx, usecase.JoinConversationInput{UserID: s.userID, OtherUserID: in.OtherUserID})
	cancel()
	if err != nil {
		_ = s.conn.Send(event.Encode(event.Joined{
			Type: event.TypeJoined, UserID: s.userID, OtherUserID: in.OtherUserID, Error: errorMessage(err),
		}))
		ctl.replyError(s, errorCode(err), errorMessage(err), "")
		return
	}

	firstInRoom := ctl.hub.UserHandlesIn(room, s.userID) == 0
	ctl.hub.Join(s.conn, room)
	_ = s.conn.Send(event.Encode(event.Joined{
		Type: event.TypeJoined, Room: room, UserID: s.userID, OtherUserID: in.OtherUserID, Success: true,
	}))

	_ = s.conn.Send(event.Encode(event.NewPresence(ctl.engine.Presence.Snapshot(ctx, in.OtherUserID))))
	if firstInRoom {
		ctl.engine.Presence.AnnounceInRoom(ctx, s.userID, room)
	}

	rctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout)
	defer cancel()
	_, err = ctl.engine.Replay.Execute(rctx, usecase.ReplayInput{UserID: s.userID, PartnerID: in.OtherUserID, Handle: s.conn})
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		s.log.WithField("room", room).Debug("nothing to replay")
	case err != nil:
		s.log.WithField("room", room).WithError(err).Warn("replay failed")
	}
}

func (ctl *ChatSocketController) handleLeave(s *session, in event.Inbound) {
	if !ctl.actingAs(s, in.UserID) {
		return
	}
	if in.OtherUserID == "" {
		ctl.replyError(s, event.CodeBadRequest, "otherUserId is required", "")
		return
	}
	room := chat.RoomID(s.userID, in.OtherUserID)
	ctl.hub.Leave(s.conn, room)
	_ = s.conn.Send(event.Encode(event.Left{Type: event.TypeLeft, Room: room}))
}

func (ctl *ChatSocketController) handleSend(ctx context.Context, s *session, in event.Inbound) {
	if !ctl.actingAs(s, in.Sender) {
		return
	}
	var createdAt time.Time
	if in.Timestamp != nil {
		createdAt = *in.Timestamp
	}

	sctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout)
	defer cancel()
	_, err := ctl.engine.Send.Execute(sctx, usecase.SendMessageInput{
		MessageID:  in.MessageID,
		SenderID:   s.userID,
		ReceiverID: in.Receiver,
		Content:    in.Content,
		CreatedAt:  createdAt,
	})
	if err != nil {
		ctl.replyError(s, errorCode(err), errorMessage(err), in.MessageID)
	}
}

// handleTyping relays typing state to the room; nothing is persisted.
func (ctl *ChatSocketController) handleTyping(s *session, in event.Inbound) {
	if !ctl.actingAs(s, in.Sender) {
		return
	}
	if in.Receiver == "" || in.Receiver == s.userID {
		ctl.replyError(s, event.CodeBadRequest, "receiver is required", "")
		return
	}
	ctl.hub.Multicast(chat.RoomID(s.userID, in.Receiver), event.Encode(event.Typing{
		Type: in.Type, Sender: s.userID, Receiver: in.Receiver,
	}))
}

// handleSeen: sender is the reader, receiver the author of the messages.
func (ctl *ChatSocketController) handleSeen(ctx context.Context, s *session, in event.Inbound) {
	if !ctl.actingAs(s, in.Sender) {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout)
	defer cancel()
	_, err := ctl.engine.Read.Execute(sctx, usecase.MarkReadInput{
		MessageID: in.MessageID,
		ReaderID:  s.userID,
		SenderID:  in.Receiver,
	})
	if err != nil {
		ctl.replyError(s, errorCode(err), errorMessage(err), in.MessageID)
	}
}

func (ctl *ChatSocketController) handlePing(ctx context.Context, s *session, in event.Inbound) {
	ctl.engine.Presence.Touch(ctx, s.userID)
	t := in.Time
	if t == 0 {
		t = time.Now().UnixMilli()
	}
	_ = s.conn.Send(event.Encode(event.Pong{Type: event.TypePong, Time: t}))
}

func (ctl *ChatSocketController) replyError(s *session, code, message, messageID string) {
	if err := s.conn.Send(event.Encode(event.NewError(code, message, messageID))); err != nil {
		s.log.WithError(err).Debug("error frame not sent")
	}
}
