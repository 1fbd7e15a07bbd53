// Package event defines the JSON frames exchanged over the chat websocket.
// Every frame carries a "type" discriminator.
package event

import (
	"encoding/json"
	"errors"
	"time"

	chat "matchchat/internal/pkg/chat/application/domain"
)

const (
	TypeConnected      = "connected"
	TypeJoin           = "join"
	TypeJoined         = "joined"
	TypeLeave          = "leave"
	TypeLeft           = "left"
	TypeSend           = "send"
	TypeSent           = "sent"
	TypeMessage        = "message"
	TypeDelivered      = "delivered"
	TypeDeliveredBatch = "delivered-batch"
	TypeTyping         = "typing"
	TypeStopTyping     = "stop-typing"
	TypeSeen           = "seen"
	TypePresence       = "presence"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeError          = "error"
)

// Error codes carried by error frames.
const (
	CodeBadRequest        = "bad_request"
	CodeInvalidPayload    = "invalid_payload"
	CodePersistenceFailed = "persistence_failed"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeUnsupportedType   = "unsupported_type"
	CodeInternal          = "internal_error"
)

var ErrMissingType = errors.New("event: frame type is required")

// Inbound is any client → server frame. Fields unused by a type stay empty.
type Inbound struct {
	Type        string     `json:"type"`
	UserID      string     `json:"userId,omitempty"`
	OtherUserID string     `json:"otherUserId,omitempty"`
	MessageID   string     `json:"messageId,omitempty"`
	Sender      string     `json:"sender,omitempty"`
	Receiver    string     `json:"receiver,omitempty"`
	Content     string     `json:"content,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Time        int64      `json:"time,omitempty"`
}

// Decode parses one inbound frame.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, ErrMissingType
	}
	return in, nil
}

// MessagePayload is a message plus its UI-facing status.
type MessagePayload struct {
	chat.Message
	Status chat.Status `json:"status"`
}

func NewMessagePayload(m chat.Message) MessagePayload {
	return MessagePayload{Message: m, Status: m.Status()}
}

type Connected struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type Joined struct {
	Type        string `json:"type"`
	Room        string `json:"room"`
	UserID      string `json:"userId"`
	OtherUserID string `json:"otherUserId"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type Left struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type Sent struct {
	Type    string         `json:"type"`
	Message MessagePayload `json:"message"`
	Status  chat.Status    `json:"status"`
}

type Message struct {
	Type    string         `json:"type"`
	Room    string         `json:"room"`
	Message MessagePayload `json:"message"`
	Replay  bool           `json:"replay,omitempty"`
}

type Delivered struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
}

type DeliveredBatch struct {
	Type       string   `json:"type"`
	MessageIDs []string `json:"messageIds"`
	Sender     string   `json:"sender"`
	Receiver   string   `json:"receiver"`
}

type Typing struct {
	Type     string `json:"type"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

type Seen struct {
	Type       string   `json:"type"`
	MessageID  string   `json:"messageId,omitempty"`
	MessageIDs []string `json:"messageIds"`
	Reader     string   `json:"reader"`
	Sender     string   `json:"sender"`
}

type Presence struct {
	Type       string              `json:"type"`
	UserID     string              `json:"userId"`
	Status     chat.PresenceStatus `json:"status"`
	LastActive time.Time           `json:"lastActive"`
}

type Pong struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
}

type Error struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	MessageID string `json:"messageId,omitempty"`
}

// Encode marshals an outbound frame. The frame types above contain only
// JSON-safe fields, so a nil result only happens for foreign values.
func Encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func NewSent(m chat.Message) Sent {
	return Sent{Type: TypeSent, Message: NewMessagePayload(m), Status: chat.StatusSent}
}

func NewMessage(m chat.Message, replay bool) Message {
	return Message{
		Type:    TypeMessage,
		Room:    chat.RoomID(m.SenderID, m.ReceiverID),
		Message: NewMessagePayload(m),
		Replay:  replay,
	}
}

func NewDelivered(m chat.Message) Delivered {
	return Delivered{Type: TypeDelivered, MessageID: m.ID, Sender: m.SenderID, Receiver: m.ReceiverID}
}

func NewDeliveredBatch(ids []string, sender, receiver string) DeliveredBatch {
	return DeliveredBatch{Type: TypeDeliveredBatch, MessageIDs: ids, Sender: sender, Receiver: receiver}
}

func NewSeen(ids []string, reader, sender string) Seen {
	s := Seen{Type: TypeSeen, MessageIDs: ids, Reader: reader, Sender: sender}
	if len(ids) == 1 {
		s.MessageID = ids[0]
	}
	return s
}

func NewPresence(p chat.Presence) Presence {
	return Presence{Type: TypePresence, UserID: p.UserID, Status: p.Status, LastActive: p.LastActive}
}

func NewError(code, message, messageID string) Error {
	return Error{Type: TypeError, Code: code, Error: message, MessageID: messageID}
}
