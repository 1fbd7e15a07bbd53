package repository

import (
	"context"

	chat "matchchat/internal/pkg/chat/application/domain"
)

// MessageStore is the durable storage of per-owner conversation copies.
// Every message is written twice, once into each participant's copy.
// Implementations must be safe for concurrent use.
type MessageStore interface {
	// AppendMessage appends m to owner's conversation with partner. Appending
	// an id that already exists in owner's copy is a successful no-op.
	AppendMessage(ctx context.Context, ownerID, partnerID string, m chat.Message) error

	// FindConversation returns owner's copy in insertion order, or
	// chat.ErrConversationNotFound.
	FindConversation(ctx context.Context, ownerID, partnerID string) (*chat.Conversation, error)

	// FindMessage returns one message of owner's copy, or chat.ErrMessageNotFound.
	FindMessage(ctx context.Context, ownerID, messageID string) (*chat.Message, error)

	// SetMessageFlag updates one flag of owner's copy of the message, or
	// returns chat.ErrMessageNotFound. Setting read also sets delivered.
	SetMessageFlag(ctx context.Context, ownerID, messageID string, flag chat.Flag, value bool) error
}
