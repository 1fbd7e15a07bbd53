package chat

import "errors"

// Domain-level errors for chat behaviors
var (
	ErrMissingParticipant   = errors.New("chat: sender and receiver are required")
	ErrSelfConversation     = errors.New("chat: sender and receiver must differ")
	ErrEmptyMessage         = errors.New("chat: empty message content")
	ErrUnknownFlag          = errors.New("chat: unknown message flag")
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrMessageNotFound      = errors.New("chat: message not found")
)
