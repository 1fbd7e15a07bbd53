package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "matchchat/internal/pkg/chat/application/domain"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// GetConversationInput pages backwards from the newest message: Offset
// skips that many of the most recent messages.
type GetConversationInput struct {
	OwnerID   string
	PartnerID string
	Limit     int
	Offset    int
}

// GetConversationUseCase reads the caller's own copy of a conversation.
type GetConversationUseCase struct {
	deps Deps
}

func NewGetConversationUseCase(deps Deps) *GetConversationUseCase {
	return &GetConversationUseCase{deps: deps.withDefaults()}
}

// Execute returns the requested window in chronological order. A pair that
// never exchanged messages yields an empty conversation.
func (uc *GetConversationUseCase) Execute(ctx context.Context, in GetConversationInput) (*chat.Conversation, error) {
	if in.OwnerID == "" || in.PartnerID == "" {
		return nil, fmt.Errorf("%w: owner and partner are required", ErrInvalidPayload)
	}
	if in.OwnerID == in.PartnerID {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, chat.ErrSelfConversation)
	}
	if in.Offset < 0 || in.Limit < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidPayload)
	}
	limit := in.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	conv, err := findConversation(ctx, uc.deps, in.OwnerID, in.PartnerID)
	if errors.Is(err, ErrNotFound) {
		return &chat.Conversation{OwnerID: in.OwnerID, PartnerID: in.PartnerID, Messages: []chat.Message{}}, nil
	}
	if err != nil {
		return nil, err
	}

	end := len(conv.Messages) - in.Offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	window := make([]chat.Message, end-start)
	copy(window, conv.Messages[start:end])
	conv.Messages = window
	return conv, nil
}
