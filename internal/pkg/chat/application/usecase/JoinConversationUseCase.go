package usecase

import (
	"context"
	"fmt"

	chat "matchchat/internal/pkg/chat/application/domain"
	connections "matchchat/internal/repository/port"
)

// JoinConversationInput asks to attach a handle of UserID to the room shared
// with OtherUserID.
type JoinConversationInput struct {
	UserID      string
	OtherUserID string
}

// JoinConversationUseCase resolves the room and consults the connection gate
// before the handle is joined.
type JoinConversationUseCase struct {
	Gate connections.ConnectionRepository
}

func NewJoinConversationUseCase(gate connections.ConnectionRepository) *JoinConversationUseCase {
	if gate == nil {
		gate = connections.AllowAll{}
	}
	return &JoinConversationUseCase{Gate: gate}
}

func (uc *JoinConversationUseCase) Execute(ctx context.Context, in JoinConversationInput) (string, error) {
	if in.UserID == "" || in.OtherUserID == "" {
		return "", fmt.Errorf("%w: userId and otherUserId are required", ErrInvalidPayload)
	}
	if in.UserID == in.OtherUserID {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, chat.ErrSelfConversation)
	}

	ok, err := uc.Gate.AreConnected(ctx, in.UserID, in.OtherUserID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return "", ErrNotConnected
	}
	return chat.RoomID(in.UserID, in.OtherUserID), nil
}
