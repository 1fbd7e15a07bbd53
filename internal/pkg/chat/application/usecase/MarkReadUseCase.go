package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

// MarkReadInput acknowledges that ReaderID viewed messages from SenderID.
// An empty MessageID marks every unread message from SenderID.
type MarkReadInput struct {
	MessageID string
	ReaderID  string
	SenderID  string
}

// MarkReadUseCase sets read (and delivered) on the reader's copies and
// propagates a seen event to the room.
type MarkReadUseCase struct {
	deps    Deps
	metrics *engineMetrics
}

func NewMarkReadUseCase(deps Deps) *MarkReadUseCase {
	deps = deps.withDefaults()
	return &MarkReadUseCase{deps: deps, metrics: newEngineMetrics(deps.Meter)}
}

// Execute returns the ids that transitioned to read. On a partial
// persistence failure the ids already flagged are still announced.
func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) ([]string, error) {
	if in.ReaderID == "" || in.SenderID == "" || in.ReaderID == in.SenderID {
		return nil, fmt.Errorf("%w: reader and sender are required and must differ", ErrInvalidPayload)
	}

	unlock := uc.deps.Locks.Lock(in.ReaderID)
	targets, err := uc.targets(ctx, in)
	if err != nil {
		unlock()
		return nil, err
	}

	var ids []string
	var flagErr error
	for _, m := range targets {
		_, err := uc.deps.Retry.Do(ctx, func() error {
			return uc.deps.Store.SetMessageFlag(ctx, in.ReaderID, m.ID, chat.FlagRead, true)
		})
		if err != nil {
			add(ctx, uc.metrics.persistFailures, 1)
			flagErr = fmt.Errorf("%w: mark read: %v", ErrPersistence, err)
			break
		}
		ids = append(ids, m.ID)
	}
	unlock()

	add(ctx, uc.metrics.read, len(ids))
	if len(ids) > 0 {
		mirrorFlag(ctx, uc.deps, in.SenderID, ids, chat.FlagRead)
		uc.deps.Fanout.Multicast(chat.RoomID(in.ReaderID, in.SenderID), event.Encode(event.NewSeen(ids, in.ReaderID, in.SenderID)))
	}
	return ids, flagErr
}

func (uc *MarkReadUseCase) targets(ctx context.Context, in MarkReadInput) ([]chat.Message, error) {
	if in.MessageID != "" {
		m, err := findMessage(ctx, uc.deps, in.ReaderID, in.MessageID)
		if err != nil {
			return nil, err
		}
		if m.SenderID != in.SenderID || m.ReceiverID != in.ReaderID {
			return nil, fmt.Errorf("%w: message %s is not from %s to %s", ErrInvalidPayload, in.MessageID, in.SenderID, in.ReaderID)
		}
		if m.Read {
			return nil, nil
		}
		return []chat.Message{m}, nil
	}

	conv, err := findConversation(ctx, uc.deps, in.ReaderID, in.SenderID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv.Unread(in.SenderID), nil
}

func findConversation(ctx context.Context, deps Deps, ownerID, partnerID string) (*chat.Conversation, error) {
	var conv *chat.Conversation
	_, err := deps.Retry.Do(ctx, func() error {
		var err error
		conv, err = deps.Store.FindConversation(ctx, ownerID, partnerID)
		return err
	})
	if errors.Is(err, chat.ErrConversationNotFound) {
		return nil, fmt.Errorf("%w: conversation %s/%s", ErrNotFound, ownerID, partnerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find conversation: %v", ErrPersistence, err)
	}
	return conv, nil
}
