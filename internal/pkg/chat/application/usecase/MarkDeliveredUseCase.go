package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

// MarkDeliveredInput identifies the recipient-local copy to flag.
type MarkDeliveredInput struct {
	MessageID   string
	RecipientID string
}

// MarkDeliveredUseCase moves a recipient copy to delivered and tells the room.
type MarkDeliveredUseCase struct {
	deps    Deps
	metrics *engineMetrics
}

func NewMarkDeliveredUseCase(deps Deps) *MarkDeliveredUseCase {
	deps = deps.withDefaults()
	return &MarkDeliveredUseCase{deps: deps, metrics: newEngineMetrics(deps.Meter)}
}

// Execute reports whether the flag changed. Already delivered or read
// messages are a no-op and produce no event.
func (uc *MarkDeliveredUseCase) Execute(ctx context.Context, in MarkDeliveredInput) (bool, error) {
	if in.MessageID == "" || in.RecipientID == "" {
		return false, fmt.Errorf("%w: messageId and recipient are required", ErrInvalidPayload)
	}
	unlock := uc.deps.Locks.Lock(in.RecipientID)
	m, changed, err := uc.applyLocked(ctx, in.RecipientID, in.MessageID)
	unlock()
	if err != nil || !changed {
		return changed, err
	}
	uc.announce(ctx, m)
	return true, nil
}

// applyLocked sets the flag on the recipient copy without mirroring or
// emitting anything. The caller holds the recipient's lock.
func (uc *MarkDeliveredUseCase) applyLocked(ctx context.Context, recipientID, messageID string) (chat.Message, bool, error) {
	m, err := findMessage(ctx, uc.deps, recipientID, messageID)
	if err != nil {
		return chat.Message{}, false, err
	}
	if m.ReceiverID != recipientID {
		return chat.Message{}, false, fmt.Errorf("%w: %s is not the recipient of %s", ErrInvalidPayload, recipientID, messageID)
	}
	if m.Has(chat.FlagDelivered) {
		return m, false, nil
	}
	_, err = uc.deps.Retry.Do(ctx, func() error {
		return uc.deps.Store.SetMessageFlag(ctx, recipientID, messageID, chat.FlagDelivered, true)
	})
	if err != nil {
		add(ctx, uc.metrics.persistFailures, 1)
		return chat.Message{}, false, fmt.Errorf("%w: mark delivered: %v", ErrPersistence, err)
	}

	m.Apply(chat.FlagDelivered)
	add(ctx, uc.metrics.delivered, 1)
	return m, true, nil
}

// announce mirrors a fresh delivered transition onto the sender copy and
// tells the room. Call it after releasing the recipient's lock.
func (uc *MarkDeliveredUseCase) announce(ctx context.Context, m chat.Message) {
	mirrorFlag(ctx, uc.deps, m.SenderID, []string{m.ID}, chat.FlagDelivered)
	uc.deps.Fanout.Multicast(chat.RoomID(m.SenderID, m.ReceiverID), event.Encode(event.NewDelivered(m)))
}

func findMessage(ctx context.Context, deps Deps, ownerID, messageID string) (chat.Message, error) {
	var m *chat.Message
	_, err := deps.Retry.Do(ctx, func() error {
		var err error
		m, err = deps.Store.FindMessage(ctx, ownerID, messageID)
		return err
	})
	if errors.Is(err, chat.ErrMessageNotFound) {
		return chat.Message{}, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: find message: %v", ErrPersistence, err)
	}
	return *m, nil
}

// mirrorFlag copies a recipient-side transition onto the sender's copy so the
// sender's history renders the same status. Failures are logged only: the
// recipient copy is the source of truth for delivery state.
func mirrorFlag(ctx context.Context, deps Deps, ownerID string, ids []string, flag chat.Flag) {
	if len(ids) == 0 {
		return
	}
	unlock := deps.Locks.Lock(ownerID)
	defer unlock()
	for _, id := range ids {
		_, err := deps.Retry.Do(ctx, func() error {
			return deps.Store.SetMessageFlag(ctx, ownerID, id, flag, true)
		})
		if err != nil {
			deps.Log.WithFields(logrus.Fields{
				"owner_id":   ownerID,
				"message_id": id,
				"flag":       flag,
			}).WithError(err).Warn("mirror flag onto sender copy failed")
		}
	}
}
