package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	cacheport "matchchat/internal/infrastructure/cache/port"
	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

// SendMessageInput carries one send intent. MessageID is the optional
// client-generated id used for deduplication.
type SendMessageInput struct {
	MessageID  string
	SenderID   string
	ReceiverID string
	Content    string
	CreatedAt  time.Time
}

type SendMessageResult struct {
	Message chat.Message
	// Duplicate is set when MessageID was already known; Message is then the
	// originally persisted one.
	Duplicate bool
	// Reached is set when at least one live handle of the recipient got the message.
	Reached bool
}

// SendMessageUseCase persists a message into both participant copies and
// delivers it through the conversation room.
type SendMessageUseCase struct {
	deps      Deps
	delivered *MarkDeliveredUseCase
	metrics   *engineMetrics
}

func NewSendMessageUseCase(deps Deps, delivered *MarkDeliveredUseCase) *SendMessageUseCase {
	deps = deps.withDefaults()
	return &SendMessageUseCase{deps: deps, delivered: delivered, metrics: newEngineMetrics(deps.Meter)}
}

// Execute runs send, persist(sender), persist(recipient), sent/message
// events, delivered. Nothing is multicast unless both copies persisted.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	msg, err := chat.NewMessage(chat.Message{
		ID:         in.MessageID,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		CreatedAt:  in.CreatedAt,
	}, uc.deps.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	unlock := uc.deps.Locks.Lock(msg.SenderID)
	existing, duplicate, err := uc.lookupDuplicate(ctx, *msg)
	if err != nil {
		unlock()
		return nil, err
	}
	if !duplicate {
		_, err = uc.deps.Retry.Do(ctx, func() error {
			return uc.deps.Store.AppendMessage(ctx, msg.SenderID, msg.ReceiverID, *msg)
		})
	}
	unlock()

	if duplicate {
		return uc.resend(ctx, existing)
	}
	if err != nil {
		add(ctx, uc.metrics.persistFailures, 1)
		uc.log(*msg).WithError(err).Error("sender copy write exhausted retries")
		return nil, fmt.Errorf("%w: sender copy: %v", ErrPersistence, err)
	}

	res, err := uc.publish(ctx, *msg, false)
	if err != nil {
		return nil, err
	}
	uc.remember(ctx, *msg)
	add(ctx, uc.metrics.sent, 1)
	return res, nil
}

// resend answers a duplicate send with the original message. The recipient
// copy is re-appended (idempotent) so a copy lost to an earlier exhausted
// retry converges, and the message is re-multicast while still undelivered.
func (uc *SendMessageUseCase) resend(ctx context.Context, original chat.Message) (*SendMessageResult, error) {
	add(ctx, uc.metrics.duplicates, 1)
	return uc.publish(ctx, original, true)
}

// publish writes the recipient copy, echoes "sent" to the sender and pushes
// the message into the room. The recipient's lock is held from the append
// until the delivered flag is set, so a replay running for a handle that
// just joined either sees the message delivered or emits it itself.
func (uc *SendMessageUseCase) publish(ctx context.Context, m chat.Message, duplicate bool) (*SendMessageResult, error) {
	unlock := uc.deps.Locks.Lock(m.ReceiverID)
	attempts, err := uc.deps.Retry.Do(ctx, func() error {
		return uc.deps.Store.AppendMessage(ctx, m.ReceiverID, m.SenderID, m)
	})
	if err != nil {
		unlock()
		return nil, uc.recipientCopyFailed(ctx, m, attempts, err)
	}

	res := &SendMessageResult{Message: m, Duplicate: duplicate}
	multicast := true
	if duplicate {
		recipientCopy, err := findMessage(ctx, uc.deps, m.ReceiverID, m.ID)
		if err != nil {
			unlock()
			return nil, err
		}
		res.Message = recipientCopy
		multicast = !recipientCopy.Has(chat.FlagDelivered)
	}

	uc.deps.Fanout.NotifyUser(m.SenderID, event.Encode(event.NewSent(res.Message)))
	if !multicast {
		unlock()
		return res, nil
	}
	reach := uc.deps.Fanout.Multicast(chat.RoomID(m.SenderID, m.ReceiverID), event.Encode(event.NewMessage(res.Message, false)))
	if !reach.Reached(m.ReceiverID) || uc.delivered == nil {
		unlock()
		return res, nil
	}
	res.Reached = true
	marked, changed, err := uc.delivered.applyLocked(ctx, m.ReceiverID, m.ID)
	unlock()

	if err != nil {
		uc.log(m).WithError(err).Warn("mark delivered after multicast failed; replay will retry")
		return res, nil
	}
	if changed {
		uc.delivered.announce(ctx, marked)
	}
	res.Message.Delivered = true
	return res, nil
}

func (uc *SendMessageUseCase) recipientCopyFailed(ctx context.Context, m chat.Message, attempts int, err error) error {
	add(ctx, uc.metrics.persistFailures, 1)
	log := uc.log(m).WithFields(logrus.Fields{"attempts": attempts}).WithError(err)
	if id, qerr := enqueueRepair(ctx, uc.deps, uc.metrics, m); qerr == nil && id != "" {
		log = log.WithField("repair_task_id", id)
	}
	log.Error("recipient copy write exhausted retries")
	return fmt.Errorf("%w: recipient copy: %v", ErrPersistence, err)
}

// lookupDuplicate finds an earlier message with the same id in the sender's
// copy. An id reused for a different conversation or sender is rejected.
func (uc *SendMessageUseCase) lookupDuplicate(ctx context.Context, m chat.Message) (chat.Message, bool, error) {
	existing, ok := uc.recall(ctx, m)
	if !ok {
		found, err := uc.deps.Store.FindMessage(ctx, m.SenderID, m.ID)
		switch {
		case err == nil:
			existing, ok = *found, true
		case errors.Is(err, chat.ErrMessageNotFound):
		default:
			// The append below is idempotent by id, so a failed lookup only
			// costs a possible second multicast.
			uc.log(m).WithError(err).Warn("duplicate lookup failed")
		}
	}
	if !ok {
		return chat.Message{}, false, nil
	}
	if existing.SenderID != m.SenderID || existing.ReceiverID != m.ReceiverID {
		return chat.Message{}, false, fmt.Errorf("%w: message id %s already used", ErrInvalidPayload, m.ID)
	}
	return existing, true, nil
}

func dedupeKey(senderID, messageID string) string {
	return "dedupe:" + senderID + ":" + messageID
}

func (uc *SendMessageUseCase) recall(ctx context.Context, m chat.Message) (chat.Message, bool) {
	if uc.deps.Cache == nil {
		return chat.Message{}, false
	}
	raw, err := uc.deps.Cache.Get(ctx, dedupeKey(m.SenderID, m.ID))
	if err != nil {
		if !errors.Is(err, cacheport.ErrMiss) {
			uc.log(m).WithError(err).Debug("dedupe cache unavailable")
		}
		return chat.Message{}, false
	}
	var cached chat.Message
	if json.Unmarshal([]byte(raw), &cached) != nil {
		return chat.Message{}, false
	}
	return cached, true
}

func (uc *SendMessageUseCase) remember(ctx context.Context, m chat.Message) {
	if uc.deps.Cache == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := uc.deps.Cache.Set(ctx, dedupeKey(m.SenderID, m.ID), string(raw), uc.deps.DedupeTTL); err != nil {
		uc.log(m).WithError(err).Debug("dedupe cache write failed")
	}
}

func (uc *SendMessageUseCase) log(m chat.Message) logrus.FieldLogger {
	return uc.deps.Log.WithFields(logrus.Fields{
		"message_id":  m.ID,
		"sender_id":   m.SenderID,
		"receiver_id": m.ReceiverID,
	})
}
