package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

// ReplayInput names the user that just joined the room with PartnerID and
// the handle that joined.
type ReplayInput struct {
	UserID    string
	PartnerID string
	Handle    Emitter
}

// ReplayUseCase flushes messages persisted while the user was away. The
// user's own conversation copy is the pending queue: anything from the
// partner not yet delivered is emitted to the joining handle, in order.
type ReplayUseCase struct {
	deps      Deps
	delivered *MarkDeliveredUseCase
	metrics   *engineMetrics
}

func NewReplayUseCase(deps Deps, delivered *MarkDeliveredUseCase) *ReplayUseCase {
	deps = deps.withDefaults()
	return &ReplayUseCase{deps: deps, delivered: delivered, metrics: newEngineMetrics(deps.Meter)}
}

// Execute returns the ids that transitioned to delivered. The partner gets
// one delivered-batch event for all of them.
func (uc *ReplayUseCase) Execute(ctx context.Context, in ReplayInput) ([]string, error) {
	if in.UserID == "" || in.PartnerID == "" || in.Handle == nil {
		return nil, fmt.Errorf("%w: user, partner and handle are required", ErrInvalidPayload)
	}
	conv, err := findConversation(ctx, uc.deps, in.UserID, in.PartnerID)
	if err != nil {
		return nil, err
	}

	log := uc.deps.Log.WithFields(logrus.Fields{"user_id": in.UserID, "partner_id": in.PartnerID})
	var ids []string
	for _, m := range conv.Undelivered(in.PartnerID) {
		changed, err := uc.replayOne(ctx, in, m.ID)
		if errors.Is(err, ErrTransport) {
			// The handle is gone; the rest stays pending for the next join.
			log.WithError(err).Debug("replay stopped")
			break
		}
		if err != nil {
			log.WithField("message_id", m.ID).WithError(err).Warn("replayed message not marked delivered")
			continue
		}
		if changed {
			mirrorFlag(ctx, uc.deps, in.PartnerID, []string{m.ID}, chat.FlagDelivered)
			ids = append(ids, m.ID)
		}
	}

	add(ctx, uc.metrics.replayed, len(ids))
	if len(ids) > 0 {
		uc.deps.Fanout.NotifyUser(in.PartnerID, event.Encode(event.NewDeliveredBatch(ids, in.PartnerID, in.UserID)))
		log.WithField("count", len(ids)).Debug("replayed undelivered messages")
	}
	return ids, nil
}

// replayOne re-reads one message under the user's lock, so a live send that
// already reached a handle and marked it delivered is not emitted twice.
func (uc *ReplayUseCase) replayOne(ctx context.Context, in ReplayInput, messageID string) (bool, error) {
	unlock := uc.deps.Locks.Lock(in.UserID)
	defer unlock()

	m, err := findMessage(ctx, uc.deps, in.UserID, messageID)
	if err != nil {
		return false, err
	}
	if m.Has(chat.FlagDelivered) {
		return false, nil
	}
	if err := in.Handle.Send(event.Encode(event.NewMessage(m, true))); err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	_, changed, err := uc.delivered.applyLocked(ctx, in.UserID, messageID)
	return changed, err
}
