package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	qport "matchchat/internal/infrastructure/queue/port"
	chat "matchchat/internal/pkg/chat/application/domain"
)

// RepairCopyTaskType is the queue task that re-appends a participant copy
// whose inline retries were exhausted.
const RepairCopyTaskType = "chat:repair_copy"

// RepairCopyPayload is the JSON payload transported via the queue.
type RepairCopyPayload struct {
	OwnerID   string       `json:"ownerId"`
	PartnerID string       `json:"partnerId"`
	Message   chat.Message `json:"message"`
}

// RepairCopyUseCase appends a missing participant copy. Appends are
// idempotent by id, so running it for an existing copy is harmless.
type RepairCopyUseCase struct {
	deps    Deps
	metrics *engineMetrics
}

func NewRepairCopyUseCase(deps Deps) *RepairCopyUseCase {
	deps = deps.withDefaults()
	return &RepairCopyUseCase{deps: deps, metrics: newEngineMetrics(deps.Meter)}
}

func (uc *RepairCopyUseCase) Execute(ctx context.Context, in RepairCopyPayload) error {
	if in.OwnerID == "" || in.PartnerID == "" || in.Message.ID == "" {
		return fmt.Errorf("%w: owner, partner and message id are required", ErrInvalidPayload)
	}
	unlock := uc.deps.Locks.Lock(in.OwnerID)
	defer unlock()
	_, err := uc.deps.Retry.Do(ctx, func() error {
		return uc.deps.Store.AppendMessage(ctx, in.OwnerID, in.PartnerID, in.Message)
	})
	if err != nil {
		return fmt.Errorf("%w: repair copy: %v", ErrPersistence, err)
	}
	add(ctx, uc.metrics.repaired, 1)
	uc.deps.Log.WithField("message_id", in.Message.ID).WithField("owner_id", in.OwnerID).Info("participant copy repaired")
	return nil
}

// enqueueRepair schedules a background repair of m's recipient copy. It is a
// no-op without a queue.
func enqueueRepair(ctx context.Context, deps Deps, metrics *engineMetrics, m chat.Message) (string, error) {
	if deps.Queue == nil {
		return "", nil
	}
	payload, err := json.Marshal(RepairCopyPayload{OwnerID: m.ReceiverID, PartnerID: m.SenderID, Message: m})
	if err != nil {
		return "", err
	}
	id, err := deps.Queue.Enqueue(ctx, qport.Task{Type: RepairCopyTaskType, Payload: payload}, qport.EnqueueOption{
		Queue:     "chat",
		MaxRetry:  20,
		ProcessIn: time.Second,
		UniqueTTL: time.Hour,
	})
	if err != nil {
		deps.Log.WithField("message_id", m.ID).WithError(err).Error("enqueue repair task failed")
		return "", err
	}
	add(ctx, metrics.repairEnqueued, 1)
	return id, nil
}
