package usecase

import (
	connections "matchchat/internal/repository/port"
)

// Engine bundles the delivery engine use cases over one set of Deps, so they
// share the store, fanout and per-user locks.
type Engine struct {
	Send      *SendMessageUseCase
	Delivered *MarkDeliveredUseCase
	Read      *MarkReadUseCase
	Replay    *ReplayUseCase
	Join      *JoinConversationUseCase
	History   *GetConversationUseCase
	Repair    *RepairCopyUseCase
	Presence  *PresenceNotifier
}

// NewEngine wires the use cases. dir is usually the same *realtime.Hub as
// deps.Fanout; gate may be nil to admit every pair.
func NewEngine(deps Deps, dir Directory, gate connections.ConnectionRepository) *Engine {
	deps = deps.withDefaults()
	delivered := NewMarkDeliveredUseCase(deps)
	return &Engine{
		Send:      NewSendMessageUseCase(deps, delivered),
		Delivered: delivered,
		Read:      NewMarkReadUseCase(deps),
		Replay:    NewReplayUseCase(deps, delivered),
		Join:      NewJoinConversationUseCase(gate),
		History:   NewGetConversationUseCase(deps),
		Repair:    NewRepairCopyUseCase(deps),
		Presence:  NewPresenceNotifier(dir, deps),
	}
}
