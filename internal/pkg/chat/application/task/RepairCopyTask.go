package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	qport "matchchat/internal/infrastructure/queue/port"
	"matchchat/internal/pkg/chat/application/usecase"
)

// RegisterRepairCopyTask binds the repair handler to srv. The use case must
// share its Deps (store and user locks) with the live engine.
func RegisterRepairCopyTask(srv qport.Server, uc *usecase.RepairCopyUseCase) {
	srv.Register(usecase.RepairCopyTaskType, HandleRepairCopy(uc))
}

// HandleRepairCopy decodes a repair payload and re-appends the copy.
func HandleRepairCopy(uc *usecase.RepairCopyUseCase) qport.Handler {
	return func(ctx context.Context, t qport.Task) error {
		var p usecase.RepairCopyPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: retrying cannot fix it
			return fmt.Errorf("decode repair payload: %v: %w", err, asynq.SkipRetry)
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return uc.Execute(ctx, p)
	}
}
