package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/bannerforge/api/internal/model"
	"github.com/bannerforge/api/internal/service"
)

// GenerateWorker processes queued bulk-generation jobs.
type GenerateWorker struct {
	generateService *service.GenerateService
}

// NewGenerateWorker creates a new generate worker
func NewGenerateWorker(generateService *service.GenerateService) *GenerateWorker {
	return &GenerateWorker{generateService: generateService}
}

// ProcessTask handles one queued generation batch. Row failures are folded
// into the job record by the orchestrator; only payload corruption or a
// vanished job/template surfaces as a task error.
func (w *GenerateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.GenerateJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log.Printf("Starting generation job %s (%d rows)", payload.JobID, len(payload.Data))
	if err := w.generateService.ProcessJob(ctx, &payload); err != nil {
		return fmt.Errorf("generation job %s: %w", payload.JobID, err)
	}
	log.Printf("Generation job %s finished", payload.JobID)
	return nil
}
