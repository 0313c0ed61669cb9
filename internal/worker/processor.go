// Package worker runs the nightly close-out off the asynq queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"printdesk/backend/internal/queue"
	"printdesk/backend/internal/service"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	svc *service.Service
}

func NewProcessor(svc *service.Service) *Processor {
	return &Processor{svc: svc}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.EndOfDayTask, p.handleEndOfDay)
	return mux
}

func (p *Processor) handleEndOfDay(ctx context.Context, task *asynq.Task) error {
	var payload queue.EODPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	result, err := p.svc.RunEndOfDay(service.SystemContext(ctx), payload.Date)
	if err != nil {
		log.Printf("[worker] end-of-day failed for %q: %v", payload.Date, err)
		return err
	}

	log.Printf("[worker] end-of-day %s: archived=%d docs=%d income=%d failures=%d",
		result.Date, result.ArchivedGroups, result.DocsCount, result.IncomeCents, len(result.Failures))
	for _, failure := range result.Failures {
		log.Printf("[worker] end-of-day cleanup issue: %s", failure)
	}
	return nil
}
