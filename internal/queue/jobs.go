// Package queue defines the background task types shared by the API
// server, the CLI and the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// EndOfDayTask archives the day's paid orders into the daily summary.
	EndOfDayTask = "eod:run"
)

// EODPayload carries the close-out date. Empty means today.
type EODPayload struct {
	Date string `json:"date"`
}

// EnqueueEndOfDay schedules a close-out run.
func EnqueueEndOfDay(ctx context.Context, client *asynq.Client, payload EODPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(EndOfDayTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue end-of-day task: %w", err)
	}
	return nil
}
