package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"

	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/filestore"
	"printdesk/backend/internal/queue"
	"printdesk/backend/internal/service"
	"printdesk/backend/internal/store/memory"
)

func TestHandleEndOfDayArchivesPaidWork(t *testing.T) {
	repo := memory.New()
	files := filestore.NewMemory()
	svc := service.New(repo, files, nil)
	ctx := service.SystemContext(context.Background())

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	job, err := svc.UploadJob(ctx, domain.UploadJobRequest{
		GroupID:      order.Order.ID,
		FileName:     "doc.txt",
		ContentType:  "text/plain",
		Content:      []byte("x"),
		PageEstimate: 1,
	})
	if err != nil {
		t.Fatalf("UploadJob: %v", err)
	}
	if _, err := svc.ConfigureJob(ctx, job.Job.ID, domain.PrintRecipe{
		Pages: "all", ColorMode: domain.ColorModeBlackAndWhite, Sides: domain.SidesSingle, Copies: 1,
	}); err != nil {
		t.Fatalf("ConfigureJob: %v", err)
	}
	if _, err := svc.PayOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}

	payload, _ := json.Marshal(queue.EODPayload{})
	task := asynq.NewTask(queue.EndOfDayTask, payload)

	processor := NewProcessor(svc)
	if err := processor.handleEndOfDay(context.Background(), task); err != nil {
		t.Fatalf("handleEndOfDay: %v", err)
	}

	if _, err := svc.GetDailySummary(ctx, ""); err != nil {
		t.Fatalf("summary should exist after run: %v", err)
	}
	listed, err := svc.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(listed.Orders) != 0 {
		t.Fatalf("paid orders should be purged, %d remain", len(listed.Orders))
	}
}

func TestHandleEndOfDayRejectsBadPayload(t *testing.T) {
	svc := service.New(memory.New(), filestore.NewMemory(), nil)
	processor := NewProcessor(svc)

	task := asynq.NewTask(queue.EndOfDayTask, []byte("{not json"))
	if err := processor.handleEndOfDay(context.Background(), task); err == nil {
		t.Fatalf("malformed payload should fail")
	}
}
