package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/store"
)

// Runs only against a real database:
//
//	TEST_DATABASE_URL=postgres://... go test ./internal/store/postgres/
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := Open(url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func TestIntegrationJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	group, err := s.CreateJobGroup(ctx, domain.JobGroup{ID: uuid.NewString(), CustomerLabel: "integration"})
	if err != nil {
		t.Fatalf("CreateJobGroup: %v", err)
	}
	t.Cleanup(func() { s.DeleteJobGroup(ctx, group.ID) })

	job, err := s.InsertJob(ctx, domain.Job{
		ID:         uuid.NewString(),
		GroupID:    group.ID,
		FileName:   "doc.pdf",
		StorageKey: group.ID + "/doc.pdf",
		TotalPages: 4,
	})
	if err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	recipe := domain.PrintRecipe{Pages: "all", ColorMode: domain.ColorModeBlackAndWhite, Sides: domain.SidesSingle, Copies: 1}
	configured, err := s.UpdateJobRecipe(ctx, job.ID, recipe, 900)
	if err != nil {
		t.Fatalf("UpdateJobRecipe: %v", err)
	}
	if configured.Recipe == nil || configured.Recipe.Pages != "all" || configured.PriceCents != 900 {
		t.Fatalf("recipe did not round-trip: %+v", configured)
	}

	paid, err := s.MarkGroupPaid(ctx, group.ID, 900, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkGroupPaid: %v", err)
	}
	if paid.Jobs[0].PaymentStatus != domain.PaymentPaid {
		t.Fatalf("job should be paid with its group")
	}

	if _, err := s.UpdateJobStatus(ctx, job.ID, domain.JobStatusQueued, domain.JobStatusProcessing); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	if _, err := s.UpdateJobStatus(ctx, job.ID, domain.JobStatusQueued, domain.JobStatusProcessing); !errors.Is(err, store.ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus on stale transition, got %v", err)
	}
}

func TestIntegrationDailySummaryUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	date := "1999-01-01"
	t.Cleanup(func() { s.db.ExecContext(ctx, `DELETE FROM daily_summaries WHERE date = $1`, date) })

	if _, err := s.UpsertDailySummary(ctx, domain.DailySummary{Date: date, TotalCustomers: 2, TotalDocs: 3, TotalIncomeCents: 800}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	summary, err := s.UpsertDailySummary(ctx, domain.DailySummary{Date: date, TotalCustomers: 1, TotalDocs: 2, TotalIncomeCents: 400})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if summary.TotalCustomers != 3 || summary.TotalDocs != 5 || summary.TotalIncomeCents != 1200 {
		t.Fatalf("expected accumulated summary, got %+v", summary)
	}
}
