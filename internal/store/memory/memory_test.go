package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/store"
)

func seedJob(t *testing.T, s *Store) domain.Job {
	t.Helper()
	ctx := context.Background()
	group, err := s.CreateJobGroup(ctx, domain.JobGroup{})
	if err != nil {
		t.Fatalf("CreateJobGroup: %v", err)
	}
	job, err := s.InsertJob(ctx, domain.Job{GroupID: group.ID, FileName: "doc.pdf", TotalPages: 4})
	if err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	return *job
}

func TestUpdateJobStatusCompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()
	job := seedJob(t, s)

	updated, err := s.UpdateJobStatus(ctx, job.ID, domain.JobStatusQueued, domain.JobStatusProcessing)
	if err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	if updated.Status != domain.JobStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}

	// The stale writer still believes the job is queued.
	if _, err := s.UpdateJobStatus(ctx, job.ID, domain.JobStatusQueued, domain.JobStatusProcessing); !errors.Is(err, store.ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}

	current, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if current.Status != domain.JobStatusProcessing {
		t.Fatalf("stale write must not change status, got %s", current.Status)
	}
}

func TestInsertJobRequiresExistingGroup(t *testing.T) {
	s := New()
	if _, err := s.InsertJob(context.Background(), domain.Job{GroupID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkGroupPaidCascadesToJobs(t *testing.T) {
	s := New()
	ctx := context.Background()
	job := seedJob(t, s)

	paid, err := s.MarkGroupPaid(ctx, job.GroupID, 900, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkGroupPaid: %v", err)
	}
	if paid.TotalPriceCents != 900 || paid.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("unexpected group after payment: %+v", paid)
	}
	if len(paid.Jobs) != 1 || paid.Jobs[0].PaymentStatus != domain.PaymentPaid {
		t.Fatalf("jobs should be marked paid with the group")
	}

	if _, err := s.MarkGroupPaid(ctx, job.GroupID, 900, time.Now().UTC()); !errors.Is(err, store.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestDeleteJobGroupCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	job := seedJob(t, s)

	if err := s.DeleteJobGroup(ctx, job.GroupID); err != nil {
		t.Fatalf("DeleteJobGroup: %v", err)
	}
	if _, err := s.GetJob(ctx, job.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("job should be gone with its group, got %v", err)
	}
}

func TestListJobGroupsFiltersWindowAndPayment(t *testing.T) {
	s := New()
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	inWindow, _ := s.CreateJobGroup(ctx, domain.JobGroup{CreatedAt: day.Add(10 * time.Hour)})
	s.CreateJobGroup(ctx, domain.JobGroup{CreatedAt: day.Add(-time.Hour)})
	s.CreateJobGroup(ctx, domain.JobGroup{CreatedAt: day.Add(25 * time.Hour)})

	if _, err := s.MarkGroupPaid(ctx, inWindow.ID, 500, day.Add(11*time.Hour)); err != nil {
		t.Fatalf("MarkGroupPaid: %v", err)
	}

	groups, err := s.ListJobGroups(ctx, day, day.Add(24*time.Hour), true)
	if err != nil {
		t.Fatalf("ListJobGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != inWindow.ID {
		t.Fatalf("expected only the paid in-window group, got %d groups", len(groups))
	}

	all, err := s.ListJobGroups(ctx, time.Time{}, time.Time{}, false)
	if err != nil {
		t.Fatalf("ListJobGroups all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 groups unfiltered, got %d", len(all))
	}
}

func TestUpsertDailySummaryAccumulates(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.UpsertDailySummary(ctx, domain.DailySummary{
		Date: "2026-03-14", TotalCustomers: 2, TotalDocs: 3, TotalIncomeCents: 800,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.TotalIncomeCents != 800 {
		t.Fatalf("expected 800, got %d", first.TotalIncomeCents)
	}

	second, err := s.UpsertDailySummary(ctx, domain.DailySummary{
		Date: "2026-03-14", TotalCustomers: 1, TotalDocs: 2, TotalIncomeCents: 400,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.TotalCustomers != 3 || second.TotalDocs != 5 || second.TotalIncomeCents != 1200 {
		t.Fatalf("deltas should accumulate, got %+v", second)
	}
}

func TestUpdateJobRecipeRejectsPaid(t *testing.T) {
	s := New()
	ctx := context.Background()
	job := seedJob(t, s)
	if _, err := s.MarkGroupPaid(ctx, job.GroupID, 300, time.Now().UTC()); err != nil {
		t.Fatalf("MarkGroupPaid: %v", err)
	}

	recipe := domain.PrintRecipe{Pages: "all", ColorMode: domain.ColorModeBlackAndWhite, Sides: domain.SidesSingle, Copies: 1}
	if _, err := s.UpdateJobRecipe(ctx, job.ID, recipe, 300); !errors.Is(err, store.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestSystemStatusDefaultsOpen(t *testing.T) {
	s := New()
	ctx := context.Background()

	status, err := s.GetSystemStatus(ctx)
	if err != nil {
		t.Fatalf("GetSystemStatus: %v", err)
	}
	if !status.Open {
		t.Fatalf("shop should default to open")
	}

	if _, err := s.SetSystemStatus(ctx, false, time.Now().UTC()); err != nil {
		t.Fatalf("SetSystemStatus: %v", err)
	}
	status, _ = s.GetSystemStatus(ctx)
	if status.Open {
		t.Fatalf("shop should now be closed")
	}
}

func TestSeededUsers(t *testing.T) {
	s := NewSeeded()
	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 seeded users, got %d", len(users))
	}
	roles := map[string]bool{}
	for _, u := range users {
		roles[u.Role] = true
		if u.Password == "" {
			t.Fatalf("seeded user %s has empty password hash", u.Username)
		}
	}
	if !roles[domain.RoleAdmin] || !roles[domain.RoleShopkeeper] {
		t.Fatalf("expected admin and shopkeeper roles, got %v", roles)
	}
}
