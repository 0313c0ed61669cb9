package dashboard

import (
	"testing"
	"time"

	"printdesk/backend/internal/domain"
)

func TestComputeAggregatesGroups(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.Local)
	yesterday := now.Add(-24 * time.Hour)

	groups := []domain.JobGroup{
		{
			ID:        "group-a",
			CreatedAt: now.Add(-2 * time.Hour),
			Jobs: []domain.Job{
				{PriceCents: 500, Status: domain.JobStatusQueued},
				{PriceCents: 300, Status: domain.JobStatusProcessing},
			},
		},
		{
			ID:        "group-b",
			CreatedAt: yesterday,
			Jobs: []domain.Job{
				{PriceCents: 900, Status: domain.JobStatusQueued},
			},
		},
	}

	stats := Compute(groups, now)
	if stats.TotalJobs != 3 {
		t.Fatalf("expected 3 jobs, got %d", stats.TotalJobs)
	}
	if stats.TotalRevenueCents != 1700 {
		t.Fatalf("expected revenue 1700, got %d", stats.TotalRevenueCents)
	}
	if stats.PendingJobs != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", stats.PendingJobs)
	}
	if stats.TodayOrders != 1 {
		t.Fatalf("expected 1 order today, got %d", stats.TodayOrders)
	}
}

func TestComputeEmpty(t *testing.T) {
	stats := Compute(nil, time.Now())
	if stats != (domain.DashboardStats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}
