package store

import (
	"context"
	"errors"
	"time"

	"printdesk/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order")
	ErrAlreadyPaid  = errors.New("order already paid")
	// ErrStaleStatus means a compare-and-swap status update found the job in
	// a different state than the caller expected. Nothing was changed.
	ErrStaleStatus = errors.New("job status changed concurrently")
)

// Repository is the persistence collaborator for the order workflow. Both
// the in-memory and postgres implementations guarantee per-row atomicity
// for individual updates; nothing here requires cross-row transactions.
type Repository interface {
	CreateJobGroup(ctx context.Context, group domain.JobGroup) (*domain.JobGroup, error)
	GetJobGroup(ctx context.Context, id string) (*domain.JobGroup, error)
	// ListJobGroups returns groups with their jobs in ascending creation
	// order (FIFO service order). When paidOnly is set, unpaid groups are
	// skipped. A zero from/to pair means no date filter.
	ListJobGroups(ctx context.Context, from time.Time, to time.Time, paidOnly bool) ([]domain.JobGroup, error)
	MarkGroupPaid(ctx context.Context, id string, totalPriceCents int64, paidAt time.Time) (*domain.JobGroup, error)
	DeleteJobGroup(ctx context.Context, id string) error

	InsertJob(ctx context.Context, job domain.Job) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	UpdateJobRecipe(ctx context.Context, id string, recipe domain.PrintRecipe, priceCents int64) (*domain.Job, error)
	// UpdateJobStatus applies a compare-and-swap transition: the update only
	// lands if the row still holds expected, otherwise ErrStaleStatus.
	UpdateJobStatus(ctx context.Context, id string, expected domain.JobStatus, next domain.JobStatus) (*domain.Job, error)
	DeleteJob(ctx context.Context, id string) error

	GetDailySummary(ctx context.Context, date string) (*domain.DailySummary, error)
	// UpsertDailySummary adds the delta into the row for delta.Date,
	// inserting it when absent.
	UpsertDailySummary(ctx context.Context, delta domain.DailySummary) (*domain.DailySummary, error)

	GetSystemStatus(ctx context.Context) (*domain.SystemStatus, error)
	SetSystemStatus(ctx context.Context, open bool, at time.Time) (*domain.SystemStatus, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
