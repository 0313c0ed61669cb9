package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"printdesk/backend/internal/dashboard"
	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/filestore"
	"printdesk/backend/internal/pagecount"
	"printdesk/backend/internal/pricing"
	"printdesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// SystemContext tags a background context (worker, CLI) with the system
// actor so shopkeeper-gated operations and audit logging work unattended.
func SystemContext(ctx context.Context) context.Context {
	return WithActor(ctx, domain.Actor{Username: "system", Role: domain.RoleAdmin})
}

const dateLayout = "2006-01-02"

type Service struct {
	repo  store.Repository
	files filestore.FileStore
	dash  *dashboard.Engine
}

func New(repo store.Repository, files filestore.FileStore, dash *dashboard.Engine) *Service {
	if dash == nil {
		dash = dashboard.NewEngine(nil, 0)
	}
	return &Service{repo: repo, files: files, dash: dash}
}

// CreateOrder opens an empty job group for a customer; jobs accumulate into
// it until payment.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderResponse, error) {
	group := domain.JobGroup{
		ID:            uuid.NewString(),
		CustomerLabel: strings.TrimSpace(req.CustomerLabel),
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     time.Now().UTC(),
	}

	created, err := s.repo.CreateJobGroup(ctx, group)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.logAudit(ctx, "order_create", "job_group", created.ID, fmt.Sprintf("label=%s", created.CustomerLabel))
	return domain.OrderResponse{Order: *created, OrderCode: created.OrderCode()}, nil
}

// UploadJob stores the document and inserts the job row. When the row
// insert fails the stored object is removed again so no orphan survives.
func (s *Service) UploadJob(ctx context.Context, req domain.UploadJobRequest) (domain.JobResponse, error) {
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" || len(req.Content) == 0 {
		return domain.JobResponse{}, &pricing.ValidationError{Field: "file", Message: "file name and content are required"}
	}

	groupID := strings.TrimSpace(req.GroupID)
	if groupID == "" {
		resp, err := s.CreateOrder(ctx, domain.OrderCreateRequest{})
		if err != nil {
			return domain.JobResponse{}, err
		}
		groupID = resp.Order.ID
	} else {
		group, err := s.repo.GetJobGroup(ctx, groupID)
		if err != nil {
			return domain.JobResponse{}, err
		}
		if group.PaymentStatus == domain.PaymentPaid {
			return domain.JobResponse{}, store.ErrAlreadyPaid
		}
	}

	totalPages, err := s.resolvePageCount(req)
	if err != nil {
		return domain.JobResponse{}, err
	}

	jobID := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s%s", groupID, jobID, strings.ToLower(path.Ext(req.FileName)))
	if err := s.files.Store(ctx, storageKey, bytes.NewReader(req.Content), int64(len(req.Content)), req.ContentType); err != nil {
		return domain.JobResponse{}, fmt.Errorf("store upload: %w", err)
	}

	job := domain.Job{
		ID:         jobID,
		GroupID:    groupID,
		FileName:   req.FileName,
		FileSize:   int64(len(req.Content)),
		StorageKey: storageKey,
		TotalPages: totalPages,
		Status:     domain.JobStatusQueued,
		CreatedAt:  time.Now().UTC(),
	}

	created, err := s.repo.InsertJob(ctx, job)
	if err != nil {
		// Roll back the stored object so a failed insert leaves no residue.
		if delErr := s.files.Delete(ctx, storageKey); delErr != nil {
			log.Printf("[service] WARN: rollback delete of %s failed: %v", storageKey, delErr)
		}
		return domain.JobResponse{}, err
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "job_upload", "job", created.ID, fmt.Sprintf("group=%s,file=%s,pages=%d", groupID, created.FileName, created.TotalPages))
	return domain.JobResponse{Job: *created}, nil
}

func (s *Service) resolvePageCount(req domain.UploadJobRequest) (int, error) {
	if pagecount.IsInspectable(req.ContentType) {
		pages, err := pagecount.Count(req.Content, req.ContentType)
		if err != nil {
			return 0, &pricing.ValidationError{Field: "file", Message: "could not read page count from document"}
		}
		return pages, nil
	}
	if req.PageEstimate < 1 {
		return 0, &pricing.ValidationError{Field: "page_estimate", Message: "page estimate required for this file type"}
	}
	return req.PageEstimate, nil
}

// ValidateRecipe checks a recipe for a specific job without saving it, so
// the order form can flag problems inline.
func (s *Service) ValidateRecipe(ctx context.Context, jobID string, recipe domain.PrintRecipe) []error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return []error{err}
	}
	return pricing.ValidateRecipe(recipe, job.TotalPages)
}

// ConfigureJob attaches the print recipe and prices the job. Recipes are
// immutable once the group is paid.
func (s *Service) ConfigureJob(ctx context.Context, jobID string, recipe domain.PrintRecipe) (domain.JobResponse, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.JobResponse{}, err
	}
	if job.PaymentStatus == domain.PaymentPaid {
		return domain.JobResponse{}, store.ErrAlreadyPaid
	}

	recipe.Pages = strings.TrimSpace(recipe.Pages)
	priceCents, err := pricing.ComputePriceCents(recipe, job.TotalPages)
	if err != nil {
		return domain.JobResponse{}, err
	}

	updated, err := s.repo.UpdateJobRecipe(ctx, jobID, recipe, priceCents)
	if err != nil {
		return domain.JobResponse{}, err
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "job_configure", "job", jobID, fmt.Sprintf("pages=%s,copies=%d,price=%d", recipe.Pages, recipe.Copies, priceCents))
	return domain.JobResponse{Job: *updated}, nil
}

// PayOrder confirms payment for a whole group. Every job must be
// configured; the group total is fixed here and never recomputed, even if
// jobs are edited afterwards.
func (s *Service) PayOrder(ctx context.Context, groupID string) (domain.PayOrderResponse, error) {
	group, err := s.repo.GetJobGroup(ctx, groupID)
	if err != nil {
		return domain.PayOrderResponse{}, err
	}
	if group.PaymentStatus == domain.PaymentPaid {
		return domain.PayOrderResponse{}, store.ErrAlreadyPaid
	}
	if len(group.Jobs) == 0 {
		return domain.PayOrderResponse{}, &pricing.ValidationError{Field: "order", Message: "order has no documents"}
	}

	total := int64(0)
	for _, job := range group.Jobs {
		if job.Recipe == nil {
			return domain.PayOrderResponse{}, &pricing.ValidationError{
				Field:   "order",
				Message: fmt.Sprintf("document %s has no print configuration", job.FileName),
			}
		}
		total += job.PriceCents
	}

	paid, err := s.repo.MarkGroupPaid(ctx, groupID, total, time.Now().UTC())
	if err != nil {
		return domain.PayOrderResponse{}, err
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "order_pay", "job_group", groupID, fmt.Sprintf("total=%d,jobs=%d", total, len(paid.Jobs)))
	return domain.PayOrderResponse{Order: *paid, OrderCode: paid.OrderCode(), TotalPriceCents: total}, nil
}

// AdvanceJobStatus applies a shopkeeper transition with compare-and-swap
// semantics: a stale dashboard read fails with ErrStaleStatus instead of
// overwriting a newer state.
func (s *Service) AdvanceJobStatus(ctx context.Context, jobID string, requested domain.JobStatus) (domain.JobResponse, error) {
	if err := s.requireShopkeeper(ctx); err != nil {
		return domain.JobResponse{}, err
	}
	if !domain.IsValidJobStatus(requested) {
		return domain.JobResponse{}, domain.ErrInvalidTransition
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.JobResponse{}, err
	}
	if job.PaymentStatus != domain.PaymentPaid {
		return domain.JobResponse{}, fmt.Errorf("%w: unpaid job cannot advance", domain.ErrInvalidTransition)
	}

	next, err := domain.AdvanceJobStatus(job.Status, requested)
	if err != nil {
		return domain.JobResponse{}, err
	}

	updated, err := s.repo.UpdateJobStatus(ctx, jobID, job.Status, next)
	if err != nil {
		return domain.JobResponse{}, err
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "job_advance", "job", jobID, fmt.Sprintf("%s->%s", job.Status, next))
	return domain.JobResponse{Job: *updated}, nil
}

// ConfirmPickup moves a printed job to ready. This is the external pickup
// confirmation path, deliberately separate from the printing flow.
func (s *Service) ConfirmPickup(ctx context.Context, jobID string) (domain.JobResponse, error) {
	if err := s.requireShopkeeper(ctx); err != nil {
		return domain.JobResponse{}, err
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.JobResponse{}, err
	}
	if job.Status != domain.JobStatusPrinted {
		return domain.JobResponse{}, domain.ErrInvalidTransition
	}

	updated, err := s.repo.UpdateJobStatus(ctx, jobID, domain.JobStatusPrinted, domain.JobStatusReady)
	if err != nil {
		return domain.JobResponse{}, err
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "job_pickup", "job", jobID, "printed->ready")
	return domain.JobResponse{Job: *updated}, nil
}

// DeleteJob removes one document and its stored file. File deletion is
// best effort; the row always goes.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	// Customers may remove documents freely before payment; afterwards only
	// the counter staff can.
	if job.PaymentStatus == domain.PaymentPaid {
		if err := s.requireShopkeeper(ctx); err != nil {
			return err
		}
	}

	if err := s.files.Delete(ctx, job.StorageKey); err != nil {
		log.Printf("[service] WARN: delete stored file %s: %v", job.StorageKey, err)
	}
	if err := s.repo.DeleteJob(ctx, jobID); err != nil {
		return err
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "job_delete", "job", jobID, fmt.Sprintf("file=%s", job.FileName))
	return nil
}

// DeleteOrder removes a whole group, its jobs, and their stored files.
// Deleting a group never touches the daily summary: summaries are written
// only by the end-of-day run, and a group deleted before that run was
// never counted.
func (s *Service) DeleteOrder(ctx context.Context, groupID string) error {
	if err := s.requireShopkeeper(ctx); err != nil {
		return err
	}

	group, err := s.repo.GetJobGroup(ctx, groupID)
	if err != nil {
		return err
	}

	for _, job := range group.Jobs {
		if err := s.files.Delete(ctx, job.StorageKey); err != nil {
			log.Printf("[service] WARN: delete stored file %s: %v", job.StorageKey, err)
		}
	}
	if err := s.repo.DeleteJobGroup(ctx, groupID); err != nil {
		return err
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "order_delete", "job_group", groupID, fmt.Sprintf("jobs=%d", len(group.Jobs)))
	return nil
}

// ListOrders returns the queue in FIFO order (earliest first).
func (s *Service) ListOrders(ctx context.Context) (domain.OrderListResponse, error) {
	groups, err := s.repo.ListJobGroups(ctx, time.Time{}, time.Time{}, false)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return domain.OrderListResponse{Orders: groups}, nil
}

func (s *Service) GetOrder(ctx context.Context, groupID string) (domain.OrderResponse, error) {
	group, err := s.repo.GetJobGroup(ctx, groupID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *group, OrderCode: group.OrderCode()}, nil
}

// FileURL hands out a temporary GET URL for a job's stored document.
func (s *Service) FileURL(ctx context.Context, jobID string, ttl time.Duration) (domain.FileURLResponse, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.FileURLResponse{}, err
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	url, err := s.files.PresignURL(ctx, job.StorageKey, ttl)
	if err != nil {
		return domain.FileURLResponse{}, err
	}
	return domain.FileURLResponse{URL: url, ExpiresIn: int(ttl.Seconds())}, nil
}

// DashboardStats aggregates the live queue through the dashboard engine.
func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	groups, err := s.repo.ListJobGroups(ctx, time.Time{}, time.Time{}, false)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return s.dash.Stats(ctx, groups, time.Now()), nil
}

// RunEndOfDay folds the day's paid job groups into the daily summary and
// purges them. The summary upsert always completes before cleanup begins;
// per-group cleanup failures are collected and reported, never fatal.
func (s *Service) RunEndOfDay(ctx context.Context, date string) (domain.EODResult, error) {
	if err := s.requireShopkeeper(ctx); err != nil {
		return domain.EODResult{}, err
	}

	day, err := parseDay(date)
	if err != nil {
		return domain.EODResult{}, err
	}
	from := day
	to := from.Add(24 * time.Hour)

	groups, err := s.repo.ListJobGroups(ctx, from, to, true)
	if err != nil {
		return domain.EODResult{}, err
	}

	result := domain.EODResult{Date: from.Format(dateLayout)}
	if len(groups) == 0 {
		return result, nil
	}

	docsCount := int64(0)
	incomeCents := int64(0)
	for _, group := range groups {
		docsCount += int64(len(group.Jobs))
		incomeCents += group.TotalPriceCents
	}

	if _, err := s.repo.UpsertDailySummary(ctx, domain.DailySummary{
		Date:             result.Date,
		TotalCustomers:   int64(len(groups)),
		TotalDocs:        docsCount,
		TotalIncomeCents: incomeCents,
	}); err != nil {
		return domain.EODResult{}, fmt.Errorf("upsert daily summary: %w", err)
	}
	result.DocsCount = docsCount
	result.IncomeCents = incomeCents

	for _, group := range groups {
		failed := false
		for _, job := range group.Jobs {
			if err := s.files.Delete(ctx, job.StorageKey); err != nil {
				log.Printf("[eod] WARN: delete stored file %s: %v", job.StorageKey, err)
				result.Failures = append(result.Failures, fmt.Sprintf("order %s: delete file %s: %v", group.OrderCode(), job.FileName, err))
			}
		}
		if err := s.repo.DeleteJobGroup(ctx, group.ID); err != nil {
			log.Printf("[eod] WARN: delete job group %s: %v", group.ID, err)
			result.Failures = append(result.Failures, fmt.Sprintf("order %s: delete group: %v", group.OrderCode(), err))
			failed = true
		}
		if !failed {
			result.ArchivedGroups++
		}
	}

	s.dash.Invalidate(ctx)
	s.logAudit(ctx, "eod_run", "daily_summary", result.Date,
		fmt.Sprintf("groups=%d,docs=%d,income=%d,failures=%d", len(groups), docsCount, incomeCents, len(result.Failures)))
	return result, nil
}

func (s *Service) GetDailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	day, err := parseDay(date)
	if err != nil {
		return domain.DailySummary{}, err
	}
	summary, err := s.repo.GetDailySummary(ctx, day.Format(dateLayout))
	if err != nil {
		return domain.DailySummary{}, err
	}
	return *summary, nil
}

func (s *Service) ShopStatus(ctx context.Context) (domain.SystemStatus, error) {
	status, err := s.repo.GetSystemStatus(ctx)
	if err != nil {
		return domain.SystemStatus{}, err
	}
	return *status, nil
}

func (s *Service) SetShopOpen(ctx context.Context, open bool) (domain.SystemStatus, error) {
	if err := s.requireShopkeeper(ctx); err != nil {
		return domain.SystemStatus{}, err
	}

	status, err := s.repo.SetSystemStatus(ctx, open, time.Now().UTC())
	if err != nil {
		return domain.SystemStatus{}, err
	}

	s.logAudit(ctx, "shop_toggle", "system_status", "singleton", fmt.Sprintf("open=%t", open))
	return *status, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		day, err := parseDay(date)
		if err != nil {
			return nil, err
		}
		from = day
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) requireShopkeeper(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("shopkeeper role required")
	}
	switch actor.Role {
	case domain.RoleShopkeeper, domain.RoleAdmin:
		return nil
	default:
		return fmt.Errorf("shopkeeper role required")
	}
}

// parseDay resolves an optional yyyy-mm-dd string, defaulting to today in
// UTC, truncated to midnight.
func parseDay(date string) (time.Time, error) {
	trimmed := strings.TrimSpace(date)
	if trimmed == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, &pricing.ValidationError{Field: "date", Message: "expected yyyy-mm-dd"}
	}
	return parsed.UTC(), nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "customer", Role: "customer"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            uuid.NewString(),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
