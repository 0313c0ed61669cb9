package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/filestore"
	"printdesk/backend/internal/store"
	"printdesk/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *filestore.Memory) {
	t.Helper()
	repo := memory.New()
	files := filestore.NewMemory()
	return New(repo, files, nil), repo, files
}

func keeperContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "keeper", Role: domain.RoleShopkeeper})
}

func uploadDoc(t *testing.T, svc *Service, groupID string, name string, pages int) domain.Job {
	t.Helper()
	resp, err := svc.UploadJob(context.Background(), domain.UploadJobRequest{
		GroupID:      groupID,
		FileName:     name,
		ContentType:  "text/plain",
		Content:      []byte("document body"),
		PageEstimate: pages,
	})
	if err != nil {
		t.Fatalf("UploadJob(%s): %v", name, err)
	}
	return resp.Job
}

func configureAllPages(t *testing.T, svc *Service, jobID string) domain.Job {
	t.Helper()
	resp, err := svc.ConfigureJob(context.Background(), jobID, domain.PrintRecipe{
		Pages:     "all",
		ColorMode: domain.ColorModeBlackAndWhite,
		Sides:     domain.SidesSingle,
		Copies:    1,
	})
	if err != nil {
		t.Fatalf("ConfigureJob(%s): %v", jobID, err)
	}
	return resp.Job
}

func TestOrderFlowUploadConfigurePay(t *testing.T) {
	svc, _, files := newTestService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerLabel: "walk-in"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if len(order.OrderCode) != 6 {
		t.Fatalf("expected 6-char order code, got %q", order.OrderCode)
	}

	job := uploadDoc(t, svc, order.Order.ID, "essay.txt", 10)
	if job.TotalPages != 10 {
		t.Fatalf("expected 10 pages from estimate, got %d", job.TotalPages)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("new job should start queued, got %s", job.Status)
	}
	if files.Len() != 1 {
		t.Fatalf("expected 1 stored file, got %d", files.Len())
	}

	configured, err := svc.ConfigureJob(ctx, job.ID, domain.PrintRecipe{
		Pages:     "1-3,5",
		ColorMode: domain.ColorModeBlackAndWhite,
		Sides:     domain.SidesSingle,
		Copies:    2,
	})
	if err != nil {
		t.Fatalf("ConfigureJob: %v", err)
	}
	// 4 pages x 2 copies x 200 + 100 platform fee.
	if configured.Job.PriceCents != 1700 {
		t.Fatalf("expected price 1700, got %d", configured.Job.PriceCents)
	}

	paid, err := svc.PayOrder(ctx, order.Order.ID)
	if err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	if paid.TotalPriceCents != 1700 {
		t.Fatalf("expected order total 1700, got %d", paid.TotalPriceCents)
	}
	if paid.Order.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("order should be paid, got %s", paid.Order.PaymentStatus)
	}
	for _, j := range paid.Order.Jobs {
		if j.PaymentStatus != domain.PaymentPaid {
			t.Fatalf("job %s should be paid after group payment", j.ID)
		}
	}

	if _, err := svc.PayOrder(ctx, order.Order.ID); !errors.Is(err, store.ErrAlreadyPaid) {
		t.Fatalf("second payment should fail with ErrAlreadyPaid, got %v", err)
	}
}

func TestUploadWithoutGroupCreatesOrder(t *testing.T) {
	svc, _, _ := newTestService(t)

	job := uploadDoc(t, svc, "", "notes.txt", 3)
	if job.GroupID == "" {
		t.Fatalf("upload without group should create one")
	}

	order, err := svc.GetOrder(context.Background(), job.GroupID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(order.Order.Jobs) != 1 {
		t.Fatalf("expected 1 job in implicit order, got %d", len(order.Order.Jobs))
	}
}

func TestPayOrderRejectsUnconfiguredJob(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	uploadDoc(t, svc, order.Order.ID, "draft.txt", 2)

	if _, err := svc.PayOrder(ctx, order.Order.ID); err == nil {
		t.Fatalf("payment with unconfigured job should fail")
	}
}

func TestConfigureJobRejectsPaidJob(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 2)
	configureAllPages(t, svc, job.ID)
	if _, err := svc.PayOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}

	_, err := svc.ConfigureJob(ctx, job.ID, domain.PrintRecipe{
		Pages:     "all",
		ColorMode: domain.ColorModeColor,
		Sides:     domain.SidesSingle,
		Copies:    1,
	})
	if !errors.Is(err, store.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestAdvanceJobStatusHappyPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := keeperContext()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 2)
	configureAllPages(t, svc, job.ID)
	if _, err := svc.PayOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}

	advanced, err := svc.AdvanceJobStatus(ctx, job.ID, domain.JobStatusProcessing)
	if err != nil {
		t.Fatalf("advance to processing: %v", err)
	}
	if advanced.Job.Status != domain.JobStatusProcessing {
		t.Fatalf("expected processing, got %s", advanced.Job.Status)
	}

	advanced, err = svc.AdvanceJobStatus(ctx, job.ID, domain.JobStatusPrinted)
	if err != nil {
		t.Fatalf("advance to printed: %v", err)
	}
	if advanced.Job.Status != domain.JobStatusPrinted {
		t.Fatalf("expected printed, got %s", advanced.Job.Status)
	}

	ready, err := svc.ConfirmPickup(ctx, job.ID)
	if err != nil {
		t.Fatalf("ConfirmPickup: %v", err)
	}
	if ready.Job.Status != domain.JobStatusReady {
		t.Fatalf("expected ready, got %s", ready.Job.Status)
	}
}

func TestAdvanceJobStatusRepeatedRequestFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := keeperContext()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 2)
	configureAllPages(t, svc, job.ID)
	if _, err := svc.PayOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}

	if _, err := svc.AdvanceJobStatus(ctx, job.ID, domain.JobStatusProcessing); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	// A duplicate click lands on a job already in processing.
	if _, err := svc.AdvanceJobStatus(ctx, job.ID, domain.JobStatusProcessing); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("duplicate advance should fail with ErrInvalidTransition, got %v", err)
	}

	current, err := svc.GetOrder(ctx, order.Order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got := current.Order.Jobs[0].Status; got != domain.JobStatusProcessing {
		t.Fatalf("status should be unchanged after failed advance, got %s", got)
	}
}

func TestAdvanceJobStatusRejectsUnpaid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := keeperContext()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 2)
	configureAllPages(t, svc, job.ID)

	if _, err := svc.AdvanceJobStatus(ctx, job.ID, domain.JobStatusProcessing); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("unpaid job should not advance, got %v", err)
	}
}

func TestAdvanceJobStatusRequiresShopkeeper(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 2)
	configureAllPages(t, svc, job.ID)
	if _, err := svc.PayOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}

	if _, err := svc.AdvanceJobStatus(ctx, job.ID, domain.JobStatusProcessing); err == nil {
		t.Fatalf("advance without shopkeeper actor should fail")
	}
}

func TestConfirmPickupRequiresPrinted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := keeperContext()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 2)
	configureAllPages(t, svc, job.ID)
	if _, err := svc.PayOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}

	if _, err := svc.ConfirmPickup(ctx, job.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pickup on queued job should fail, got %v", err)
	}
}

func TestDeleteOrderRemovesStoredFiles(t *testing.T) {
	svc, _, files := newTestService(t)
	ctx := keeperContext()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	uploadDoc(t, svc, order.Order.ID, "one.txt", 1)
	uploadDoc(t, svc, order.Order.ID, "two.txt", 1)
	if files.Len() != 2 {
		t.Fatalf("expected 2 stored files, got %d", files.Len())
	}

	if err := svc.DeleteOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if files.Len() != 0 {
		t.Fatalf("expected stored files removed, got %d", files.Len())
	}
	if _, err := svc.GetOrder(ctx, order.Order.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted order should be gone, got %v", err)
	}
}

func TestDeleteJobRemovesStoredFile(t *testing.T) {
	svc, _, files := newTestService(t)
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "one.txt", 1)

	if err := svc.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if files.Len() != 0 {
		t.Fatalf("stored file should be removed with the job")
	}
}

func TestListOrdersFIFO(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, label := range []string{"third", "first", "second"} {
		offset := []time.Duration{2 * time.Minute, 0, time.Minute}[i]
		if _, err := repo.CreateJobGroup(ctx, domain.JobGroup{
			CustomerLabel: label,
			CreatedAt:     base.Add(offset),
		}); err != nil {
			t.Fatalf("seed group %s: %v", label, err)
		}
	}

	listed, err := svc.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	var got []string
	for _, g := range listed.Orders {
		got = append(got, g.CustomerLabel)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected FIFO order %v, got %v", want, got)
		}
	}
}

func payGroupWithJobs(t *testing.T, svc *Service, docs int) domain.PayOrderResponse {
	t.Helper()
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	for i := 0; i < docs; i++ {
		job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 1)
		configureAllPages(t, svc, job.ID)
	}
	paid, err := svc.PayOrder(ctx, order.Order.ID)
	if err != nil {
		t.Fatalf("PayOrder: %v", err)
	}
	return paid
}

func TestRunEndOfDayArchivesPaidGroups(t *testing.T) {
	svc, _, files := newTestService(t)
	ctx := keeperContext()

	// One single-page black and white copy prices at 300 per document.
	payGroupWithJobs(t, svc, 2)
	payGroupWithJobs(t, svc, 1)

	// An unpaid group must survive the run untouched.
	leftover, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{CustomerLabel: "tomorrow"})
	uploadDoc(t, svc, leftover.Order.ID, "pending.txt", 1)

	result, err := svc.RunEndOfDay(ctx, "")
	if err != nil {
		t.Fatalf("RunEndOfDay: %v", err)
	}
	if result.ArchivedGroups != 2 {
		t.Fatalf("expected 2 archived groups, got %d", result.ArchivedGroups)
	}
	if result.DocsCount != 3 {
		t.Fatalf("expected 3 docs, got %d", result.DocsCount)
	}
	if result.IncomeCents != 900 {
		t.Fatalf("expected income 900, got %d", result.IncomeCents)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}

	summary, err := svc.GetDailySummary(ctx, "")
	if err != nil {
		t.Fatalf("GetDailySummary: %v", err)
	}
	if summary.TotalCustomers != 2 || summary.TotalDocs != 3 || summary.TotalIncomeCents != 900 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	listed, err := svc.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(listed.Orders) != 1 || listed.Orders[0].CustomerLabel != "tomorrow" {
		t.Fatalf("only the unpaid group should remain, got %+v", listed.Orders)
	}
	if files.Len() != 1 {
		t.Fatalf("archived files should be deleted, %d remain", files.Len())
	}
}

func TestRunEndOfDayAccumulatesIntoExistingSummary(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := keeperContext()

	today := time.Now().UTC().Format("2006-01-02")
	if _, err := repo.UpsertDailySummary(ctx, domain.DailySummary{
		Date:             today,
		TotalCustomers:   3,
		TotalDocs:        5,
		TotalIncomeCents: 1000,
	}); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	payGroupWithJobs(t, svc, 2) // 600 cents

	if _, err := svc.RunEndOfDay(ctx, ""); err != nil {
		t.Fatalf("RunEndOfDay: %v", err)
	}

	summary, err := svc.GetDailySummary(ctx, today)
	if err != nil {
		t.Fatalf("GetDailySummary: %v", err)
	}
	if summary.TotalCustomers != 4 {
		t.Fatalf("expected 4 customers, got %d", summary.TotalCustomers)
	}
	if summary.TotalDocs != 7 {
		t.Fatalf("expected 7 docs, got %d", summary.TotalDocs)
	}
	if summary.TotalIncomeCents != 1600 {
		t.Fatalf("expected income 1600, got %d", summary.TotalIncomeCents)
	}
}

func TestRunEndOfDayEmptyDayWritesNothing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := keeperContext()

	result, err := svc.RunEndOfDay(ctx, "")
	if err != nil {
		t.Fatalf("RunEndOfDay: %v", err)
	}
	if result.ArchivedGroups != 0 || result.DocsCount != 0 || result.IncomeCents != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if _, err := svc.GetDailySummary(ctx, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("empty day should leave no summary, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 1)
	configureAllPages(t, svc, job.ID)

	stats, err := svc.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	if stats.TotalJobs != 1 || stats.PendingJobs != 1 || stats.TodayOrders != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TotalRevenueCents != 300 {
		t.Fatalf("expected revenue 300, got %d", stats.TotalRevenueCents)
	}
}

func TestShopStatusToggle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := keeperContext()

	status, err := svc.ShopStatus(ctx)
	if err != nil {
		t.Fatalf("ShopStatus: %v", err)
	}
	if !status.Open {
		t.Fatalf("shop should start open")
	}

	closed, err := svc.SetShopOpen(ctx, false)
	if err != nil {
		t.Fatalf("SetShopOpen: %v", err)
	}
	if closed.Open {
		t.Fatalf("shop should be closed after toggle")
	}

	if _, err := svc.SetShopOpen(context.Background(), true); err == nil {
		t.Fatalf("toggle without shopkeeper actor should fail")
	}
}

func TestUploadRejectsPaidGroup(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, domain.OrderCreateRequest{})
	job := uploadDoc(t, svc, order.Order.ID, "doc.txt", 1)
	configureAllPages(t, svc, job.ID)
	if _, err := svc.PayOrder(ctx, order.Order.ID); err != nil {
		t.Fatalf("PayOrder: %v", err)
	}

	_, err := svc.UploadJob(ctx, domain.UploadJobRequest{
		GroupID:      order.Order.ID,
		FileName:     "late.txt",
		ContentType:  "text/plain",
		Content:      []byte("x"),
		PageEstimate: 1,
	})
	if !errors.Is(err, store.ErrAlreadyPaid) {
		t.Fatalf("upload into paid group should fail, got %v", err)
	}
}

func TestUploadRequiresPageEstimateForOpaqueTypes(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UploadJob(context.Background(), domain.UploadJobRequest{
		FileName:    "scan.jpg",
		ContentType: "image/jpeg",
		Content:     []byte{0xff, 0xd8},
	})
	if err == nil {
		t.Fatalf("opaque upload without page estimate should fail")
	}
}
