package domain

import (
	"errors"
	"strings"
	"time"
)

// JobStatus is the print lifecycle of a single uploaded document.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPrinted    JobStatus = "printed"
	// JobStatusReady is terminal and only reachable through the pickup
	// confirmation path, never through the shopkeeper advance flow.
	JobStatusReady JobStatus = "ready"
)

// PaymentStatus applies to both jobs and job groups.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type ColorMode string

const (
	ColorModeBlackAndWhite ColorMode = "bw"
	ColorModeColor         ColorMode = "color"
)

type Sides string

const (
	SidesSingle Sides = "single"
	SidesDouble Sides = "double"
)

// ErrInvalidTransition is returned when a requested job status change does
// not follow the allowed forward sequence. State is left unchanged.
var ErrInvalidTransition = errors.New("invalid status transition")

// AdvanceJobStatus validates a shopkeeper-driven transition. Only the
// forward edges queued->processing and processing->printed are permitted;
// skipping, moving backward, or re-requesting the current status all fail.
func AdvanceJobStatus(current JobStatus, requested JobStatus) (JobStatus, error) {
	switch {
	case current == JobStatusQueued && requested == JobStatusProcessing:
		return JobStatusProcessing, nil
	case current == JobStatusProcessing && requested == JobStatusPrinted:
		return JobStatusPrinted, nil
	default:
		return current, ErrInvalidTransition
	}
}

func IsValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusQueued, JobStatusProcessing, JobStatusPrinted, JobStatusReady:
		return true
	default:
		return false
	}
}

// PrintRecipe is the customer-chosen print configuration for one job.
// Immutable once the owning group is paid.
type PrintRecipe struct {
	// Pages is "all" or a comma-separated page selection such as "1-3,5".
	Pages     string    `json:"pages"`
	ColorMode ColorMode `json:"color_mode"`
	Sides     Sides     `json:"sides"`
	Copies    int       `json:"copies"`
}

// Job is one uploaded document within an order.
type Job struct {
	ID            string        `json:"id"`
	GroupID       string        `json:"group_id"`
	FileName      string        `json:"file_name"`
	FileSize      int64         `json:"file_size"`
	StorageKey    string        `json:"-"`
	TotalPages    int           `json:"total_pages"`
	Recipe        *PrintRecipe  `json:"recipe,omitempty"`
	PriceCents    int64         `json:"price_cents"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Status        JobStatus     `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// JobGroup is one customer order: a set of jobs paid together.
type JobGroup struct {
	ID              string        `json:"id"`
	CustomerLabel   string        `json:"customer_label,omitempty"`
	TotalPriceCents int64         `json:"total_price_cents"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	CreatedAt       time.Time     `json:"created_at"`
	Jobs            []Job         `json:"jobs"`
}

// OrderCode is the human-facing order identifier shown to customers and
// read back by the shopkeeper: the last 6 characters of the id, uppercased.
func (g JobGroup) OrderCode() string {
	id := g.ID
	if len(id) <= 6 {
		return strings.ToUpper(id)
	}
	return strings.ToUpper(id[len(id)-6:])
}

// DailySummary is the per-date aggregate written by the end-of-day run.
// At most one row exists per date; repeat runs accumulate into it.
type DailySummary struct {
	Date             string `json:"date"`
	TotalCustomers   int64  `json:"total_customers"`
	TotalDocs        int64  `json:"total_docs"`
	TotalIncomeCents int64  `json:"total_income_cents"`
}

// SystemStatus is the singleton shop open/closed toggle.
type SystemStatus struct {
	Open      bool      `json:"open"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DashboardStats are the derived totals shown on the shopkeeper dashboard.
type DashboardStats struct {
	TotalJobs         int   `json:"total_jobs"`
	TotalRevenueCents int64 `json:"total_revenue_cents"`
	PendingJobs       int   `json:"pending_jobs"`
	TodayOrders       int   `json:"today_orders"`
}

// EODResult reports one end-of-day run. Failures holds per-group cleanup
// problems; the summary upsert has already completed when they are reported.
type EODResult struct {
	Date           string   `json:"date"`
	ArchivedGroups int      `json:"archived_groups"`
	DocsCount      int64    `json:"docs_count"`
	IncomeCents    int64    `json:"income_cents"`
	Failures       []string `json:"failures,omitempty"`
}

type OrderCreateRequest struct {
	CustomerLabel string `json:"customer_label"`
}

type OrderResponse struct {
	Order     JobGroup `json:"order"`
	OrderCode string   `json:"order_code"`
}

type OrderListResponse struct {
	Orders []JobGroup `json:"orders"`
}

// UploadJobRequest carries one uploaded file into the service layer. The
// transport decodes multipart form data into it; PageEstimate is the
// client-supplied fallback used when the file type cannot be inspected.
type UploadJobRequest struct {
	GroupID      string
	FileName     string
	ContentType  string
	Content      []byte
	PageEstimate int
}

type ConfigureJobRequest struct {
	Recipe PrintRecipe `json:"recipe"`
}

type AdvanceStatusRequest struct {
	Status JobStatus `json:"status"`
}

type JobResponse struct {
	Job Job `json:"job"`
}

type PayOrderResponse struct {
	Order           JobGroup `json:"order"`
	OrderCode       string   `json:"order_code"`
	TotalPriceCents int64    `json:"total_price_cents"`
}

type FileURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

type SystemStatusUpdateRequest struct {
	Open bool `json:"open"`
}

type EODRunRequest struct {
	Date string `json:"date,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for shopkeeper credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleShopkeeper = "shopkeeper"
	RoleAdmin      = "admin"
)
