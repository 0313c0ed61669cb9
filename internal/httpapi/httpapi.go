package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/pricing"
	"printdesk/backend/internal/service"
	"printdesk/backend/internal/store"
)

type API struct {
	service        *service.Service
	auth           *AuthManager
	allowedOrigin  string
	maxUploadBytes int64
	presignTTL     time.Duration
	loginLimiter   *attemptLimiter
	uploadLimiter  *attemptLimiter
	csrfSecret     []byte
}

type Options struct {
	AllowedOrigin  string
	MaxUploadBytes int64
	PresignTTL     time.Duration
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 5 * time.Minute
	}
	return &API{
		service:        svc,
		auth:           auth,
		allowedOrigin:  opts.AllowedOrigin,
		maxUploadBytes: opts.MaxUploadBytes,
		presignTTL:     opts.PresignTTL,
		loginLimiter:   newAttemptLimiter(5, time.Minute),
		uploadLimiter:  newAttemptLimiter(30, time.Minute),
		csrfSecret:     csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts tokens from the current or previous hour
// bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	// Customers place and pay orders without an account; the counter staff
	// endpoints behind the same prefixes check the bearer token inline.
	mux.HandleFunc("/api/v1/shop/status", a.handleShopStatus)
	mux.HandleFunc("/api/v1/orders", a.handleOrders)
	mux.HandleFunc("/api/v1/orders/", a.handleOrderActions)
	mux.HandleFunc("/api/v1/jobs/", a.handleJobActions)

	mux.HandleFunc("/api/v1/dashboard/stats", a.requireAuth(a.handleDashboardStats, domain.RoleShopkeeper, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/eod/run", a.requireAuth(a.handleEODRun, domain.RoleShopkeeper, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/reports/daily", a.requireAuth(a.handleDailySummary, domain.RoleShopkeeper, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.authorize(r, roles...)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errForbiddenRole) {
				status = http.StatusForbidden
			}
			writeError(w, status, err)
			return
		}
		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

var errForbiddenRole = errors.New("forbidden role")

func (a *API) authorize(r *http.Request, roles ...string) (domain.Actor, error) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return domain.Actor{}, errors.New("missing bearer token")
	}

	token := strings.TrimSpace(authorization[len("Bearer "):])
	actor, err := a.auth.ParseToken(token)
	if err != nil {
		return domain.Actor{}, err
	}

	if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
		return domain.Actor{}, errForbiddenRole
	}
	return actor, nil
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour
// bucket. Clients include it in the X-CSRF-Token header on mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// Login is exempt because it is called before any CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleShopStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status, err := a.service.ShopStatus(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	case http.MethodPost:
		actor, err := a.authorize(r, domain.RoleShopkeeper, domain.RoleAdmin)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errForbiddenRole) {
				status = http.StatusForbidden
			}
			writeError(w, status, err)
			return
		}

		var req domain.SystemStatusUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		status, err := a.service.SetShopOpen(service.WithActor(r.Context(), actor), req.Open)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !a.requireShopOpen(w, r) {
			return
		}
		var req domain.OrderCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.CreateOrder(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	case http.MethodGet:
		actor, err := a.authorize(r, domain.RoleShopkeeper, domain.RoleAdmin)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errForbiddenRole) {
				status = http.StatusForbidden
			}
			writeError(w, status, err)
			return
		}
		resp, err := a.service.ListOrders(service.WithActor(r.Context(), actor))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/orders/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("order id required"))
		return
	}

	if strings.HasSuffix(tail, "/upload") {
		a.handleOrderUpload(w, r, strings.Trim(strings.TrimSuffix(tail, "/upload"), "/"))
		return
	}
	if strings.HasSuffix(tail, "/pay") {
		a.handleOrderPay(w, r, strings.Trim(strings.TrimSuffix(tail, "/pay"), "/"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		resp, err := a.service.GetOrder(r.Context(), tail)
		if err != nil {
			writeError(w, statusForServiceError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		actor, err := a.authorize(r, domain.RoleShopkeeper, domain.RoleAdmin)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errForbiddenRole) {
				status = http.StatusForbidden
			}
			writeError(w, status, err)
			return
		}
		if err := a.service.DeleteOrder(service.WithActor(r.Context(), actor), tail); err != nil {
			writeError(w, statusForServiceError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleOrderUpload accepts a multipart form with a "file" part and an
// optional "page_estimate" field for formats the server cannot inspect.
func (a *API) handleOrderUpload(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.requireShopOpen(w, r) {
		return
	}
	if !a.uploadLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many uploads"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid or oversized multipart body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file part required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("could not read uploaded file"))
		return
	}

	pageEstimate := 0
	if raw := strings.TrimSpace(r.FormValue("page_estimate")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			pageEstimate = parsed
		}
	}

	resp, err := a.service.UploadJob(r.Context(), domain.UploadJobRequest{
		GroupID:      orderID,
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Content:      content,
		PageEstimate: pageEstimate,
	})
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleOrderPay(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.PayOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleJobActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/jobs/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	if strings.HasSuffix(tail, "/recipe") {
		a.handleJobRecipe(w, r, strings.Trim(strings.TrimSuffix(tail, "/recipe"), "/"))
		return
	}
	if strings.HasSuffix(tail, "/advance") {
		a.handleJobAdvance(w, r, strings.Trim(strings.TrimSuffix(tail, "/advance"), "/"))
		return
	}
	if strings.HasSuffix(tail, "/pickup") {
		a.handleJobPickup(w, r, strings.Trim(strings.TrimSuffix(tail, "/pickup"), "/"))
		return
	}
	if strings.HasSuffix(tail, "/file-url") {
		a.handleJobFileURL(w, r, strings.Trim(strings.TrimSuffix(tail, "/file-url"), "/"))
		return
	}

	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.DeleteJob(r.Context(), tail); err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleJobRecipe(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ConfigureJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.ConfigureJob(r.Context(), jobID, req.Recipe)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleJobAdvance(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, err := a.authorize(r, domain.RoleShopkeeper, domain.RoleAdmin)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errForbiddenRole) {
			status = http.StatusForbidden
		}
		writeError(w, status, err)
		return
	}

	var req domain.AdvanceStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.AdvanceJobStatus(service.WithActor(r.Context(), actor), jobID, req.Status)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleJobPickup(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, err := a.authorize(r, domain.RoleShopkeeper, domain.RoleAdmin)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errForbiddenRole) {
			status = http.StatusForbidden
		}
		writeError(w, status, err)
		return
	}

	resp, err := a.service.ConfirmPickup(service.WithActor(r.Context(), actor), jobID)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleJobFileURL(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	actor, err := a.authorize(r, domain.RoleShopkeeper, domain.RoleAdmin)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errForbiddenRole) {
			status = http.StatusForbidden
		}
		writeError(w, status, err)
		return
	}

	resp, err := a.service.FileURL(service.WithActor(r.Context(), actor), jobID, a.presignTTL)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	stats, err := a.service.DashboardStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleEODRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.EODRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.RunEndOfDay(r.Context(), req.Date)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	summary, err := a.service.GetDailySummary(r.Context(), date)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}

	if format == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(dailySummaryToPrintableHTML(summary)))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// requireShopOpen rejects new customer work while the shop is closed.
func (a *API) requireShopOpen(w http.ResponseWriter, r *http.Request) bool {
	status, err := a.service.ShopStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return false
	}
	if !status.Open {
		writeError(w, http.StatusServiceUnavailable, errors.New("shop is currently closed"))
		return false
	}
	return true
}

func statusForServiceError(err error) int {
	var validationErr *pricing.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyPaid), errors.Is(err, store.ErrStaleStatus), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &validationErr), errors.Is(err, store.ErrInvalidOrder):
		return http.StatusBadRequest
	case strings.Contains(strings.ToLower(err.Error()), "shopkeeper role required"):
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// dailySummaryHTMLTmpl renders the close-out sheet the owner prints and
// files. All fields are auto-escaped by html/template.
var dailySummaryHTMLTmpl = template.Must(template.New("daily-summary").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Daily Summary {{.Date}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Daily Summary {{.Date}}</h2>
  <table>
    <thead><tr><th>Customers</th><th>Documents</th><th>Income (cents)</th></tr></thead>
    <tbody><tr><td style="text-align:right;">{{.TotalCustomers}}</td><td style="text-align:right;">{{.TotalDocs}}</td><td style="text-align:right;">{{.TotalIncomeCents}}</td></tr></tbody>
  </table>
</body>
</html>
`))

func dailySummaryToPrintableHTML(summary domain.DailySummary) string {
	var buf bytes.Buffer
	if err := dailySummaryHTMLTmpl.Execute(&buf, summary); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so internal details (SQL
	// errors, file paths) never reach the client.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
