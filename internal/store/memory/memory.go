// Package memory is the in-process Repository used for dev mode and the
// test suite. All maps are guarded by one RWMutex; reads hand out copies so
// callers can never mutate shared state.
package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	groupsByID      map[string]domain.JobGroup
	jobsByID        map[string]domain.Job
	summariesByDate map[string]domain.DailySummary
	systemStatus    domain.SystemStatus
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		groupsByID:      make(map[string]domain.JobGroup),
		jobsByID:        make(map[string]domain.Job),
		summariesByDate: make(map[string]domain.DailySummary),
		systemStatus:    domain.SystemStatus{Open: true, UpdatedAt: time.Now().UTC()},
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded builds a store with the dev/demo shopkeeper accounts loaded.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the initial shopkeeper accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_SHOPKEEPER_PASSWORD;
// hardcoded dev defaults are used (with a warning) when unset. Production
// deployments use PostgreSQL and never reach this path.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	keeperPwd := envOr("SEED_SHOPKEEPER_PASSWORD", "keeper123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SHOPKEEPER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SHOPKEEPER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"shopkeeper", keeperPwd, domain.RoleShopkeeper},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateJobGroup(_ context.Context, group domain.JobGroup) (*domain.JobGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	group.PaymentStatus = domain.PaymentUnpaid
	group.TotalPriceCents = 0
	group.Jobs = nil
	if _, exists := s.groupsByID[group.ID]; exists {
		return nil, store.ErrInvalidOrder
	}

	s.groupsByID[group.ID] = group
	created := group
	return &created, nil
}

func (s *Store) GetJobGroup(_ context.Context, id string) (*domain.JobGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, exists := s.groupsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	result := group
	result.Jobs = s.jobsOfLocked(id)
	return &result, nil
}

func (s *Store) ListJobGroups(_ context.Context, from time.Time, to time.Time, paidOnly bool) ([]domain.JobGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]domain.JobGroup, 0, len(s.groupsByID))
	for _, group := range s.groupsByID {
		if paidOnly && group.PaymentStatus != domain.PaymentPaid {
			continue
		}
		if !from.IsZero() && group.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !group.CreatedAt.Before(to) {
			continue
		}
		group.Jobs = s.jobsOfLocked(group.ID)
		groups = append(groups, group)
	}

	// Earliest order first: the shopkeeper works the queue in FIFO order.
	slices.SortFunc(groups, func(a, b domain.JobGroup) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return groups, nil
}

func (s *Store) MarkGroupPaid(_ context.Context, id string, totalPriceCents int64, paidAt time.Time) (*domain.JobGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, exists := s.groupsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if group.PaymentStatus == domain.PaymentPaid {
		return nil, store.ErrAlreadyPaid
	}
	if totalPriceCents < 0 {
		return nil, store.ErrInvalidOrder
	}

	group.PaymentStatus = domain.PaymentPaid
	group.TotalPriceCents = totalPriceCents
	s.groupsByID[id] = group

	for jobID, job := range s.jobsByID {
		if job.GroupID != id {
			continue
		}
		job.PaymentStatus = domain.PaymentPaid
		job.UpdatedAt = paidAt
		s.jobsByID[jobID] = job
	}

	updated := group
	updated.Jobs = s.jobsOfLocked(id)
	return &updated, nil
}

func (s *Store) DeleteJobGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groupsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.groupsByID, id)
	// Cascade: the group exclusively owns its jobs.
	for jobID, job := range s.jobsByID {
		if job.GroupID == id {
			delete(s.jobsByID, jobID)
		}
	}
	return nil
}

func (s *Store) InsertJob(_ context.Context, job domain.Job) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.GroupID == "" || job.FileName == "" {
		return nil, store.ErrInvalidOrder
	}
	if _, exists := s.groupsByID[job.GroupID]; !exists {
		return nil, store.ErrNotFound
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	job.Status = domain.JobStatusQueued
	job.PaymentStatus = domain.PaymentUnpaid
	job.Recipe = nil
	job.PriceCents = 0

	s.jobsByID[job.ID] = job
	created := job
	return &created, nil
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	result := job
	if job.Recipe != nil {
		recipe := *job.Recipe
		result.Recipe = &recipe
	}
	return &result, nil
}

func (s *Store) UpdateJobRecipe(_ context.Context, id string, recipe domain.PrintRecipe, priceCents int64) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if job.PaymentStatus == domain.PaymentPaid {
		return nil, store.ErrAlreadyPaid
	}
	if priceCents < 0 {
		return nil, store.ErrInvalidOrder
	}

	stored := recipe
	job.Recipe = &stored
	job.PriceCents = priceCents
	job.UpdatedAt = time.Now().UTC()
	s.jobsByID[id] = job

	updated := job
	updatedRecipe := stored
	updated.Recipe = &updatedRecipe
	return &updated, nil
}

func (s *Store) UpdateJobStatus(_ context.Context, id string, expected domain.JobStatus, next domain.JobStatus) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if job.Status != expected {
		return nil, store.ErrStaleStatus
	}

	job.Status = next
	job.UpdatedAt = time.Now().UTC()
	s.jobsByID[id] = job
	updated := job
	return &updated, nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.jobsByID, id)
	return nil
}

func (s *Store) GetDailySummary(_ context.Context, date string) (*domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, exists := s.summariesByDate[date]
	if !exists {
		return nil, store.ErrNotFound
	}
	result := summary
	return &result, nil
}

func (s *Store) UpsertDailySummary(_ context.Context, delta domain.DailySummary) (*domain.DailySummary, error) {
	if delta.Date == "" {
		return nil, store.ErrInvalidOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.summariesByDate[delta.Date]
	if !exists {
		current = domain.DailySummary{Date: delta.Date}
	}
	current.TotalCustomers += delta.TotalCustomers
	current.TotalDocs += delta.TotalDocs
	current.TotalIncomeCents += delta.TotalIncomeCents
	s.summariesByDate[delta.Date] = current

	result := current
	return &result, nil
}

func (s *Store) GetSystemStatus(_ context.Context) (*domain.SystemStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.systemStatus
	return &status, nil
}

func (s *Store) SetSystemStatus(_ context.Context, open bool, at time.Time) (*domain.SystemStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.systemStatus = domain.SystemStatus{Open: open, UpdatedAt: at}
	status := s.systemStatus
	return &status, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidOrder
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidOrder
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// jobsOfLocked collects copies of a group's jobs sorted by creation time.
// Callers must hold at least a read lock.
func (s *Store) jobsOfLocked(groupID string) []domain.Job {
	jobs := make([]domain.Job, 0, 4)
	for _, job := range s.jobsByID {
		if job.GroupID != groupID {
			continue
		}
		if job.Recipe != nil {
			recipe := *job.Recipe
			job.Recipe = &recipe
		}
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b domain.Job) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return jobs
}
