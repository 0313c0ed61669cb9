// Package postgres implements the repository on PostgreSQL through
// database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"printdesk/backend/internal/domain"
	"printdesk/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables on first boot. Statements are idempotent
// so repeated startups are safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS job_groups (
			id TEXT PRIMARY KEY,
			customer_label TEXT NOT NULL DEFAULT '',
			total_price_cents BIGINT NOT NULL DEFAULT 0,
			payment_status TEXT NOT NULL DEFAULT 'unpaid',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL REFERENCES job_groups(id) ON DELETE CASCADE,
			file_name TEXT NOT NULL,
			file_size BIGINT NOT NULL DEFAULT 0,
			storage_key TEXT NOT NULL,
			total_pages INT NOT NULL,
			recipe_pages TEXT,
			recipe_color TEXT,
			recipe_sides TEXT,
			recipe_copies INT,
			price_cents BIGINT NOT NULL DEFAULT 0,
			payment_status TEXT NOT NULL DEFAULT 'unpaid',
			status TEXT NOT NULL DEFAULT 'queued',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_group_id ON jobs(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_job_groups_created_at ON job_groups(created_at)`,
		`CREATE TABLE IF NOT EXISTS daily_summaries (
			date TEXT PRIMARY KEY,
			total_customers BIGINT NOT NULL DEFAULT 0,
			total_docs BIGINT NOT NULL DEFAULT 0,
			total_income_cents BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS system_status (
			id INT PRIMARY KEY CHECK (id = 1),
			open BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`INSERT INTO system_status (id, open) VALUES (1, TRUE) ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_username TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateJobGroup(ctx context.Context, group domain.JobGroup) (*domain.JobGroup, error) {
	if group.ID == "" {
		return nil, store.ErrInvalidOrder
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	group.PaymentStatus = domain.PaymentUnpaid
	group.TotalPriceCents = 0
	group.Jobs = nil

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_groups (id, customer_label, total_price_cents, payment_status, created_at)
		 VALUES ($1, $2, 0, $3, $4)`,
		group.ID, group.CustomerLabel, group.PaymentStatus, group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job group: %w", err)
	}
	return &group, nil
}

func (s *Store) GetJobGroup(ctx context.Context, id string) (*domain.JobGroup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_label, total_price_cents, payment_status, created_at
		 FROM job_groups WHERE id = $1`, id)

	group, err := scanGroup(row)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobsOf(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	group.Jobs = jobs
	return group, nil
}

func (s *Store) ListJobGroups(ctx context.Context, from time.Time, to time.Time, paidOnly bool) ([]domain.JobGroup, error) {
	query := `SELECT id, customer_label, total_price_cents, payment_status, created_at FROM job_groups WHERE 1=1`
	args := []any{}
	if paidOnly {
		query += fmt.Sprintf(" AND payment_status = $%d", len(args)+1)
		args = append(args, domain.PaymentPaid)
	}
	if !from.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, from)
	}
	if !to.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, to)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job groups: %w", err)
	}
	defer rows.Close()

	groups := []domain.JobGroup{}
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		jobs, err := s.jobsOf(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Jobs = jobs
	}
	return groups, nil
}

func (s *Store) MarkGroupPaid(ctx context.Context, id string, totalPriceCents int64, paidAt time.Time) (*domain.JobGroup, error) {
	if totalPriceCents < 0 {
		return nil, store.ErrInvalidOrder
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE job_groups SET payment_status = $2, total_price_cents = $3
		 WHERE id = $1 AND payment_status = $4`,
		id, domain.PaymentPaid, totalPriceCents, domain.PaymentUnpaid)
	if err != nil {
		return nil, fmt.Errorf("mark group paid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM job_groups WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrAlreadyPaid
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET payment_status = $2, updated_at = $3 WHERE group_id = $1`,
		id, domain.PaymentPaid, paidAt); err != nil {
		return nil, fmt.Errorf("mark jobs paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetJobGroup(ctx, id)
}

func (s *Store) DeleteJobGroup(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM job_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertJob(ctx context.Context, job domain.Job) (*domain.Job, error) {
	if job.ID == "" || job.GroupID == "" {
		return nil, store.ErrInvalidOrder
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	job.Status = domain.JobStatusQueued
	job.PaymentStatus = domain.PaymentUnpaid
	job.Recipe = nil
	job.PriceCents = 0

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM job_groups WHERE id = $1)`, job.GroupID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, group_id, file_name, file_size, storage_key, total_pages,
			price_cents, payment_status, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10)`,
		job.ID, job.GroupID, job.FileName, job.FileSize, job.StorageKey, job.TotalPages,
		job.PaymentStatus, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &job, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE id = $1`, id)
	return scanJob(row)
}

func (s *Store) UpdateJobRecipe(ctx context.Context, id string, recipe domain.PrintRecipe, priceCents int64) (*domain.Job, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET recipe_pages = $2, recipe_color = $3, recipe_sides = $4,
			recipe_copies = $5, price_cents = $6, updated_at = $7
		 WHERE id = $1 AND payment_status = $8`,
		id, recipe.Pages, recipe.ColorMode, recipe.Sides, recipe.Copies, priceCents,
		time.Now().UTC(), domain.PaymentUnpaid)
	if err != nil {
		return nil, fmt.Errorf("update job recipe: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrAlreadyPaid
	}
	return s.GetJob(ctx, id)
}

// UpdateJobStatus applies the transition only when the row still carries
// the expected status, so concurrent shopkeeper tabs cannot clobber each
// other.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, expected domain.JobStatus, next domain.JobStatus) (*domain.Job, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, expected, next, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrStaleStatus
	}
	return s.GetJob(ctx, id)
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetDailySummary(ctx context.Context, date string) (*domain.DailySummary, error) {
	var summary domain.DailySummary
	err := s.db.QueryRowContext(ctx,
		`SELECT date, total_customers, total_docs, total_income_cents
		 FROM daily_summaries WHERE date = $1`, date).
		Scan(&summary.Date, &summary.TotalCustomers, &summary.TotalDocs, &summary.TotalIncomeCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get daily summary: %w", err)
	}
	return &summary, nil
}

func (s *Store) UpsertDailySummary(ctx context.Context, delta domain.DailySummary) (*domain.DailySummary, error) {
	if delta.Date == "" {
		return nil, store.ErrInvalidOrder
	}

	var summary domain.DailySummary
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO daily_summaries (date, total_customers, total_docs, total_income_cents)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (date) DO UPDATE SET
			total_customers = daily_summaries.total_customers + EXCLUDED.total_customers,
			total_docs = daily_summaries.total_docs + EXCLUDED.total_docs,
			total_income_cents = daily_summaries.total_income_cents + EXCLUDED.total_income_cents
		 RETURNING date, total_customers, total_docs, total_income_cents`,
		delta.Date, delta.TotalCustomers, delta.TotalDocs, delta.TotalIncomeCents).
		Scan(&summary.Date, &summary.TotalCustomers, &summary.TotalDocs, &summary.TotalIncomeCents)
	if err != nil {
		return nil, fmt.Errorf("upsert daily summary: %w", err)
	}
	return &summary, nil
}

func (s *Store) GetSystemStatus(ctx context.Context) (*domain.SystemStatus, error) {
	var status domain.SystemStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT open, updated_at FROM system_status WHERE id = 1`).
		Scan(&status.Open, &status.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get system status: %w", err)
	}
	return &status, nil
}

func (s *Store) SetSystemStatus(ctx context.Context, open bool, at time.Time) (*domain.SystemStatus, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE system_status SET open = $1, updated_at = $2 WHERE id = 1`, open, at)
	if err != nil {
		return nil, fmt.Errorf("set system status: %w", err)
	}
	return &domain.SystemStatus{Open: open, UpdatedAt: at}, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		 FROM audit_logs WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at DESC LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.AuditLog{}
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, active, created_at)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (username) DO NOTHING`,
		user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password_hash, role, active, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []domain.UserAccount{}
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE username = $1`, username, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const selectJob = `SELECT id, group_id, file_name, file_size, storage_key, total_pages,
	recipe_pages, recipe_color, recipe_sides, recipe_copies,
	price_cents, payment_status, status, created_at, updated_at FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*domain.JobGroup, error) {
	var group domain.JobGroup
	err := row.Scan(&group.ID, &group.CustomerLabel, &group.TotalPriceCents, &group.PaymentStatus, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job group: %w", err)
	}
	return &group, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job          domain.Job
		recipePages  sql.NullString
		recipeColor  sql.NullString
		recipeSides  sql.NullString
		recipeCopies sql.NullInt32
	)
	err := row.Scan(&job.ID, &job.GroupID, &job.FileName, &job.FileSize, &job.StorageKey, &job.TotalPages,
		&recipePages, &recipeColor, &recipeSides, &recipeCopies,
		&job.PriceCents, &job.PaymentStatus, &job.Status, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if recipePages.Valid {
		job.Recipe = &domain.PrintRecipe{
			Pages:     recipePages.String,
			ColorMode: domain.ColorMode(recipeColor.String),
			Sides:     domain.Sides(recipeSides.String),
			Copies:    int(recipeCopies.Int32),
		}
	}
	return &job, nil
}

func (s *Store) jobsOf(ctx context.Context, groupID string) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+` WHERE group_id = $1 ORDER BY created_at ASC, id ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
