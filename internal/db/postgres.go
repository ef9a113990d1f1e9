package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	apperrors "github.com/Kamar-Folarin/github-yearly/internal/errors"
	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens and pings a PostgreSQL connection
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded goose migrations
func (s *PostgresStore) Migrate() error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.Up(s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetReport returns the cached report for (username, year)
func (s *PostgresStore) GetReport(ctx context.Context, username string, year int) (*models.CachedReport, error) {
	var report models.CachedReport
	err := s.db.GetContext(ctx, &report, `
		SELECT username, year, report, created_at
		FROM yearly_reports
		WHERE username = $1 AND year = $2`, username, year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no report for %s/%d", username, year), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// SaveReport stores a serialized report and marks its request completed
func (s *PostgresStore) SaveReport(ctx context.Context, username string, year int, report []byte) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO yearly_reports (username, year, report, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (username, year) DO UPDATE SET
			report = EXCLUDED.report,
			created_at = NOW()`, username, year, report)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO report_requests (username, year, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (username, year) DO UPDATE SET
			status = EXCLUDED.status,
			last_error = '',
			updated_at = NOW()`, username, year, string(models.RequestCompleted))
	if err != nil {
		return fmt.Errorf("failed to complete request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateRequest registers a pending request. It returns false when a pending or
// completed request already exists; a failed request is reset to pending.
func (s *PostgresStore) CreateRequest(ctx context.Context, req *models.ReportRequest) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO report_requests (username, year, status, timezone, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', NOW(), NOW())
		ON CONFLICT (username, year) DO UPDATE SET
			status = EXCLUDED.status,
			timezone = EXCLUDED.timezone,
			last_error = '',
			updated_at = NOW()
		WHERE report_requests.status = $5`,
		req.Username, req.Year, string(models.RequestPending), req.Timezone, string(models.RequestFailed))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	return n > 0, nil
}

// GetRequest returns the request for (username, year)
func (s *PostgresStore) GetRequest(ctx context.Context, username string, year int) (*models.ReportRequest, error) {
	var req models.ReportRequest
	err := s.db.GetContext(ctx, &req, `
		SELECT username, year, status, timezone, last_error, created_at, updated_at
		FROM report_requests
		WHERE username = $1 AND year = $2`, username, year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no request for %s/%d", username, year), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

// MarkRequestFailed records the failure reason of a request
func (s *PostgresStore) MarkRequestFailed(ctx context.Context, username string, year int, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_requests
		SET status = $3, last_error = $4, updated_at = NOW()
		WHERE username = $1 AND year = $2`,
		username, year, string(models.RequestFailed), reason)
	if err != nil {
		return fmt.Errorf("failed to mark request failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark request failed: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("no request for %s/%d", username, year), nil)
	}
	return nil
}

// PurgeOrphanedRequests deletes requests that never produced a report. Called at startup.
func (s *PostgresStore) PurgeOrphanedRequests(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM report_requests r
		WHERE NOT EXISTS (
			SELECT 1 FROM yearly_reports y
			WHERE y.username = r.username AND y.year = r.year
		)`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge orphaned requests: %w", err)
	}
	return res.RowsAffected()
}
