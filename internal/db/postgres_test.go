package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Kamar-Folarin/github-yearly/internal/errors"
	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

func setupTestDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewPostgresStoreFromDB(sqlx.NewDb(db, "sqlmock"))
	cleanup := func() {
		store.Close()
	}
	return store, mock, cleanup
}

func TestPostgresStore_GetReport(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		mockSetup func(sqlmock.Sqlmock)
		wantErr   func(error) bool
	}{
		{
			name: "cached report",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"username", "year", "report", "created_at"}).
					AddRow("ada", 2023, []byte(`{"basic":{"id":"U1"}}`), created)
				mock.ExpectQuery("SELECT username, year, report, created_at FROM yearly_reports").
					WithArgs("ada", 2023).
					WillReturnRows(rows)
			},
		},
		{
			name: "missing report",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT username, year, report, created_at FROM yearly_reports").
					WithArgs("ada", 2023).
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: apperrors.IsNotFound,
		},
		{
			name: "query failure",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT username, year, report, created_at FROM yearly_reports").
					WithArgs("ada", 2023).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: func(err error) bool { return err != nil && !apperrors.IsNotFound(err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, cleanup := setupTestDB(t)
			defer cleanup()
			tt.mockSetup(mock)

			report, err := store.GetReport(context.Background(), "ada", 2023)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				assert.Nil(t, report)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ada", report.Username)
				assert.Equal(t, 2023, report.Year)
				assert.JSONEq(t, `{"basic":{"id":"U1"}}`, string(report.Report))
				assert.Equal(t, created, report.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_SaveReport(t *testing.T) {
	payload := []byte(`{"basic":{"id":"U1"}}`)

	t.Run("commits both writes", func(t *testing.T) {
		store, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO yearly_reports").
			WithArgs("ada", 2023, payload).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO report_requests").
			WithArgs("ada", 2023, "completed").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.SaveReport(context.Background(), "ada", 2023, payload))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		store, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO yearly_reports").
			WithArgs("ada", 2023, payload).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := store.SaveReport(context.Background(), "ada", 2023, payload)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_CreateRequest(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"new request", 1, true},
		{"failed request reset", 2, true},
		{"already pending or completed", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, cleanup := setupTestDB(t)
			defer cleanup()

			mock.ExpectExec("INSERT INTO report_requests").
				WithArgs("ada", 2023, "pending", "Europe/Berlin", "failed").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			created, err := store.CreateRequest(context.Background(), &models.ReportRequest{
				ReportKey: models.ReportKey{Username: "ada", Year: 2023},
				Timezone:  "Europe/Berlin",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, created)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_GetRequest(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"username", "year", "status", "timezone", "last_error", "created_at", "updated_at"}).
		AddRow("ada", 2023, "failed", "UTC", "rate limited", now, now)
	mock.ExpectQuery("SELECT username, year, status, timezone, last_error, created_at, updated_at FROM report_requests").
		WithArgs("ada", 2023).
		WillReturnRows(rows)

	req, err := store.GetRequest(context.Background(), "ada", 2023)
	require.NoError(t, err)
	assert.Equal(t, models.RequestFailed, req.Status)
	assert.Equal(t, "rate limited", req.LastError)
	assert.Equal(t, now, req.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkRequestFailed(t *testing.T) {
	t.Run("updates request", func(t *testing.T) {
		store, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectExec("UPDATE report_requests").
			WithArgs("ada", 2023, "failed", "boom").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.MarkRequestFailed(context.Background(), "ada", 2023, "boom"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown request", func(t *testing.T) {
		store, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectExec("UPDATE report_requests").
			WithArgs("ada", 2023, "failed", "boom").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.MarkRequestFailed(context.Background(), "ada", 2023, "boom")
		assert.True(t, apperrors.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_PurgeOrphanedRequests(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM report_requests").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.PurgeOrphanedRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
