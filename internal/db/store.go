package db

import (
	"context"

	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

// Store defines the interface for report cache operations
type Store interface {
	// Report operations
	GetReport(ctx context.Context, username string, year int) (*models.CachedReport, error)
	SaveReport(ctx context.Context, username string, year int, report []byte) error

	// Request operations
	CreateRequest(ctx context.Context, req *models.ReportRequest) (bool, error)
	GetRequest(ctx context.Context, username string, year int) (*models.ReportRequest, error)
	MarkRequestFailed(ctx context.Context, username string, year int, reason string) error
	PurgeOrphanedRequests(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
