package github

import (
	"context"
	"encoding/json"

	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

// Transport executes a single GraphQL query on behalf of a token holder
type Transport interface {
	// Execute sends the query and returns the response "data" object
	Execute(ctx context.Context, query string, variables map[string]interface{}, token string) (json.RawMessage, error)
}

// ProfileFetcher resolves a user's identity
type ProfileFetcher interface {
	// FetchProfile returns the user's profile; the returned ID is never empty
	FetchProfile(ctx context.Context, username, token string) (*models.UserProfile, error)
}

// RepositoryFetcher collects a user's repositories and their commits for one year
type RepositoryFetcher interface {
	// FetchRepositories pages through every repository using pageSize repositories per request
	FetchRepositories(ctx context.Context, username, userID, token string, year, pageSize int) (map[string]*models.RepositorySnapshot, error)
}

// ContributionFetcher loads the contribution calendar for one year
type ContributionFetcher interface {
	FetchContributions(ctx context.Context, username, token string, year int) (*models.ContributionSummary, error)
}

// ReportFetcher assembles a complete yearly report
type ReportFetcher interface {
	FetchYearlyReport(ctx context.Context, username, token string, year int) (*models.YearlyReport, error)
}
