package github

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

// DefaultPageSize is the number of repositories requested per page before any degradation
const DefaultPageSize = 20

// Service assembles yearly reports from the three fetchers
type Service struct {
	profiles        ProfileFetcher
	repositories    RepositoryFetcher
	contributions   ContributionFetcher
	logger          *logrus.Logger
	initialPageSize int
}

// ServiceOption allows configuring the Service
type ServiceOption func(*Service)

// WithInitialPageSize sets the repository page size the first attempt uses
func WithInitialPageSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.initialPageSize = size
		}
	}
}

// NewService creates a Service from explicit fetchers
func NewService(profiles ProfileFetcher, repositories RepositoryFetcher, contributions ContributionFetcher, logger *logrus.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		profiles:        profiles,
		repositories:    repositories,
		contributions:   contributions,
		logger:          logger,
		initialPageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTransportService wires the GraphQL fetchers over a single transport
func NewTransportService(transport Transport, logger *logrus.Logger, opts ...ServiceOption) *Service {
	return NewService(
		NewProfileService(transport, logger),
		NewRepositoryService(transport, logger),
		NewContributionService(transport, logger),
		logger,
		opts...,
	)
}

// FetchYearlyReport fetches the profile, repositories and contributions of
// username for year. Repository pagination is retried with a halved page size
// after each retryable failure. The result is either a complete report or a *FetchError.
func (s *Service) FetchYearlyReport(ctx context.Context, username, token string, year int) (*models.YearlyReport, error) {
	start := time.Now()
	logger := s.logger.WithFields(logrus.Fields{
		"username": username,
		"year":     year,
	})

	profile, err := s.profiles.FetchProfile(ctx, username, token)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch profile")
		return nil, &FetchError{Username: username, Year: year, Cause: err}
	}

	repos, err := s.fetchRepositoriesAdaptive(ctx, logger, username, profile.ID, token, year)
	if err != nil {
		return nil, &FetchError{Username: username, Year: year, Cause: err}
	}

	contributions, err := s.contributions.FetchContributions(ctx, username, token, year)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch contributions")
		return nil, &FetchError{Username: username, Year: year, Cause: err}
	}

	report := &models.YearlyReport{
		Basic:        *profile,
		Repositories: repos,
		Contribution: *contributions,
	}

	logger.WithFields(logrus.Fields{
		"repositories": len(repos),
		"commits":      report.CommitCount(),
		"duration":     time.Since(start).String(),
	}).Info("Fetched yearly report")

	return report, nil
}

// fetchRepositoriesAdaptive runs the repository fetcher, halving the page size
// after each retryable failure until it succeeds or the size reaches zero
func (s *Service) fetchRepositoriesAdaptive(ctx context.Context, logger *logrus.Entry, username, userID, token string, year int) (map[string]*models.RepositorySnapshot, error) {
	pageSize := s.initialPageSize
	for {
		repos, err := s.repositories.FetchRepositories(ctx, username, userID, token, year, pageSize)
		if err == nil {
			return repos, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.WithError(err).Error("Repository fetch cancelled")
			return nil, err
		}
		if !IsRetryable(err) {
			logger.WithError(err).Error("Repository fetch failed with a fatal error")
			return nil, err
		}

		next := pageSize / 2
		if next < 1 {
			logger.WithError(err).Error("Repository fetch failed at the smallest page size")
			return nil, fmt.Errorf("%w: %w", ErrRepositoriesUnobtainable, err)
		}

		logger.WithFields(logrus.Fields{
			"page_size":      pageSize,
			"next_page_size": next,
		}).WithError(err).Warn("Repository fetch failed, decreasing page size")
		pageSize = next
	}
}
