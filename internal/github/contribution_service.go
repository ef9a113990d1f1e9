package github

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/github-yearly/internal/models"
	"github.com/Kamar-Folarin/github-yearly/pkg/utils"
)

// ContributionService implements ContributionFetcher
type ContributionService struct {
	transport Transport
	logger    *logrus.Logger
}

// NewContributionService creates a new contribution service
func NewContributionService(transport Transport, logger *logrus.Logger) *ContributionService {
	return &ContributionService{
		transport: transport,
		logger:    logger,
	}
}

// FetchContributions loads the contribution totals and the daily calendar of year.
// Days always has one entry per day of the year; days the API omits count as zero
// and days outside the year are dropped.
func (s *ContributionService) FetchContributions(ctx context.Context, username, token string, year int) (*models.ContributionSummary, error) {
	from, to := utils.YearWindow(year)
	raw, err := s.transport.Execute(ctx, contributionsQuery, map[string]interface{}{
		"username": username,
		"from":     from,
		"to":       to,
	}, token)
	if err != nil {
		return nil, &ContributionError{Username: username, Year: year, Cause: err}
	}

	var data contributionsData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ContributionError{Username: username, Year: year, Cause: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if data.User == nil {
		return nil, &ContributionError{Username: username, Year: year, Cause: ErrUserNotFound}
	}

	collection := data.User.ContributionsCollection
	if collection == nil || collection.ContributionCalendar == nil {
		return nil, &ContributionError{Username: username, Year: year, Cause: fmt.Errorf("%w: contribution calendar is null", ErrMalformedResponse)}
	}
	calendar := collection.ContributionCalendar

	days := make([]int, utils.DaysInYear(year))
	for _, week := range calendar.Weeks {
		for _, day := range week.ContributionDays {
			date, err := time.Parse("2006-01-02", day.Date)
			if err != nil {
				return nil, &ContributionError{Username: username, Year: year, Cause: fmt.Errorf("%w: invalid calendar date %q", ErrMalformedResponse, day.Date)}
			}
			if date.Year() != year {
				continue
			}
			days[utils.DayOfYear(date)] = day.ContributionCount
		}
	}

	s.logger.WithFields(logrus.Fields{
		"username": username,
		"year":     year,
		"total":    calendar.TotalContributions,
	}).Debug("Fetched contributions")

	return &models.ContributionSummary{
		PullRequests: collection.TotalPullRequestContributions,
		Issues:       collection.TotalIssueContributions,
		Commits:      collection.TotalCommitContributions,
		Total:        calendar.TotalContributions,
		Days:         days,
	}, nil
}
