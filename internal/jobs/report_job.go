package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/github-yearly/internal/db"
	"github.com/Kamar-Folarin/github-yearly/internal/github"
	"github.com/Kamar-Folarin/github-yearly/internal/models"
	"github.com/Kamar-Folarin/github-yearly/pkg/utils"
)

const (
	bookkeepingTimeout = 10 * time.Second
	maxReasonLength    = 1000
)

// ReportFetcher produces a yearly report
type ReportFetcher interface {
	FetchYearlyReport(ctx context.Context, username, token string, year int) (*models.YearlyReport, error)
}

// Starrer stars a repository on behalf of a token holder
type Starrer interface {
	Star(ctx context.Context, token, owner, repo string) error
}

// ReportRunner holds the collaborators shared by all report jobs
type ReportRunner struct {
	fetcher   ReportFetcher
	store     db.Store
	logger    *logrus.Logger
	starrer   Starrer
	starOwner string
	starRepo  string
}

// RunnerOption configures a ReportRunner
type RunnerOption func(*ReportRunner)

// WithStarTarget stars owner/repo for the user after every fetch attempt
func WithStarTarget(starrer Starrer, owner, repo string) RunnerOption {
	return func(r *ReportRunner) {
		r.starrer = starrer
		r.starOwner = owner
		r.starRepo = repo
	}
}

// NewReportRunner creates a runner
func NewReportRunner(fetcher ReportFetcher, store db.Store, logger *logrus.Logger, opts ...RunnerOption) *ReportRunner {
	r := &ReportRunner{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewJob creates the job that fetches and stores the report of username for year
func (r *ReportRunner) NewJob(username, token string, year int) *ReportJob {
	return &ReportJob{
		id:       uuid.NewString(),
		runner:   r,
		username: username,
		token:    token,
		year:     year,
	}
}

// ReportJob fetches one yearly report and stores the outcome
type ReportJob struct {
	id       string
	runner   *ReportRunner
	username string
	token    string
	year     int
}

func (j *ReportJob) ID() string {
	return j.id
}

func (j *ReportJob) Run(ctx context.Context) error {
	r := j.runner
	logger := r.logger.WithFields(logrus.Fields{
		"job_id":   j.id,
		"username": j.username,
		"year":     j.year,
	})
	logger.Info("Fetching yearly report")

	report, err := r.fetcher.FetchYearlyReport(ctx, j.username, j.token, j.year)
	defer j.star(ctx, logger)
	if err != nil {
		j.markFailed(ctx, logger, err)
		return err
	}

	data, err := report.Marshal()
	if err != nil {
		err = fmt.Errorf("failed to encode report: %w", err)
		j.markFailed(ctx, logger, err)
		return err
	}

	saveCtx, cancel := bookkeepingContext(ctx)
	defer cancel()
	if err := r.store.SaveReport(saveCtx, j.username, j.year, data); err != nil {
		err = fmt.Errorf("failed to store report: %w", err)
		j.markFailed(ctx, logger, err)
		return err
	}

	logger.WithFields(logrus.Fields{
		"repositories": len(report.Repositories),
		"commits":      report.CommitCount(),
	}).Info("Stored yearly report")

	return nil
}

func (j *ReportJob) markFailed(ctx context.Context, logger *logrus.Entry, cause error) {
	reason := failureReason(cause)

	markCtx, cancel := bookkeepingContext(ctx)
	defer cancel()
	if err := j.runner.store.MarkRequestFailed(markCtx, j.username, j.year, reason); err != nil {
		logger.WithError(err).Error("Failed to mark request failed")
	}
}

// star runs after every fetch attempt, successful or not
func (j *ReportJob) star(ctx context.Context, logger *logrus.Entry) {
	r := j.runner
	if r.starrer == nil || r.starOwner == "" || r.starRepo == "" {
		return
	}
	starCtx, cancel := bookkeepingContext(ctx)
	defer cancel()
	if err := r.starrer.Star(starCtx, j.token, r.starOwner, r.starRepo); err != nil {
		logger.WithError(err).Warn("Failed to star repository")
	}
}

// failureReason is the text stored with a failed request, at most maxReasonLength bytes
func failureReason(err error) string {
	reason := err.Error()
	switch {
	case github.IsNotFound(err):
		reason = "user not found: " + reason
	case github.IsUnauthorized(err):
		reason = "token rejected: " + reason
	}
	return utils.Truncate(reason, maxReasonLength)
}

// bookkeepingContext keeps store writes alive after the job context expired
func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}
