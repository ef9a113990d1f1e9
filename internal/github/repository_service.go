package github

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/github-yearly/internal/models"
	"github.com/Kamar-Folarin/github-yearly/pkg/utils"
)

// RepositoryService implements RepositoryFetcher
type RepositoryService struct {
	transport Transport
	logger    *logrus.Logger
}

// NewRepositoryService creates a new repository service
func NewRepositoryService(transport Transport, logger *logrus.Logger) *RepositoryService {
	return &RepositoryService{
		transport: transport,
		logger:    logger,
	}
}

// commitCursor is a repository whose commit history has further pages
type commitCursor struct {
	repo  *models.RepositorySnapshot
	after string
}

// FetchRepositories returns every repository of username keyed by name, each
// with the commits userID authored on its default branch during year.
// Failures are returned as *RepoFetchError so the caller can retry with a smaller pageSize.
func (s *RepositoryService) FetchRepositories(ctx context.Context, username, userID, token string, year, pageSize int) (map[string]*models.RepositorySnapshot, error) {
	if pageSize < 1 {
		return nil, &RepoFetchError{PageSize: pageSize, Cause: ErrInvalidPageSize}
	}

	logger := s.logger.WithFields(logrus.Fields{
		"username":  username,
		"year":      year,
		"page_size": pageSize,
	})

	since, until := utils.YearWindow(year)
	variables := map[string]interface{}{
		"username": username,
		"id":       userID,
		"since":    since,
		"until":    until,
		"first":    pageSize,
		"after":    nil,
	}

	repos := make(map[string]*models.RepositorySnapshot)
	page := 0

	for {
		page++
		raw, err := s.transport.Execute(ctx, repositoriesQuery, variables, token)
		if err != nil {
			return nil, &RepoFetchError{PageSize: pageSize, Cause: err}
		}

		var data repositoriesData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, &RepoFetchError{PageSize: pageSize, Cause: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
		}
		if data.User == nil {
			return nil, &RepoFetchError{PageSize: pageSize, Cause: ErrUserNotFound}
		}

		var pending []commitCursor
		for _, node := range data.User.Repositories.Nodes {
			if node == nil {
				return nil, &RepoFetchError{PageSize: pageSize, Cause: fmt.Errorf("%w: null repository node", ErrMalformedResponse)}
			}
			snapshot, err := node.snapshot()
			if err != nil {
				return nil, &RepoFetchError{PageSize: pageSize, Cause: err}
			}
			history, err := node.DefaultBranchRef.history()
			if err != nil {
				return nil, &RepoFetchError{PageSize: pageSize, Repository: snapshot.Name, Cause: err}
			}
			if history != nil {
				snapshot.Commits = appendCommits(snapshot.Commits, history.Nodes)
				if history.PageInfo.HasNextPage {
					pending = append(pending, commitCursor{repo: snapshot, after: history.PageInfo.EndCursor})
				}
			}
			repos[snapshot.Name] = snapshot
		}

		for _, cursor := range pending {
			if err := s.fetchRemainingCommits(ctx, username, userID, token, since, until, cursor); err != nil {
				return nil, &RepoFetchError{PageSize: pageSize, Repository: cursor.repo.Name, Cause: err}
			}
		}

		logger.WithFields(logrus.Fields{
			"page":         page,
			"repositories": len(repos),
		}).Debug("Fetched repositories page")

		info := data.User.Repositories.PageInfo
		if !info.HasNextPage {
			break
		}
		if info.EndCursor == "" {
			return nil, &RepoFetchError{PageSize: pageSize, Cause: fmt.Errorf("%w: next page without end cursor", ErrMalformedResponse)}
		}
		variables["after"] = info.EndCursor
	}

	logger.WithField("repositories", len(repos)).Info("Fetched repositories")
	return repos, nil
}

// fetchRemainingCommits follows a repository's commit history until the last page
func (s *RepositoryService) fetchRemainingCommits(ctx context.Context, username, userID, token, since, until string, cursor commitCursor) error {
	variables := map[string]interface{}{
		"username": username,
		"id":       userID,
		"since":    since,
		"until":    until,
		"repoName": cursor.repo.Name,
	}

	after := cursor.after
	for {
		if after == "" {
			return fmt.Errorf("%w: next commit page without end cursor", ErrMalformedResponse)
		}
		variables["after"] = after

		raw, err := s.transport.Execute(ctx, commitPageQuery, variables, token)
		if err != nil {
			return err
		}

		var data commitPageData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if data.User == nil || data.User.Repository == nil {
			return fmt.Errorf("%w: repository missing from commit page", ErrMalformedResponse)
		}

		history, err := data.User.Repository.DefaultBranchRef.history()
		if err != nil {
			return err
		}
		if history == nil {
			return fmt.Errorf("%w: commit history missing from commit page", ErrMalformedResponse)
		}
		cursor.repo.Commits = appendCommits(cursor.repo.Commits, history.Nodes)

		if !history.PageInfo.HasNextPage {
			return nil
		}
		if history.PageInfo.EndCursor == after {
			return fmt.Errorf("%w: commit cursor did not advance", ErrMalformedResponse)
		}
		after = history.PageInfo.EndCursor
	}
}
