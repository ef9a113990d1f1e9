package models

import (
	"encoding/json"
	"time"
)

// UserProfile is the identity block of a yearly report.
// ID is GitHub's opaque node id and is used as the commit author filter.
type UserProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	Followers int       `json:"follower"`
	Following int       `json:"following"`
	CreatedAt time.Time `json:"created_time"`
}

type CommitRecord struct {
	Message       string    `json:"message"`
	CommittedDate time.Time `json:"committedDate"`
}

// RepositorySnapshot holds one repository and the user's default-branch commits for the year
type RepositorySnapshot struct {
	Name           string         `json:"name"`
	StargazerCount int            `json:"stargazerCount"`
	ForkCount      int            `json:"forkCount"`
	IsPrivate      bool           `json:"isPrivate"`
	IsFork         bool           `json:"isFork"`
	CreatedAt      time.Time      `json:"createdAt"`
	Languages      []string       `json:"languages"`
	Commits        []CommitRecord `json:"commits"`
}

// ContributionSummary aggregates contribution counts. Days has one entry per
// calendar day of the year in chronological order.
type ContributionSummary struct {
	PullRequests int   `json:"pr_num"`
	Issues       int   `json:"issue_num"`
	Commits      int   `json:"commit_num"`
	Total        int   `json:"contribution_num"`
	Days         []int `json:"contribution"`
}

// YearlyReport is the assembled result of one fetch. It is treated as immutable
// once returned.
type YearlyReport struct {
	Basic        UserProfile                    `json:"basic"`
	Repositories map[string]*RepositorySnapshot `json:"repo"`
	Contribution ContributionSummary            `json:"contribution"`
}

// CommitCount returns the number of commits across all repositories
func (r *YearlyReport) CommitCount() int {
	total := 0
	for _, repo := range r.Repositories {
		total += len(repo.Commits)
	}
	return total
}

// Marshal returns the serialized form persisted by the report cache
func (r *YearlyReport) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalReport decodes a report produced by Marshal
func UnmarshalReport(data []byte) (*YearlyReport, error) {
	var report YearlyReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
