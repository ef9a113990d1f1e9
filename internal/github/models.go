package github

import (
	"fmt"
	"time"

	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

// Response shapes of the GraphQL queries. Pointers mark fields the API may return as null.

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type countField struct {
	TotalCount int `json:"totalCount"`
}

type profileData struct {
	User *struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		AvatarURL string     `json:"avatarUrl"`
		Followers countField `json:"followers"`
		Following countField `json:"following"`
		CreatedAt time.Time  `json:"createdAt"`
	} `json:"user"`
}

type commitNode struct {
	Message       string    `json:"message"`
	CommittedDate time.Time `json:"committedDate"`
}

type commitHistory struct {
	Nodes    []commitNode `json:"nodes"`
	PageInfo pageInfo     `json:"pageInfo"`
}

type branchRef struct {
	Target *struct {
		History *commitHistory `json:"history"`
	} `json:"target"`
}

// history returns nil when the repository has no default branch. A present
// branch whose history was nulled by the API is a malformed response.
func (b *branchRef) history() (*commitHistory, error) {
	if b == nil {
		return nil, nil
	}
	if b.Target == nil || b.Target.History == nil {
		return nil, fmt.Errorf("%w: commit history is null", ErrMalformedResponse)
	}
	return b.Target.History, nil
}

type repositoryNode struct {
	Name           string    `json:"name"`
	StargazerCount int       `json:"stargazerCount"`
	ForkCount      int       `json:"forkCount"`
	IsPrivate      bool      `json:"isPrivate"`
	IsFork         bool      `json:"isFork"`
	CreatedAt      time.Time `json:"createdAt"`
	Languages      *struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"languages"`
	DefaultBranchRef *branchRef `json:"defaultBranchRef"`
}

type repositoriesData struct {
	User *struct {
		Repositories struct {
			Nodes    []*repositoryNode `json:"nodes"`
			PageInfo pageInfo          `json:"pageInfo"`
		} `json:"repositories"`
	} `json:"user"`
}

type commitPageData struct {
	User *struct {
		Repository *struct {
			DefaultBranchRef *branchRef `json:"defaultBranchRef"`
		} `json:"repository"`
	} `json:"user"`
}

type contributionsData struct {
	User *struct {
		ContributionsCollection *struct {
			TotalPullRequestContributions int `json:"totalPullRequestContributions"`
			TotalIssueContributions       int `json:"totalIssueContributions"`
			TotalCommitContributions      int `json:"totalCommitContributions"`
			ContributionCalendar          *struct {
				TotalContributions int `json:"totalContributions"`
				Weeks              []struct {
					ContributionDays []struct {
						Date              string `json:"date"`
						ContributionCount int    `json:"contributionCount"`
					} `json:"contributionDays"`
				} `json:"weeks"`
			} `json:"contributionCalendar"`
		} `json:"contributionsCollection"`
	} `json:"user"`
}

// snapshot converts a repository node; a node with nulled fields is malformed
func (n *repositoryNode) snapshot() (*models.RepositorySnapshot, error) {
	if n.Name == "" || n.Languages == nil {
		return nil, fmt.Errorf("%w: incomplete repository node %q", ErrMalformedResponse, n.Name)
	}
	languages := make([]string, 0, len(n.Languages.Nodes))
	for _, lang := range n.Languages.Nodes {
		languages = append(languages, lang.Name)
	}
	return &models.RepositorySnapshot{
		Name:           n.Name,
		StargazerCount: n.StargazerCount,
		ForkCount:      n.ForkCount,
		IsPrivate:      n.IsPrivate,
		IsFork:         n.IsFork,
		CreatedAt:      n.CreatedAt,
		Languages:      languages,
		Commits:        []models.CommitRecord{},
	}, nil
}

func appendCommits(dst []models.CommitRecord, nodes []commitNode) []models.CommitRecord {
	for _, node := range nodes {
		dst = append(dst, models.CommitRecord{
			Message:       node.Message,
			CommittedDate: node.CommittedDate,
		})
	}
	return dst
}
