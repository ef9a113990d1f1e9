package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type fakeRepo struct {
	Name      string
	Stars     int
	Forks     int
	Private   bool
	Fork      bool
	Languages []string
	// CommitPages are served one per request; nil means no default branch
	CommitPages [][]string
}

// fakeGitHub answers the engine's four queries from in-memory data
type fakeGitHub struct {
	mu sync.Mutex

	login  string
	userID string
	name   string
	repos  []fakeRepo
	year   int
	days   map[string]int

	// repository pages with first >= failPageSizeFrom fail; 0 disables
	failPageSizeFrom int
	// when set, every request fails once before it succeeds
	flaky bool

	seen       map[string]bool
	calls      map[string]int
	pageSizes  []int
	httpErrors int
}

func newFakeGitHub(login string, year int) *fakeGitHub {
	return &fakeGitHub{
		login:  login,
		userID: "U1",
		name:   strings.ToUpper(login[:1]) + login[1:],
		year:   year,
		days:   map[string]int{},
		seen:   map[string]bool{},
		calls:  map[string]int{},
	}
}

func queryName(query string) string {
	switch query {
	case profileQuery:
		return "profile"
	case repositoriesQuery:
		return "repositories"
	case commitPageQuery:
		return "commits"
	case contributionsQuery:
		return "contributions"
	}
	return "unknown"
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// cursorIndex decodes the cursors produced by the fake ("r3", "c1")
func cursorIndex(v interface{}, prefix string) int {
	s := toString(v)
	if s == "" {
		return 0
	}
	i, err := strconv.Atoi(strings.TrimPrefix(s, prefix))
	if err != nil {
		return 0
	}
	return i
}

func (f *fakeGitHub) commitDate(repoIdx, n int) string {
	return time.Date(f.year, time.March, 1+repoIdx, n, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func (f *fakeGitHub) commitHistory(repoIdx int, page int) map[string]interface{} {
	repo := f.repos[repoIdx]
	offset := 0
	for i := 0; i < page; i++ {
		offset += len(repo.CommitPages[i])
	}
	nodes := make([]map[string]interface{}, 0, len(repo.CommitPages[page]))
	for i, msg := range repo.CommitPages[page] {
		nodes = append(nodes, map[string]interface{}{
			"message":       msg,
			"committedDate": f.commitDate(repoIdx, offset+i),
		})
	}
	hasNext := page+1 < len(repo.CommitPages)
	var endCursor interface{}
	if hasNext {
		endCursor = fmt.Sprintf("c%d", page+1)
	}
	return map[string]interface{}{
		"history": map[string]interface{}{
			"nodes": nodes,
			"pageInfo": map[string]interface{}{
				"hasNextPage": hasNext,
				"endCursor":   endCursor,
			},
		},
	}
}

func (f *fakeGitHub) branchRef(repoIdx, page int) interface{} {
	if f.repos[repoIdx].CommitPages == nil {
		return nil
	}
	return map[string]interface{}{"target": f.commitHistory(repoIdx, page)}
}

func (f *fakeGitHub) handle(query string, vars map[string]interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := queryName(query)
	f.calls[name]++

	if f.flaky {
		key, _ := json.Marshal(map[string]interface{}{"q": name, "v": vars})
		if !f.seen[string(key)] {
			f.seen[string(key)] = true
			f.httpErrors++
			return nil, NewGitHubError(http.StatusBadGateway, "flaky", nil)
		}
	}

	if toString(vars["username"]) != f.login {
		return map[string]interface{}{"user": nil}, nil
	}

	switch name {
	case "profile":
		return map[string]interface{}{"user": map[string]interface{}{
			"id":        f.userID,
			"name":      f.name,
			"avatarUrl": "https://avatars.example/" + f.login,
			"followers": map[string]interface{}{"totalCount": 7},
			"following": map[string]interface{}{"totalCount": 3},
			"createdAt": "2015-06-01T12:00:00Z",
		}}, nil

	case "repositories":
		first := toInt(vars["first"])
		f.pageSizes = append(f.pageSizes, first)
		if f.failPageSizeFrom > 0 && first >= f.failPageSizeFrom {
			return nil, GraphQLErrors{{Message: "Something went wrong while executing your query. This may be the result of a timeout."}}
		}
		start := cursorIndex(vars["after"], "r")
		end := start + first
		if end > len(f.repos) {
			end = len(f.repos)
		}
		nodes := make([]map[string]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			repo := f.repos[i]
			langs := make([]map[string]interface{}, 0, len(repo.Languages))
			for _, l := range repo.Languages {
				langs = append(langs, map[string]interface{}{"name": l})
			}
			nodes = append(nodes, map[string]interface{}{
				"name":             repo.Name,
				"stargazerCount":   repo.Stars,
				"forkCount":        repo.Forks,
				"isPrivate":        repo.Private,
				"isFork":           repo.Fork,
				"createdAt":        "2020-01-01T00:00:00Z",
				"languages":        map[string]interface{}{"nodes": langs},
				"defaultBranchRef": f.branchRef(i, 0),
			})
		}
		hasNext := end < len(f.repos)
		var endCursor interface{}
		if hasNext {
			endCursor = fmt.Sprintf("r%d", end)
		}
		return map[string]interface{}{"user": map[string]interface{}{
			"repositories": map[string]interface{}{
				"nodes": nodes,
				"pageInfo": map[string]interface{}{
					"hasNextPage": hasNext,
					"endCursor":   endCursor,
				},
			},
		}}, nil

	case "commits":
		repoName := toString(vars["repoName"])
		for i, repo := range f.repos {
			if repo.Name == repoName {
				page := cursorIndex(vars["after"], "c")
				return map[string]interface{}{"user": map[string]interface{}{
					"repository": map[string]interface{}{"defaultBranchRef": f.branchRef(i, page)},
				}}, nil
			}
		}
		return map[string]interface{}{"user": map[string]interface{}{"repository": nil}}, nil

	case "contributions":
		// calendar weeks start on Sunday, so the first week may reach into the previous year
		start := time.Date(f.year, time.January, 1, 0, 0, 0, 0, time.UTC)
		start = start.AddDate(0, 0, -int(start.Weekday()))
		end := time.Date(f.year, time.December, 31, 0, 0, 0, 0, time.UTC)

		total := 0
		var weeks []map[string]interface{}
		var days []map[string]interface{}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			date := d.Format("2006-01-02")
			count := f.days[date]
			if d.Year() == f.year {
				total += count
			}
			days = append(days, map[string]interface{}{"date": date, "contributionCount": count})
			if len(days) == 7 {
				weeks = append(weeks, map[string]interface{}{"contributionDays": days})
				days = nil
			}
		}
		if len(days) > 0 {
			weeks = append(weeks, map[string]interface{}{"contributionDays": days})
		}
		return map[string]interface{}{"user": map[string]interface{}{
			"contributionsCollection": map[string]interface{}{
				"totalPullRequestContributions": 4,
				"totalIssueContributions":       2,
				"totalCommitContributions":      total,
				"contributionCalendar": map[string]interface{}{
					"totalContributions": total,
					"weeks":              weeks,
				},
			},
		}}, nil
	}

	return nil, fmt.Errorf("unexpected query")
}

func (f *fakeGitHub) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// Execute lets the fake stand in for the Transport
func (f *fakeGitHub) Execute(_ context.Context, query string, variables map[string]interface{}, _ string) (json.RawMessage, error) {
	data, err := f.handle(query, variables)
	if err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

// ServeHTTP serves the fake behind a real Client
func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	data, err := f.handle(req.Query, req.Variables)
	if err != nil {
		if ghErr, ok := err.(*GitHubError); ok {
			w.WriteHeader(ghErr.StatusCode)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": nil, "errors": err})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}
