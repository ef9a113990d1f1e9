package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"github.com/sirupsen/logrus"
)

// RESTClient performs the few REST calls that sit around the GraphQL engine
type RESTClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewRESTClient creates a REST client. An empty baseURL selects the public API.
func NewRESTClient(baseURL string, httpClient *http.Client, logger *logrus.Logger) (*RESTClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &RESTClient{httpClient: httpClient, logger: logger}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub REST URL %q: %w", baseURL, err)
		}
		c.baseURL = u
	}
	return c, nil
}

func (c *RESTClient) client(token string) *gh.Client {
	client := gh.NewClient(c.httpClient).WithAuthToken(token)
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}
	return client
}

// AuthenticatedLogin returns the login of the token's owner
func (c *RESTClient) AuthenticatedLogin(ctx context.Context, token string) (string, error) {
	user, resp, err := c.client(token).Users.Get(ctx, "")
	if err != nil {
		if resp != nil {
			return "", NewGitHubError(resp.StatusCode, "failed to fetch authenticated user", err)
		}
		return "", NewGitHubError(0, "failed to fetch authenticated user", err)
	}
	return user.GetLogin(), nil
}

// Star stars owner/repo on behalf of the token's owner
func (c *RESTClient) Star(ctx context.Context, token, owner, repo string) error {
	resp, err := c.client(token).Activity.Star(ctx, owner, repo)
	if err != nil {
		if resp != nil {
			return NewGitHubError(resp.StatusCode, fmt.Sprintf("failed to star %s/%s", owner, repo), err)
		}
		return NewGitHubError(0, fmt.Sprintf("failed to star %s/%s", owner, repo), err)
	}

	c.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
	}).Debug("Starred repository")
	return nil
}
