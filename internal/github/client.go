package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/Kamar-Folarin/github-yearly/internal/config"
	"github.com/Kamar-Folarin/github-yearly/pkg/utils"
)

const (
	defaultGraphQLURL = "https://api.github.com/graphql"
	maxErrorBodyBytes = 512
)

// RateLimitInfo holds the most recently observed GitHub rate limit headers
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Used      int
	Resource  string
	ResetTime time.Time
}

// Client executes GraphQL queries against the GitHub API.
// It holds no per-user state; the token is supplied on every call.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *logrus.Logger

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64

	mu            sync.Mutex
	rateLimitInfo RateLimitInfo
}

// ClientOption allows configuring the GitHub client
type ClientOption func(*Client)

// WithRetryConfig configures retry behavior. maxRetries is the total number of attempts.
func WithRetryConfig(maxRetries int, initialBackoff, maxBackoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialBackoff = initialBackoff
		c.maxBackoff = maxBackoff
	}
}

// WithBackoffMultiplier sets the factor applied to the backoff after each failed attempt
func WithBackoffMultiplier(multiplier float64) ClientOption {
	return func(c *Client) {
		c.multiplier = multiplier
	}
}

// WithEndpoint overrides the GraphQL endpoint
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTimeout sets the per-attempt request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new GraphQL client with the given options
func NewClient(logger *logrus.Logger, opts ...ClientOption) *Client {
	client := &Client{
		endpoint:       defaultGraphQLURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		logger:         logger,
		maxRetries:     3,
		initialBackoff: 4 * time.Second,
		maxBackoff:     10 * time.Second,
		multiplier:     2,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.maxRetries < 1 {
		client.maxRetries = 1
	}
	if client.multiplier < 1 {
		client.multiplier = 1
	}

	return client
}

// NewClientFromConfig creates a client from the GitHub section of the application config
func NewClientFromConfig(cfg *config.GitHubConfig, logger *logrus.Logger) *Client {
	rl := cfg.RateLimit
	return NewClient(logger,
		WithEndpoint(cfg.GraphQLURL),
		WithTimeout(cfg.RequestTimeout),
		WithRetryConfig(rl.MaxRetries, rl.InitialBackoff, rl.MaxBackoff),
		WithBackoffMultiplier(rl.RetryMultiplier),
	)
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors"`
}

// Execute sends one GraphQL query and returns the raw "data" object.
// Failed attempts are retried with exponential backoff; once every attempt
// has failed a *TransportError carrying the last cause is returned.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}, token string) (json.RawMessage, error) {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	httpClient := c.authorizedClient(token)
	backoff := c.initialBackoff

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts = attempt

		data, err := c.doRequest(ctx, httpClient, payload)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff.String(),
		}).WithError(err).Warn("GraphQL request failed, retrying")

		if err := sleepContext(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff = time.Duration(math.Min(float64(backoff)*c.multiplier, float64(c.maxBackoff)))
	}

	return nil, &TransportError{Attempts: attempts, Cause: lastErr}
}

// RateLimit returns the last observed rate limit information
func (c *Client) RateLimit() RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimitInfo
}

func (c *Client) authorizedClient(token string) *http.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		},
		Timeout: c.httpClient.Timeout,
	}
}

func (c *Client) doRequest(ctx context.Context, httpClient *http.Client, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, NewGitHubError(0, "request failed", err)
	}
	defer resp.Body.Close()

	c.updateRateLimitInfo(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewGitHubError(resp.StatusCode, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewGitHubError(resp.StatusCode, truncate(strings.TrimSpace(string(body)), maxErrorBodyBytes), nil)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
		if len(envelope.Errors) > 0 {
			return nil, envelope.Errors
		}
		return nil, fmt.Errorf("%w: response has no data field", ErrMalformedResponse)
	}

	if len(envelope.Errors) > 0 {
		c.logger.WithError(envelope.Errors).Warn("GraphQL response contains partial errors")
	}

	return envelope.Data, nil
}

// updateRateLimitInfo records the rate limit headers of a response
func (c *Client) updateRateLimitInfo(resp *http.Response) {
	limit := resp.Header.Get("X-RateLimit-Limit")
	if limit == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rateLimitInfo.Limit, _ = strconv.Atoi(limit)
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		c.rateLimitInfo.Remaining, _ = strconv.Atoi(remaining)
	}
	if used := resp.Header.Get("X-RateLimit-Used"); used != "" {
		c.rateLimitInfo.Used, _ = strconv.Atoi(used)
	}
	c.rateLimitInfo.Resource = resp.Header.Get("X-RateLimit-Resource")
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if resetTime, err := strconv.ParseInt(reset, 10, 64); err == nil {
			c.rateLimitInfo.ResetTime = time.Unix(resetTime, 0)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"rate_limit_remaining": c.rateLimitInfo.Remaining,
		"rate_limit_limit":     c.rateLimitInfo.Limit,
		"rate_limit_reset":     c.rateLimitInfo.ResetTime,
	}).Debug("Rate limit info")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return utils.Truncate(s, n) + "..."
}
