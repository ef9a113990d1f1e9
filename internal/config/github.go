package config

import "time"

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	GraphQLURL      string
	RESTBaseURL     string
	RequestTimeout  time.Duration
	InitialPageSize int
	StarRepository  string
	RateLimit       RateLimitConfig
}

// RateLimitConfig holds transport retry configuration.
// MaxRetries counts total attempts, not retries after the first.
type RateLimitConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	RetryMultiplier float64
}

// DefaultGitHubConfig returns the default GitHub configuration
func DefaultGitHubConfig() *GitHubConfig {
	return &GitHubConfig{
		GraphQLURL:      "https://api.github.com/graphql",
		RESTBaseURL:     "https://api.github.com/",
		RequestTimeout:  10 * time.Second,
		InitialPageSize: 20,
		RateLimit: RateLimitConfig{
			MaxRetries:      3,
			InitialBackoff:  4 * time.Second,
			MaxBackoff:      10 * time.Second,
			RetryMultiplier: 2.0,
		},
	}
}
