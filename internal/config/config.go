package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string
	DBConnectionString string
	LogLevel           string
	AllowedOrigins     []string
	OAuth              OAuthConfig
	GitHub             *GitHubConfig
	Worker             *WorkerConfig
}

// OAuthConfig holds the GitHub OAuth application credentials
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)

	return FromViper(v)
}

// SetDefaults registers defaults for every key read by FromViper
func SetDefaults(v *viper.Viper) {
	gh := DefaultGitHubConfig()
	worker := DefaultWorkerConfig()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("OAUTH_CALLBACK_URL", "http://localhost:8080/auth/callback")
	v.SetDefault("OAUTH_SCOPES", "repo,read:org")

	v.SetDefault("GITHUB_GRAPHQL_URL", gh.GraphQLURL)
	v.SetDefault("GITHUB_REST_URL", gh.RESTBaseURL)
	v.SetDefault("GITHUB_REQUEST_TIMEOUT", gh.RequestTimeout)
	v.SetDefault("GITHUB_MAX_ATTEMPTS", gh.RateLimit.MaxRetries)
	v.SetDefault("GITHUB_INITIAL_BACKOFF", gh.RateLimit.InitialBackoff)
	v.SetDefault("GITHUB_MAX_BACKOFF", gh.RateLimit.MaxBackoff)
	v.SetDefault("GITHUB_BACKOFF_MULTIPLIER", gh.RateLimit.RetryMultiplier)
	v.SetDefault("REPO_PAGE_SIZE", gh.InitialPageSize)
	v.SetDefault("STAR_REPOSITORY", "")

	v.SetDefault("WORKER_COUNT", worker.Workers)
	v.SetDefault("WORKER_QUEUE_SIZE", worker.QueueSize)
	v.SetDefault("JOB_TIMEOUT", worker.JobTimeout)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:               v.GetString("PORT"),
		DBConnectionString: v.GetString("DB_CONNECTION_STRING"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		AllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		OAuth: OAuthConfig{
			ClientID:     v.GetString("GITHUB_CLIENT_ID"),
			ClientSecret: v.GetString("GITHUB_CLIENT_SECRET"),
			CallbackURL:  v.GetString("OAUTH_CALLBACK_URL"),
			Scopes:       splitList(v.GetString("OAUTH_SCOPES")),
		},
		GitHub: &GitHubConfig{
			GraphQLURL:      v.GetString("GITHUB_GRAPHQL_URL"),
			RESTBaseURL:     v.GetString("GITHUB_REST_URL"),
			RequestTimeout:  v.GetDuration("GITHUB_REQUEST_TIMEOUT"),
			InitialPageSize: v.GetInt("REPO_PAGE_SIZE"),
			StarRepository:  v.GetString("STAR_REPOSITORY"),
			RateLimit: RateLimitConfig{
				MaxRetries:      v.GetInt("GITHUB_MAX_ATTEMPTS"),
				InitialBackoff:  v.GetDuration("GITHUB_INITIAL_BACKOFF"),
				MaxBackoff:      v.GetDuration("GITHUB_MAX_BACKOFF"),
				RetryMultiplier: v.GetFloat64("GITHUB_BACKOFF_MULTIPLIER"),
			},
		},
		Worker: &WorkerConfig{
			Workers:    v.GetInt("WORKER_COUNT"),
			QueueSize:  v.GetInt("WORKER_QUEUE_SIZE"),
			JobTimeout: v.GetDuration("JOB_TIMEOUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.GitHub.InitialPageSize < 1 {
		return fmt.Errorf("REPO_PAGE_SIZE must be at least 1, got %d", c.GitHub.InitialPageSize)
	}
	if c.GitHub.RateLimit.MaxRetries < 1 {
		return fmt.Errorf("GITHUB_MAX_ATTEMPTS must be at least 1, got %d", c.GitHub.RateLimit.MaxRetries)
	}
	if c.Worker.Workers < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.Worker.Workers)
	}
	if c.Worker.QueueSize < 1 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be at least 1, got %d", c.Worker.QueueSize)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
