package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/Kamar-Folarin/github-yearly/internal/config"
)

// StateCookie holds the OAuth state between login and callback
const StateCookie = "oauth_state"

var ErrEmptyToken = errors.New("token endpoint returned an empty access token")

// GitHubProvider runs the GitHub authorization code flow
type GitHubProvider struct {
	config *oauth2.Config
}

// ProviderOption configures a GitHubProvider
type ProviderOption func(*oauth2.Config)

// WithEndpoint replaces GitHub's OAuth endpoints
func WithEndpoint(endpoint oauth2.Endpoint) ProviderOption {
	return func(c *oauth2.Config) {
		c.Endpoint = endpoint
	}
}

// NewGitHubProvider creates a provider from the OAuth application settings
func NewGitHubProvider(cfg config.OAuthConfig, opts ...ProviderOption) *GitHubProvider {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.CallbackURL,
		Scopes:       cfg.Scopes,
		Endpoint:     github.Endpoint,
	}
	for _, opt := range opts {
		opt(oauthCfg)
	}
	return &GitHubProvider{config: oauthCfg}
}

// NewState returns a fresh state value for one login attempt
func NewState() string {
	return xid.New().String()
}

// AuthURL returns the GitHub authorization page URL for state
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if token.AccessToken == "" {
		return "", ErrEmptyToken
	}
	return token.AccessToken, nil
}
