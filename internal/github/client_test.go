package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(
		testLogger(),
		WithEndpoint(server.URL),
		WithRetryConfig(3, time.Millisecond, 5*time.Millisecond),
	)
	return client, server
}

func TestClient_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("successful request", func(t *testing.T) {
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body graphQLRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "query { viewer { login } }", body.Query)
			assert.Equal(t, "octocat", body.Variables["username"])

			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "4999")
			w.Header().Set("X-RateLimit-Reset", "1700000000")
			w.Write([]byte(`{"data":{"viewer":{"login":"octocat"}}}`))
		})

		data, err := client.Execute(ctx, "query { viewer { login } }", map[string]interface{}{"username": "octocat"}, "test-token")
		require.NoError(t, err)
		assert.JSONEq(t, `{"viewer":{"login":"octocat"}}`, string(data))

		rl := client.RateLimit()
		assert.Equal(t, 5000, rl.Limit)
		assert.Equal(t, 4999, rl.Remaining)
		assert.Equal(t, time.Unix(1700000000, 0), rl.ResetTime)
	})

	t.Run("token is applied per call", func(t *testing.T) {
		var seen []string
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Header.Get("Authorization"))
			w.Write([]byte(`{"data":{}}`))
		})

		_, err := client.Execute(ctx, "query", nil, "first")
		require.NoError(t, err)
		_, err = client.Execute(ctx, "query", nil, "second")
		require.NoError(t, err)

		assert.Equal(t, []string{"Bearer first", "Bearer second"}, seen)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int32
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"data":{"ok":true}}`))
		})

		data, err := client.Execute(ctx, "query", nil, "test-token")
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(data))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("exhausted retries", func(t *testing.T) {
		var calls int32
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		})

		data, err := client.Execute(ctx, "query", nil, "test-token")
		assert.Nil(t, data)
		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

		var transportErr *TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, 3, transportErr.Attempts)

		var ghErr *GitHubError
		require.True(t, errors.As(err, &ghErr))
		assert.Equal(t, http.StatusInternalServerError, ghErr.StatusCode)
		assert.Equal(t, "boom", ghErr.Message)
	})

	t.Run("missing data is a failure", func(t *testing.T) {
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message":"nope"}`))
		})

		_, err := client.Execute(ctx, "query", nil, "test-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.True(t, IsRetryable(err))
	})

	t.Run("null data with errors", func(t *testing.T) {
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":null,"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a User"}]}`))
		})

		_, err := client.Execute(ctx, "query", nil, "test-token")
		require.Error(t, err)

		var gqlErrs GraphQLErrors
		require.True(t, errors.As(err, &gqlErrs))
		assert.True(t, gqlErrs.HasType("NOT_FOUND"))
		assert.False(t, IsRetryable(err))
		assert.True(t, IsNotFound(err))
	})

	t.Run("partial errors keep data", func(t *testing.T) {
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"user":{"id":"U1"}},"errors":[{"type":"FORBIDDEN","message":"SAML"}]}`))
		})

		data, err := client.Execute(ctx, "query", nil, "test-token")
		require.NoError(t, err)
		assert.JSONEq(t, `{"user":{"id":"U1"}}`, string(data))
	})

	t.Run("long error body is cut on a rune boundary", func(t *testing.T) {
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("x" + strings.Repeat("é", maxErrorBodyBytes)))
		})

		_, err := client.Execute(ctx, "query", nil, "test-token")
		var ghErr *GitHubError
		require.True(t, errors.As(err, &ghErr))
		assert.True(t, utf8.ValidString(ghErr.Message))
		assert.True(t, strings.HasSuffix(ghErr.Message, "é..."))
	})

	t.Run("unauthorized", func(t *testing.T) {
		client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Bad credentials"}`))
		})

		_, err := client.Execute(ctx, "query", nil, "bad-token")
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
		assert.False(t, IsRetryable(err))
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		var calls int32
		client := NewClient(testLogger(), WithRetryConfig(3, time.Hour, time.Hour))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()
		client.endpoint = server.URL

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := client.Execute(cctx, "query", nil, "test-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestClient_BackoffIsCapped(t *testing.T) {
	var stamps []time.Time
	client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		w.WriteHeader(http.StatusBadGateway)
	})
	client.maxRetries = 4
	client.initialBackoff = 20 * time.Millisecond
	client.maxBackoff = 30 * time.Millisecond

	_, err := client.Execute(context.Background(), "query", nil, "test-token")
	require.Error(t, err)
	require.Len(t, stamps, 4)

	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 30*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[3].Sub(stamps[2]), 30*time.Millisecond)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &TransportError{Attempts: 3, Cause: NewGitHubError(502, "bad gateway", nil)}, true},
		{"rate limited", &TransportError{Attempts: 3, Cause: NewGitHubError(403, "rate limit", nil)}, true},
		{"unauthorized", &TransportError{Attempts: 3, Cause: NewGitHubError(401, "bad credentials", nil)}, false},
		{"not found", NewGitHubError(404, "missing", nil), false},
		{"malformed", &RepoFetchError{PageSize: 20, Cause: ErrMalformedResponse}, true},
		{"graphql timeout", GraphQLErrors{{Message: "Something went wrong while executing your query"}}, true},
		{"graphql forbidden", GraphQLErrors{{Type: "FORBIDDEN", Message: "no access"}}, false},
		{"user not found", &RepoFetchError{PageSize: 20, Cause: ErrUserNotFound}, false},
		{"unknown", errors.New("unexpected"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
