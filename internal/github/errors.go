package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingUserID is returned when the profile query yields no node id
	ErrMissingUserID = errors.New("user id missing from profile response")
	// ErrUserNotFound is returned when the API resolves the login to no user
	ErrUserNotFound = errors.New("user not found")
	// ErrMalformedResponse marks a response whose shape does not match the query
	ErrMalformedResponse = errors.New("malformed GraphQL response")
	// ErrRepositoriesUnobtainable is returned once the page size cannot be reduced further
	ErrRepositoriesUnobtainable = errors.New("repository data unobtainable at any page size")
	ErrInvalidPageSize          = errors.New("page size must be at least 1")
)

// GitHubError is an HTTP-level failure reported by the GitHub API
type GitHubError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GitHubError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GitHub API error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *GitHubError) Unwrap() error {
	return e.Err
}

// NewGitHubError creates a new GitHubError with the given status code and message
func NewGitHubError(statusCode int, message string, err error) error {
	return &GitHubError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// GraphQLError is one entry of the "errors" array of a GraphQL response
type GraphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// GraphQLErrors is returned when a response carries errors and no data
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, gqlErr := range e {
		if gqlErr.Type != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", gqlErr.Type, gqlErr.Message))
			continue
		}
		msgs = append(msgs, gqlErr.Message)
	}
	return "GraphQL errors: " + strings.Join(msgs, "; ")
}

// HasType reports whether any entry carries the given error type
func (e GraphQLErrors) HasType(errType string) bool {
	for _, gqlErr := range e {
		if gqlErr.Type == errType {
			return true
		}
	}
	return false
}

// TransportError is returned after every attempt of a GraphQL call failed.
// Cause is the failure of the last attempt.
type TransportError struct {
	Attempts int
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GraphQL request failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ProfileError means the user's identity could not be resolved
type ProfileError struct {
	Username string
	Cause    error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("failed to fetch profile for %s: %v", e.Username, e.Cause)
}

func (e *ProfileError) Unwrap() error {
	return e.Cause
}

// RepoFetchError means repository or commit pagination failed at PageSize.
// Repository is set when the failure happened while paging one repository's commits.
type RepoFetchError struct {
	PageSize   int
	Repository string
	Cause      error
}

func (e *RepoFetchError) Error() string {
	if e.Repository != "" {
		return fmt.Sprintf("failed to fetch commits of %s (page size %d): %v", e.Repository, e.PageSize, e.Cause)
	}
	return fmt.Sprintf("failed to fetch repositories (page size %d): %v", e.PageSize, e.Cause)
}

func (e *RepoFetchError) Unwrap() error {
	return e.Cause
}

// ContributionError means the contribution calendar query failed
type ContributionError struct {
	Username string
	Year     int
	Cause    error
}

func (e *ContributionError) Error() string {
	return fmt.Sprintf("failed to fetch %d contributions for %s: %v", e.Year, e.Username, e.Cause)
}

func (e *ContributionError) Unwrap() error {
	return e.Cause
}

// FetchError is the single terminal error of a yearly report fetch
type FetchError struct {
	Username string
	Year     int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("yearly report for %s/%d: %v", e.Username, e.Year, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a failure may succeed with a smaller request shape.
// Authentication, permission and not-found failures are fatal; everything else,
// including unknown failures, is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrMissingUserID) || errors.Is(err, ErrInvalidPageSize) {
		return false
	}

	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		switch ghErr.StatusCode {
		case http.StatusUnauthorized, http.StatusNotFound:
			return false
		}
	}

	var gqlErrs GraphQLErrors
	if errors.As(err, &gqlErrs) {
		if gqlErrs.HasType("NOT_FOUND") || gqlErrs.HasType("FORBIDDEN") {
			return false
		}
	}

	return true
}

// IsNotFound reports whether err means the requested user does not exist
func IsNotFound(err error) bool {
	if errors.Is(err, ErrUserNotFound) {
		return true
	}
	var ghErr *GitHubError
	if errors.As(err, &ghErr) && ghErr.StatusCode == http.StatusNotFound {
		return true
	}
	var gqlErrs GraphQLErrors
	return errors.As(err, &gqlErrs) && gqlErrs.HasType("NOT_FOUND")
}

// IsUnauthorized reports whether err was caused by a rejected token
func IsUnauthorized(err error) bool {
	var ghErr *GitHubError
	return errors.As(err, &ghErr) && ghErr.StatusCode == http.StatusUnauthorized
}
