package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRepoSlug splits "owner/name" or a GitHub repository URL into owner and name.
func ParseRepoSlug(slug string) (owner, name string, err error) {
	path := strings.TrimSpace(slug)
	if strings.Contains(path, "://") {
		u, err := url.Parse(path)
		if err != nil {
			return "", "", err
		}
		path = u.Path
	}

	parts := strings.Split(strings.Trim(strings.TrimSuffix(path, ".git"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub repository reference: %q", slug)
	}

	return parts[0], parts[1], nil
}
