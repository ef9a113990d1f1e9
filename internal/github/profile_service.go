package github

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

// ProfileService implements ProfileFetcher
type ProfileService struct {
	transport Transport
	logger    *logrus.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(transport Transport, logger *logrus.Logger) *ProfileService {
	return &ProfileService{
		transport: transport,
		logger:    logger,
	}
}

// FetchProfile fetches the identity fields of username.
// Any failure, including a missing id, is returned as *ProfileError.
func (s *ProfileService) FetchProfile(ctx context.Context, username, token string) (*models.UserProfile, error) {
	raw, err := s.transport.Execute(ctx, profileQuery, map[string]interface{}{
		"username": username,
	}, token)
	if err != nil {
		return nil, &ProfileError{Username: username, Cause: err}
	}

	var data profileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ProfileError{Username: username, Cause: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if data.User == nil {
		return nil, &ProfileError{Username: username, Cause: ErrUserNotFound}
	}
	if data.User.ID == "" {
		return nil, &ProfileError{Username: username, Cause: ErrMissingUserID}
	}

	s.logger.WithFields(logrus.Fields{
		"username": username,
		"user_id":  data.User.ID,
	}).Debug("Fetched user profile")

	return &models.UserProfile{
		ID:        data.User.ID,
		Name:      data.User.Name,
		AvatarURL: data.User.AvatarURL,
		Followers: data.User.Followers.TotalCount,
		Following: data.User.Following.TotalCount,
		CreatedAt: data.User.CreatedAt,
	}, nil
}
