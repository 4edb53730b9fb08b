package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"familyhub/internal/models"
	"familyhub/internal/repository"
)

// UserService provisions users from identity claims and builds request sessions
type UserService struct {
	users    *repository.UserRepository
	families *repository.FamilyRepository
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users *repository.UserRepository, families *repository.FamilyRepository) *UserService {
	return &UserService{users: users, families: families, now: time.Now}
}

// EnsureUser returns the user for an identity-provider subject, creating it on
// first sight and refreshing email and display name when they change.
func (s *UserService) EnsureUser(ctx context.Context, id, email, displayName string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidf("user id is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	inserted, err := s.users.CreateUser(ctx, &models.User{
		ID:                  id,
		Email:               email,
		DisplayName:         displayName,
		DefaultPostPrivacy:  models.PrivacyPrivate,
		DefaultBoardPrivacy: models.PrivacyPrivate,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user", id)
	}

	if !inserted && ((email != "" && email != user.Email) || (displayName != "" && displayName != user.DisplayName)) {
		if email == "" {
			email = user.Email
		}
		if displayName == "" {
			displayName = user.DisplayName
		}
		if err := s.users.UpdateProfile(ctx, id, email, displayName); err != nil {
			return nil, err
		}
		user.Email, user.DisplayName = email, displayName
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", id)
	}
	return user, nil
}

// BuildSession materializes the viewer context for user. Related families
// come from the live list of the user's current family only; a user without
// a family has none.
func (s *UserService) BuildSession(ctx context.Context, user *models.User) (models.Session, error) {
	session := models.Session{
		UserID: user.ID,
		Email:  user.Email,
	}
	if !user.HasFamily() {
		return session, nil
	}

	session.FamilyID = *user.FamilyID
	family, err := s.families.GetFamilyByID(ctx, session.FamilyID)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session family: %w", err)
	}
	if family == nil {
		return session, nil
	}

	session.RelatedFamilyIDs = slices.Clone(family.RelatedFamilyIDs)
	session.Silenced = family.IsSilenced(user.ID)
	return session, nil
}

// SessionFor loads a user and builds its session
func (s *UserService) SessionFor(ctx context.Context, userID string) (models.Session, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.Session{}, err
	}
	return s.BuildSession(ctx, user)
}

// UpdateOnlineStatus records presence for the session user
func (s *UserService) UpdateOnlineStatus(ctx context.Context, session models.Session, online bool) error {
	return s.users.UpdateOnlineStatus(ctx, session.UserID, online, s.now())
}

// UpdatePreferences sets the default privacy for new posts and boards. An
// empty value keeps the current preference.
func (s *UserService) UpdatePreferences(ctx context.Context, session models.Session, post, board string) (*models.User, error) {
	user, err := s.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	postPrivacy, boardPrivacy := user.DefaultPostPrivacy, user.DefaultBoardPrivacy
	if post != "" {
		if postPrivacy, err = models.ParsePrivacy(post); err != nil {
			return nil, invalidf("%v", err)
		}
	}
	if board != "" {
		if boardPrivacy, err = models.ParsePrivacy(board); err != nil {
			return nil, invalidf("%v", err)
		}
	}

	if err := s.users.UpdatePreferences(ctx, user.ID, postPrivacy, boardPrivacy); err != nil {
		return nil, err
	}
	user.DefaultPostPrivacy, user.DefaultBoardPrivacy = postPrivacy, boardPrivacy
	return user, nil
}
