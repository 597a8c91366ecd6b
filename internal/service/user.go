package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/auth"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

const MaxDisplayNameLength = 50

// UserService manages participants and their bearer tokens.
type UserService struct {
	repo     repository.UserRepository
	logger   *slog.Logger
	newToken func() (string, error)
}

func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		logger:   logger,
		newToken: auth.GenerateToken,
	}
}

// List returns every user with their token, for the admin view.
func (s *UserService) List(ctx context.Context) ([]model.UserWithToken, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserWithToken, 0, len(users))
	for _, u := range users {
		out = append(out, withToken(u))
	}
	return out, nil
}

// Get returns one user without their token.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// Create adds a user with a fresh token. Display names are trimmed; two names
// that differ only in case or surrounding spaces are the same user
// (ErrConflict).
func (s *UserService) Create(ctx context.Context, displayName string) (*model.UserWithToken, error) {
	displayName, err := validateDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user := &model.User{DisplayName: displayName, AuthToken: &token}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", slog.Int64("user_id", user.ID), slog.String("name", user.Name))
	out := withToken(*user)
	return &out, nil
}

// Register is self-service sign-up. It follows the same rules as Create.
func (s *UserService) Register(ctx context.Context, displayName string) (*model.UserWithToken, error) {
	return s.Create(ctx, displayName)
}

// Delete removes a user together with their predictions and stats.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("user_id", id))
	return nil
}

// RegenerateToken replaces a user's token; the old one stops working at once.
func (s *UserService) RegenerateToken(ctx context.Context, id int64) (*model.UserWithToken, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("regenerating token: %w", err)
	}
	if err := s.repo.SetUserToken(ctx, id, token); err != nil {
		return nil, err
	}

	user.AuthToken = &token
	s.logger.Info("user token regenerated", slog.Int64("user_id", id))
	out := withToken(*user)
	return &out, nil
}

// BackfillTokens gives a token to every user that has none and returns the
// users it changed.
func (s *UserService) BackfillTokens(ctx context.Context) ([]model.UserWithToken, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	updated := make([]model.UserWithToken, 0)
	for _, u := range users {
		if u.AuthToken != nil && *u.AuthToken != "" {
			continue
		}
		token, err := s.newToken()
		if err != nil {
			return updated, fmt.Errorf("backfilling tokens: %w", err)
		}
		if err := s.repo.SetUserToken(ctx, u.ID, token); err != nil {
			return updated, err
		}
		u.AuthToken = &token
		updated = append(updated, withToken(u))
	}

	s.logger.Info("token backfill complete", slog.Int("updated", len(updated)))
	return updated, nil
}

func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("displayName", "display name is required")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be %d characters or fewer", MaxDisplayNameLength))
	}
	return name, nil
}

func withToken(u model.User) model.UserWithToken {
	return model.UserWithToken{User: u, Token: u.AuthToken}
}
