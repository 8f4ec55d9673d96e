package service

import (
	"context"
	"strings"

	"matehub/internal/models"
	"matehub/internal/repository"
)

// UserService provides user profile business logic.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UpdateProfileInput carries the updatable profile fields. Nil fields are
// left unchanged.
type UpdateProfileInput struct {
	Bio     *string `json:"bio"`
	Avatar  *string `json:"avatar"`
	SteamID *string `json:"steam_id"`
}

// UpdateProfile applies profile changes for the user.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Bio != nil {
		bio := strings.TrimSpace(*input.Bio)
		if len(bio) > 500 {
			return nil, models.NewValidationError("Bio exceeds 500 characters")
		}
		user.Bio = bio
	}
	if input.Avatar != nil {
		user.Avatar = strings.TrimSpace(*input.Avatar)
	}
	if input.SteamID != nil {
		trimmed := strings.TrimSpace(*input.SteamID)
		if trimmed == "" {
			user.SteamID = nil
		} else {
			user.SteamID = &trimmed
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns a page of users, optionally filtered by a username query.
func (s *UserService) ListUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query != "" {
		return s.userRepo.Search(ctx, query, limit, offset)
	}
	return s.userRepo.List(ctx, limit, offset)
}
