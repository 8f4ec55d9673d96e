package service

import (
	"context"
	"fmt"

	"matehub/internal/models"
	"matehub/internal/repository"
)

// FollowService provides follower-relationship business logic.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	emitter    NotificationEmitter
}

// NewFollowService returns a new FollowService.
func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository, emitter NotificationEmitter) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		emitter:    emitter,
	}
}

// Follow makes the caller follow the target user. Re-following is a no-op.
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewValidationError("Cannot follow yourself")
	}
	follower, err := s.userRepo.GetByID(ctx, followerID)
	if err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	created, err := s.followRepo.Create(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if created {
		s.emitter.Emit(ctx, followeeID, followerID, models.NotificationTypeNewFollower,
			fmt.Sprintf("%s started following you", follower.Username))
	}
	return nil
}

// Unfollow removes the caller's follow edge to the target user.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewValidationError("Cannot unfollow yourself")
	}
	return s.followRepo.Delete(ctx, followerID, followeeID)
}

// GetFollowers returns the users following the given user.
func (s *FollowService) GetFollowers(ctx context.Context, userID uint) ([]models.User, error) {
	return s.followRepo.ListFollowers(ctx, userID)
}

// GetFollowing returns the users the given user follows.
func (s *FollowService) GetFollowing(ctx context.Context, userID uint) ([]models.User, error) {
	return s.followRepo.ListFollowing(ctx, userID)
}
