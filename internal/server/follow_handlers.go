package server

import (
	"matehub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FollowUser handles POST /api/follows/:userId
func (s *Server) FollowUser(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if followErr := s.followService.Follow(ctx, userID, targetUserID); followErr != nil {
		return respondServiceError(c, followErr)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// UnfollowUser handles DELETE /api/follows/:userId
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if unfollowErr := s.followService.Unfollow(ctx, userID, targetUserID); unfollowErr != nil {
		return respondServiceError(c, unfollowErr)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFollowers handles GET /api/follows/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	users, err := s.followService.GetFollowers(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toSummaries(users))
}

// GetFollowing handles GET /api/follows/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	users, err := s.followService.GetFollowing(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toSummaries(users))
}

func toSummaries(users []models.User) []models.UserSummary {
	summaries := make([]models.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries
}
