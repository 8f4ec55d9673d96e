package server

import (
	"fmt"
	"time"

	"matehub/internal/cache"
	"matehub/internal/models"
	"matehub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetUser(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var input service.UpdateProfileInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(ctx, userID, input)
	if err != nil {
		return respondServiceError(c, err)
	}

	// Profile changed; drop the cached summary.
	if s.redis != nil {
		s.redis.Del(ctx, userCacheKey(userID))
	}

	return c.JSON(user)
}

// GetUsers handles GET /api/users
func (s *Server) GetUsers(c *fiber.Ctx) error {
	ctx := c.Context()
	page := parsePagination(c, 20)
	query := c.Query("q")

	users, err := s.userService.ListUsers(ctx, query, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(toSummaries(users))
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, getErr := s.userService.GetUser(ctx, id)
	if getErr != nil {
		return respondServiceError(c, getErr)
	}
	return c.JSON(user.Summary())
}

// GetUserCached handles GET /api/users/:id/cached, serving the user summary
// from redis when possible.
func (s *Server) GetUserCached(c *fiber.Ctx) error {
	ctx := c.Context()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var cached models.UserSummary
	if cache.GetJSON(ctx, s.redis, userCacheKey(id), &cached) {
		c.Set("X-Cache", "HIT")
		return c.JSON(cached)
	}

	user, getErr := s.userService.GetUser(ctx, id)
	if getErr != nil {
		return respondServiceError(c, getErr)
	}

	summary := user.Summary()
	cache.SetJSON(ctx, s.redis, userCacheKey(id), summary, 5*time.Minute)
	c.Set("X-Cache", "MISS")
	return c.JSON(summary)
}

func userCacheKey(id uint) string {
	return fmt.Sprintf("user:summary:%d", id)
}
