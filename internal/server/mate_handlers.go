package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetMates handles GET /api/mates
func (s *Server) GetMates(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	mates, err := s.mateService.ListMates(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(toSummaries(mates))
}

// GetMateRequests handles GET /api/mates/requests
func (s *Server) GetMateRequests(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	requests, err := s.mateService.ListRequests(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// GetMateStatus handles GET /api/mates/status/:userId
func (s *Server) GetMateStatus(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	status, statusErr := s.mateService.GetStatus(ctx, userID, targetUserID)
	if statusErr != nil {
		return respondServiceError(c, statusErr)
	}
	return c.JSON(status)
}

// AdvanceMate handles POST /api/mates/advance/:userId
func (s *Server) AdvanceMate(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	result, advanceErr := s.mateService.Advance(ctx, userID, targetUserID)
	if advanceErr != nil {
		return respondServiceError(c, advanceErr)
	}

	if result.Created {
		return c.Status(fiber.StatusCreated).JSON(result.Status)
	}
	return c.JSON(result.Status)
}
