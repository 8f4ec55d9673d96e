package server

import (
	"context"
	"encoding/json"
	"log"

	"matehub/internal/models"
	"matehub/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// GetConversations handles GET /api/conversations
func (s *Server) GetConversations(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	conversations, err := s.chatService.ListConversations(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(conversations)
}

// ResolveDirectConversation handles POST /api/conversations/direct/:userId
func (s *Server) ResolveDirectConversation(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	conv, resolveErr := s.chatService.ResolveDirectConversation(ctx, userID, targetUserID)
	if resolveErr != nil {
		return respondServiceError(c, resolveErr)
	}
	return c.JSON(conv)
}

// GetMessages handles GET /api/conversations/:id/messages
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)

	messages, getErr := s.chatService.GetMessages(ctx, userID, conversationID, page.Limit, page.Offset)
	if getErr != nil {
		return respondServiceError(c, getErr)
	}
	return c.JSON(messages)
}

// SendMessage handles POST /api/conversations/:id/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var body struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&body); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, sendErr := s.chatService.SendMessage(ctx, userID, conversationID, body.Content)
	if sendErr != nil {
		return respondServiceError(c, sendErr)
	}

	// Push the new message to the counterpart's channels, best-effort.
	s.publishConversationMessage(conversationID, userID, msg)

	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (s *Server) publishConversationMessage(conversationID, senderID uint, msg interface{}) {
	if s.notifier == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":            "message_received",
		"conversation_id": conversationID,
		"sender_id":       senderID,
		"message":         msg,
	})
	if err != nil {
		log.Printf("failed to marshal message event: %v", err)
		return
	}

	conv, err := s.chatRepo.GetConversation(context.Background(), conversationID)
	if err != nil {
		log.Printf("failed to load conversation %d for message event: %v", conversationID, err)
		return
	}
	for _, participant := range conv.Participants {
		if participant.ID == senderID {
			continue
		}
		if err := s.notifier.PublishUser(context.Background(), participant.ID, string(payload)); err != nil {
			log.Printf("failed to publish message event to %s: %v",
				notifications.UserChannel(participant.ID), err)
		}
	}
}
