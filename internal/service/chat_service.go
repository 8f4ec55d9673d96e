package service

import (
	"context"
	"strings"

	"matehub/internal/models"
	"matehub/internal/repository"
)

// ChatService provides direct-conversation and messaging business logic.
type ChatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
}

// NewChatService returns a new ChatService.
func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
	}
}

// ResolveDirectConversation returns the single direct conversation for the
// pair, creating it if needed. Idempotent: any number of sequential or
// concurrent calls for a pair converge on one conversation.
func (s *ChatService) ResolveDirectConversation(ctx context.Context, myID, otherID uint) (*models.Conversation, error) {
	if myID == otherID {
		return nil, models.NewValidationError("Cannot start a conversation with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return nil, err
	}

	key := models.DirectKey(myID, otherID)
	existing, err := s.chatRepo.GetDirectByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	conv := &models.Conversation{
		DirectKey: &key,
		CreatedBy: myID,
	}
	if err := s.chatRepo.CreateDirect(ctx, conv, []uint{myID, otherID}); err != nil {
		// The unique key rejected our insert: a concurrent call won the
		// race, so return the winner's conversation.
		winner, readErr := s.chatRepo.GetDirectByKey(ctx, key)
		if readErr == nil && winner != nil {
			return winner, nil
		}
		return nil, models.NewInternalError(err)
	}

	return s.chatRepo.GetConversation(ctx, conv.ID)
}

// ListConversations returns the caller's conversations.
func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	return s.chatRepo.ListForUser(ctx, userID)
}

// GetMessages returns a page of messages if the caller participates in the
// conversation.
func (s *ChatService) GetMessages(ctx context.Context, userID, conversationID uint, limit, offset int) ([]models.Message, error) {
	ok, err := s.chatRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}

	messages, err := s.chatRepo.GetMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}

	// Reading a page marks the conversation read for the caller.
	_ = s.chatRepo.UpdateLastRead(ctx, conversationID, userID)

	return messages, nil
}

// SendMessage appends a message to a conversation the caller participates in.
func (s *ChatService) SendMessage(ctx context.Context, userID, conversationID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Message content cannot be empty")
	}
	if len(content) > 4000 {
		return nil, models.NewValidationError("Message content exceeds 4000 characters")
	}

	ok, err := s.chatRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
