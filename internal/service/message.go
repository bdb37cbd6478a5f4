package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

// MessageService stores direct messages and reads conversation history.
type MessageService struct {
	messages repository.MessageRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewMessageService(messages repository.MessageRepository, logger *slog.Logger) *MessageService {
	return &MessageService{messages: messages, logger: logger, now: time.Now}
}

// Send persists a message from senderID to receiverID. Status is always
// "delivered": the relay pushes it to every open connection of both users
// right after this returns.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string) (*model.Message, error) {
	if receiverID == "" || strings.TrimSpace(content) == "" {
		return nil, apperror.ValidationFailed("content", "receiverId and content are required")
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  s.now().UTC(),
		Status:     model.MessageDelivered,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("service/message: storing message: %w", err)
	}
	return msg, nil
}

// History returns the caller's conversation with receiverID, oldest first.
func (s *MessageService) History(ctx context.Context, p *model.Principal, receiverID string) ([]model.Message, error) {
	if receiverID == "" {
		return nil, apperror.ValidationFailed("receiverId", "receiverId is required")
	}

	msgs, err := s.messages.Conversation(ctx, p.ID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("service/message: loading conversation: %w", err)
	}
	return msgs, nil
}
