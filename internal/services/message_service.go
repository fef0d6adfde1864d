package services

import (
	"context"
	"fmt"
	"time"

	"classchat/internal/database"
	"classchat/internal/metrics"
	"classchat/internal/models"

	"github.com/oklog/ulid/v2"
)

type MessageService struct {
	repo    database.MessageRepository
	timeout time.Duration
}

// NewMessageService bounds every store call by timeout.
func NewMessageService(repo database.MessageRepository, timeout time.Duration) *MessageService {
	return &MessageService{repo: repo, timeout: timeout}
}

// Send builds a message from req and writes it to the store. The returned
// message carries its final id and timestamp.
func (s *MessageService) Send(ctx context.Context, sender *models.User, req models.SendMessage) (*models.Message, error) {
	msgType := req.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	recipients := dedupe(req.Recipients)
	msg := &models.Message{
		ID:             ulid.Make().String(),
		Sender:         models.SenderFromUser(sender),
		Content:        req.Content,
		ChatRoom:       req.ChatRoom,
		MessageType:    msgType,
		IsGroupMessage: len(recipients) == 0,
		Recipients:     recipients,
		ReadBy:         []models.ReadReceipt{},
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		metrics.PersistenceFailures.WithLabelValues("send").Inc()
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	kind := "group"
	if !msg.IsGroupMessage {
		kind = "direct"
	}
	metrics.MessagesPersisted.WithLabelValues(kind).Inc()
	return msg, nil
}

// MarkRead records a read receipt for reader. Repeating it is harmless.
func (s *MessageService) MarkRead(ctx context.Context, messageID string, reader *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.MarkRead(ctx, messageID, reader.ID, time.Now().UTC().Truncate(time.Millisecond)); err != nil {
		metrics.PersistenceFailures.WithLabelValues("mark_read").Inc()
		return fmt.Errorf("failed to mark message %s read: %w", messageID, err)
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
