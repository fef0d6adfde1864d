package database

import (
	"context"
	"errors"
	"time"

	"classchat/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
)

// UserRepository is the read side of the external account store.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type MessageRepository interface {
	// SaveMessage appends msg to the log. The message must carry its ID; the
	// store sets CreatedAt when it is zero.
	SaveMessage(ctx context.Context, msg *models.Message) error
	// MarkRead records that userID read the message. A second call for the
	// same reader leaves the existing receipt untouched.
	MarkRead(ctx context.Context, messageID, userID string, readAt time.Time) error
	// LoadRecentMessages returns up to limit messages of a room, oldest first.
	LoadRecentMessages(ctx context.Context, room string, limit int) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	MessageRepository
	Ping(ctx context.Context) error
	Close() error
}
