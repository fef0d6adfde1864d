package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classchat/internal/metrics"
	"classchat/internal/models"
	"classchat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgForeignKeyViolation = "23503"

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	username    TEXT NOT NULL UNIQUE,
	full_name   TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL DEFAULT 'student',
	class_level TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	id               TEXT PRIMARY KEY,
	sender_id        TEXT NOT NULL,
	sender_username  TEXT NOT NULL,
	sender_full_name TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL,
	chat_room        TEXT NOT NULL DEFAULT '',
	message_type     TEXT NOT NULL DEFAULT 'text',
	is_group_message BOOLEAN NOT NULL,
	recipients       TEXT[] NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS messages_room_created_idx ON messages (chat_room, created_at DESC);

CREATE TABLE IF NOT EXISTS message_reads (
	message_id TEXT NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	read_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (message_id, user_id)
);`

// Migrate creates the tables this service reads and writes if they are missing.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, username, full_name, role, COALESCE(class_level, '') FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.FullName, &user.Role, &user.ClassLevel,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// Message Repository Implementation
func (db *PostgresDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	defer observe(time.Now())

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	recipients := msg.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	query := `
		INSERT INTO messages (id, sender_id, sender_username, sender_full_name, content,
			chat_room, message_type, is_group_message, recipients, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := db.pool.Exec(ctx, query,
		msg.ID, msg.Sender.ID, msg.Sender.Username, msg.Sender.FullName, msg.Content,
		msg.ChatRoom, msg.MessageType, msg.IsGroupMessage, recipients, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (db *PostgresDB) MarkRead(ctx context.Context, messageID, userID string, readAt time.Time) error {
	defer observe(time.Now())

	query := `
		INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING`

	_, err := db.pool.Exec(ctx, query, messageID, userID, readAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

func (db *PostgresDB) LoadRecentMessages(ctx context.Context, room string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, sender_id, sender_username, sender_full_name, content, chat_room,
			message_type, is_group_message, recipients, created_at
		FROM messages
		WHERE chat_room = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	byID := make(map[string]*models.Message)
	var ids []string
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(
			&msg.ID, &msg.Sender.ID, &msg.Sender.Username, &msg.Sender.FullName, &msg.Content, &msg.ChatRoom,
			&msg.MessageType, &msg.IsGroupMessage, &msg.Recipients, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
		byID[msg.ID] = msg
		ids = append(ids, msg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if err := db.loadReceipts(ctx, ids, byID); err != nil {
			return nil, err
		}
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (db *PostgresDB) loadReceipts(ctx context.Context, ids []string, byID map[string]*models.Message) error {
	rows, err := db.pool.Query(ctx,
		`SELECT message_id, user_id, read_at FROM message_reads WHERE message_id = ANY($1) ORDER BY read_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var receipt models.ReadReceipt
		if err := rows.Scan(&messageID, &receipt.UserID, &receipt.ReadAt); err != nil {
			return err
		}
		if msg, ok := byID[messageID]; ok {
			msg.ReadBy = append(msg.ReadBy, receipt)
		}
	}
	return rows.Err()
}

func observe(start time.Time) {
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
}
