package database

import (
	"context"
	"sync"
	"time"

	"classchat/internal/models"
)

// MemoryDB keeps users and messages in process memory. It backs
// STORE_DRIVER=memory for local runs and the test suites.
type MemoryDB struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	messages map[string]*models.Message
	order    []string
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:    make(map[string]*models.User),
		messages: make(map[string]*models.Message),
	}
}

// PutUser seeds or replaces an account.
func (db *MemoryDB) PutUser(u *models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *u
	db.users[u.ID] = &cp
}

func (db *MemoryDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (db *MemoryDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.messages[msg.ID] = cloneMessage(msg)
	db.order = append(db.order, msg.ID)
	return nil
}

func (db *MemoryDB) MarkRead(ctx context.Context, messageID, userID string, readAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	msg, ok := db.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	if msg.HasReadReceipt(userID) {
		return nil
	}
	msg.ReadBy = append(msg.ReadBy, models.ReadReceipt{UserID: userID, ReadAt: readAt})
	return nil
}

func (db *MemoryDB) LoadRecentMessages(ctx context.Context, room string, limit int) ([]*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*models.Message
	for i := len(db.order) - 1; i >= 0 && len(out) < limit; i-- {
		if msg := db.messages[db.order[i]]; msg.ChatRoom == room {
			out = append(out, cloneMessage(msg))
		}
	}

	// Reverse to show oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (db *MemoryDB) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (db *MemoryDB) Close() error {
	return nil
}

func cloneMessage(m *models.Message) *models.Message {
	cp := *m
	cp.Recipients = append([]string(nil), m.Recipients...)
	cp.ReadBy = append([]models.ReadReceipt(nil), m.ReadBy...)
	return &cp
}
