package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"classchat/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMessage(room, content string) *models.Message {
	return &models.Message{
		ID:             ulid.Make().String(),
		Sender:         models.Sender{ID: "u-alice", Username: "alice", FullName: "Alice"},
		Content:        content,
		ChatRoom:       room,
		MessageType:    models.MessageTypeText,
		IsGroupMessage: true,
	}
}

// exerciseMessageRepository runs the behaviour every backend must share.
func exerciseMessageRepository(t *testing.T, repo MessageRepository) {
	ctx := context.Background()
	room := "room_" + ulid.Make().String()

	t.Run("saved message is visible to history", func(t *testing.T) {
		msg := newTestMessage(room, "hello")
		require.NoError(t, repo.SaveMessage(ctx, msg))
		assert.False(t, msg.CreatedAt.IsZero())

		history, err := repo.LoadRecentMessages(ctx, room, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, msg.ID, history[0].ID)
		assert.Equal(t, "hello", history[0].Content)
		assert.Equal(t, "alice", history[0].Sender.Username)
	})

	t.Run("history is oldest first and limited", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i := 1; i <= 3; i++ {
			msg := newTestMessage(room, fmt.Sprintf("msg-%d", i))
			msg.CreatedAt = base.Add(time.Duration(i) * time.Second)
			require.NoError(t, repo.SaveMessage(ctx, msg))
		}

		history, err := repo.LoadRecentMessages(ctx, room, 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "msg-2", history[0].Content)
		assert.Equal(t, "msg-3", history[1].Content)
	})

	t.Run("mark read keeps one receipt per reader", func(t *testing.T) {
		readRoom := room + "_reads"
		msg := newTestMessage(readRoom, "read me")
		require.NoError(t, repo.SaveMessage(ctx, msg))

		now := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.MarkRead(ctx, msg.ID, "u-bob", now))
		require.NoError(t, repo.MarkRead(ctx, msg.ID, "u-bob", now.Add(time.Minute)))
		require.NoError(t, repo.MarkRead(ctx, msg.ID, "u-carol", now))

		history, err := repo.LoadRecentMessages(ctx, readRoom, 1)
		require.NoError(t, err)
		require.Len(t, history, 1)

		readers := map[string]int{}
		for _, r := range history[0].ReadBy {
			readers[r.UserID]++
		}
		assert.Equal(t, map[string]int{"u-bob": 1, "u-carol": 1}, readers)
	})

	t.Run("mark read on unknown message", func(t *testing.T) {
		err := repo.MarkRead(ctx, ulid.Make().String(), "u-bob", time.Now())
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}

func TestMemoryDB(t *testing.T) {
	db := NewMemoryDB()
	exerciseMessageRepository(t, db)

	db.PutUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleStudent, ClassLevel: "SSC"})
	u, err := db.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = db.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryDBConcurrentReceipts(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	msg := newTestMessage("r", "race")
	require.NoError(t, db.SaveMessage(ctx, msg))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = db.MarkRead(ctx, msg.ID, "u-bob", time.Now())
		}()
	}
	wg.Wait()

	history, err := db.LoadRecentMessages(ctx, "r", 1)
	require.NoError(t, err)
	assert.Len(t, history[0].ReadBy, 1)
}

func TestMemoryDBHonoursContext(t *testing.T) {
	db := NewMemoryDB()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.SaveMessage(ctx, newTestMessage("r", "late"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostgresDB(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := NewPostgresDB(ctx, url)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	exerciseMessageRepository(t, db)

	id := ulid.Make().String()
	_, err = db.pool.Exec(ctx,
		`INSERT INTO users (id, username, full_name, role, class_level) VALUES ($1, $2, 'Test User', 'teacher', NULL)`,
		id, "user_"+id)
	require.NoError(t, err)

	u, err := db.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, u.Role)
	assert.Empty(t, u.ClassLevel)

	_, err = db.GetUserByID(ctx, "missing-"+id)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMongoDB(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}
	ctx := context.Background()

	db, err := NewMongoDB(ctx, uri, "classchat_test")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureIndexes(ctx))

	exerciseMessageRepository(t, db)

	id := ulid.Make().String()
	_, err = db.users.InsertOne(ctx, map[string]interface{}{
		"_id": id, "username": "dora", "fullName": "Dora", "role": "student", "classLevel": "HSC",
	})
	require.NoError(t, err)

	u, err := db.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "HSC", u.ClassLevel)
}
