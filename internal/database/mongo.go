package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classchat/internal/models"
	"classchat/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB stores messages in the document layout the web client was built
// against: one document per message with an embedded readBy array.
type MongoDB struct {
	client   *mongo.Client
	users    *mongo.Collection
	messages *mongo.Collection
}

func NewMongoDB(ctx context.Context, uri, database string) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	logger.Info("Connected to MongoDB database %s", database)
	return &MongoDB{
		client:   client,
		users:    db.Collection("users"),
		messages: db.Collection("messages"),
	}, nil
}

// EnsureIndexes creates the room history index if it does not exist yet.
func (db *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := db.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatRoom", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}
	return nil
}

func (db *MongoDB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

// userIDFilter matches accounts keyed either by ObjectID or by plain string.
func userIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func (db *MongoDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var doc struct {
		ID         interface{} `bson:"_id"`
		Username   string      `bson:"username"`
		FullName   string      `bson:"fullName"`
		Role       models.Role `bson:"role"`
		ClassLevel string      `bson:"classLevel"`
	}
	err := db.users.FindOne(ctx, userIDFilter(id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &models.User{
		ID:         id,
		Username:   doc.Username,
		FullName:   doc.FullName,
		Role:       doc.Role,
		ClassLevel: doc.ClassLevel,
	}, nil
}

func (db *MongoDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	defer observe(time.Now())

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Recipients == nil {
		msg.Recipients = []string{}
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []models.ReadReceipt{}
	}
	if _, err := db.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (db *MongoDB) MarkRead(ctx context.Context, messageID, userID string, readAt time.Time) error {
	defer observe(time.Now())

	filter := bson.M{"_id": messageID, "readBy.user": bson.M{"$ne": userID}}
	update := bson.M{"$push": bson.M{"readBy": models.ReadReceipt{UserID: userID, ReadAt: readAt}}}

	res, err := db.messages.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the reader already has a receipt or the message
	// does not exist.
	n, err := db.messages.CountDocuments(ctx, bson.M{"_id": messageID})
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (db *MongoDB) LoadRecentMessages(ctx context.Context, room string, limit int) ([]*models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := db.messages.Find(ctx, bson.M{"chatRoom": room}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var messages []*models.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
