package chat

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Message is one turn of a conversation as stored in the history
// collection. Roles are stored as "human" and "ai" and normalized to
// "user"/"assistant" at the API boundary.
type Message struct {
	UserID    string    `bson:"user_id" json:"-"`
	ChatID    string    `bson:"chat_id" json:"-"`
	ChatName  string    `bson:"chat_name,omitempty" json:"-"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"message" json:"content"`
	Agent     string    `bson:"agent,omitempty" json:"agent,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Summary is the per-chat aggregate returned by the chat list.
type Summary struct {
	ChatID           string     `bson:"_id" json:"chat_id"`
	ChatName         string     `bson:"chat_name,omitempty" json:"chat_name,omitempty"`
	MessageCount     int64      `bson:"message_count" json:"message_count"`
	FirstMessageTime *time.Time `bson:"first_message_time" json:"first_message_time,omitempty"`
	LastMessageTime  *time.Time `bson:"last_message_time" json:"last_message_time,omitempty"`
}

// MongoRepo persists chat history, one document per message.
type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(db *mongo.Database, collection string) *MongoRepo {
	return &MongoRepo{coll: db.Collection(collection)}
}

func (r *MongoRepo) InsertHuman(ctx context.Context, userID, chatID, content string) error {
	return r.insert(ctx, Message{
		UserID:    userID,
		ChatID:    chatID,
		Role:      "human",
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

func (r *MongoRepo) InsertAI(ctx context.Context, userID, chatID, agentName, content string) error {
	return r.insert(ctx, Message{
		UserID:    userID,
		ChatID:    chatID,
		Role:      "ai",
		Content:   content,
		Agent:     agentName,
		Timestamp: time.Now().UTC(),
	})
}

func (r *MongoRepo) insert(ctx context.Context, msg Message) error {
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

func (r *MongoRepo) Messages(ctx context.Context, userID, chatID string) ([]Message, error) {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "chat_id", Value: chatID}}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode chat messages: %w", err)
	}
	return messages, nil
}

// ListChats groups the user's history by chat and reports per-chat
// counts and the first/last message times, most recent chat first.
func (r *MongoRepo) ListChats(ctx context.Context, userID string) ([]Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "user_id", Value: userID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$chat_id"},
			{Key: "chat_name", Value: bson.D{{Key: "$last", Value: "$chat_name"}}},
			{Key: "message_count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "first_message_time", Value: bson.D{{Key: "$min", Value: "$timestamp"}}},
			{Key: "last_message_time", Value: bson.D{{Key: "$max", Value: "$timestamp"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_time", Value: -1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate chat list: %w", err)
	}
	defer cursor.Close(ctx)

	var summaries []Summary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode chat list: %w", err)
	}
	return summaries, nil
}

// UpdateChatName renames a chat by stamping every message in it. The
// boolean reports whether any document matched.
func (r *MongoRepo) UpdateChatName(ctx context.Context, userID, chatID, name string) (bool, error) {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "chat_id", Value: chatID}}
	res, err := r.coll.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "chat_name", Value: name}}}})
	if err != nil {
		return false, fmt.Errorf("failed to update chat name: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// DeleteChat removes the chat's history and returns the number of
// deleted messages.
func (r *MongoRepo) DeleteChat(ctx context.Context, userID, chatID string) (int64, error) {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "chat_id", Value: chatID}}
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat history: %w", err)
	}
	return res.DeletedCount, nil
}
