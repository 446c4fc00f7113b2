package agent

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoCheckpointer upserts turn state into a checkpoint collection
// keyed by thread_id, the same key the deletion path matches on.
type MongoCheckpointer struct {
	coll *mongo.Collection
}

func NewMongoCheckpointer(db *mongo.Database, collection string) *MongoCheckpointer {
	return &MongoCheckpointer{coll: db.Collection(collection)}
}

func (c *MongoCheckpointer) Save(ctx context.Context, threadID string, state TurnState) error {
	filter := bson.D{{Key: "thread_id", Value: threadID}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "thread_id", Value: threadID},
		{Key: "state", Value: state},
	}}}

	if _, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert checkpoint: %w", err)
	}
	return nil
}
