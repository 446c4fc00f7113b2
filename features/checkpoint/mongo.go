package checkpoint

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoDatabase adapts a *mongo.Database to the Database interface.
type MongoDatabase struct {
	db *mongo.Database
}

func NewMongoDatabase(db *mongo.Database) *MongoDatabase {
	return &MongoDatabase{db: db}
}

func (d *MongoDatabase) ListCollectionNames(ctx context.Context) ([]string, error) {
	return d.db.ListCollectionNames(ctx, bson.D{})
}

func (d *MongoDatabase) Collection(name string) Collection {
	return mongoCollection{c: d.db.Collection(name)}
}

type mongoCollection struct {
	c *mongo.Collection
}

func (m mongoCollection) DeleteMany(ctx context.Context, filter any) (int64, error) {
	res, err := m.c.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m mongoCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	return m.c.CountDocuments(ctx, filter)
}
