package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoCollection creates the indexes the collector queries rely on.
// The collection itself is created on first insert.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database, name string) error {
	collection := db.Collection(name)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "received_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_collected_events_received_at"),
		},
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetName("idx_collected_events_session_id"),
		},
		{
			Keys:    bson.D{{Key: "event_type", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_collected_events_type_name"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
