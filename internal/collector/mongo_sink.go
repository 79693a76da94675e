package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ktrace/internal/constants"
	"ktrace/pkg/models"
)

type mongoRecord struct {
	EventID    string    `bson:"event_id"`
	EventType  string    `bson:"event_type"`
	Name       string    `bson:"name"`
	EventTime  int64     `bson:"event_time"`
	UserID     string    `bson:"user_id,omitempty"`
	SessionID  string    `bson:"session_id,omitempty"`
	Payload    string    `bson:"payload"`
	ReceivedAt time.Time `bson:"received_at"`
}

// MongoSink stores one document per record. The event is kept verbatim as
// JSON in payload; the other fields exist for indexing.
type MongoSink struct {
	collection *mongo.Collection
}

func NewMongoSink(db *mongo.Database, collection string) *MongoSink {
	if collection == "" {
		collection = constants.DefaultMongoCollection
	}
	return &MongoSink{collection: db.Collection(collection)}
}

func (s *MongoSink) Name() string {
	return constants.SinkTypeMongoDB
}

func (s *MongoSink) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		payload, err := json.Marshal(r.Event)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", r.ID, err)
		}
		docs = append(docs, mongoRecord{
			EventID:    r.ID,
			EventType:  string(r.Type),
			Name:       r.Name,
			EventTime:  r.Timestamp,
			UserID:     r.UserID,
			SessionID:  r.SessionID,
			Payload:    string(payload),
			ReceivedAt: r.ReceivedAt,
		})
	}

	if _, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}

func (s *MongoSink) List(ctx context.Context) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer cursor.Close(ctx)

	records := []Record{}
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		var event models.Event
		if err := json.Unmarshal([]byte(doc.Payload), &event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		records = append(records, Record{Event: event, ReceivedAt: doc.ReceivedAt.UTC()})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return records, nil
}

func (s *MongoSink) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	return nil
}

// Close is a no-op: the client belongs to the caller.
func (s *MongoSink) Close() error {
	return nil
}
