package storage

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"poemharvest/internal/types"
)

// MongoIndex keeps the page index in a MongoDB collection, one document
// per page keyed by _id = page_id.
type MongoIndex struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

func NewMongoIndex(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoIndex, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: err}
	}

	return &MongoIndex{
		client:     client,
		collection: client.Database(database).Collection("poems"),
		logger:     logger.With("component", "mongo_index"),
	}, nil
}

func (m *MongoIndex) Upsert(ctx context.Context, rec IndexRecord) error {
	doc := bson.M{
		"_id":                rec.PageID,
		"revision_id":        rec.RevisionID,
		"title":              rec.Title,
		"author":             rec.Author,
		"language":           rec.Language,
		"collection_page_id": rec.CollectionPageID,
		"hub_page_id":        rec.HubPageID,
		"checksum_sha256":    rec.Checksum,
		"extracted_at":       rec.ExtractedAt,
	}

	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := m.collection.ReplaceOne(opCtx, bson.M{"_id": rec.PageID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}
	return nil
}

func (m *MongoIndex) ProcessedIDs(ctx context.Context) ([]int64, error) {
	cursor, err := m.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: err}
	}
	defer cursor.Close(ctx)

	var ids []int64
	for cursor.Next(ctx) {
		var doc struct {
			ID int64 `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, &types.StorageError{Backend: "mongodb", Err: err}
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (m *MongoIndex) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.client.Disconnect(disconnectCtx)
}
