package repository

import (
	"context"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollection = "notification_history"

// HistoryRepository records checkpoint send attempts. Besides audit, the most
// recent sent bodies are read back into the composer context.
type HistoryRepository struct {
	client *mongodb.MongoClient
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(client *mongodb.MongoClient) *HistoryRepository {
	return &HistoryRepository{client: client}
}

// EnsureIndexes creates necessary indexes for query performance
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_email", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("user_created_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, historyCollection, indexes)
}

// Create records one send attempt
func (r *HistoryRepository) Create(ctx context.Context, record *domain.HistoryRecord) error {
	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now()

	_, err := r.client.Collection(historyCollection).InsertOne(ctx, record)
	return err
}

// RecentBodies returns the bodies of the user's most recent sent
// notifications, newest first
func (r *HistoryRepository) RecentBodies(ctx context.Context, email string, limit int) ([]string, error) {
	filter := bson.M{
		"user_email": email,
		"status":     domain.HistoryStatusSent,
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.M{"created_at": -1}).
		SetProjection(bson.M{"body": 1})

	cursor, err := r.client.Collection(historyCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.HistoryRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	bodies := make([]string, 0, len(records))
	for _, record := range records {
		if record.Body != "" {
			bodies = append(bodies, record.Body)
		}
	}
	return bodies, nil
}

// FindByUser finds a user's send history with pagination, newest first
func (r *HistoryRepository) FindByUser(ctx context.Context, email string, page, pageSize int) ([]*domain.HistoryRecord, int64, error) {
	filter := bson.M{"user_email": email}

	total, err := r.client.Collection(historyCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.client.Collection(historyCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var records []*domain.HistoryRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
