package repository

import (
	"context"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const nudgesCollection = "nudges"

// NudgeRepository handles goal-linked reminder records
type NudgeRepository struct {
	client *mongodb.MongoClient
}

// NewNudgeRepository creates a new nudge repository
func NewNudgeRepository(client *mongodb.MongoClient) *NudgeRepository {
	return &NudgeRepository{client: client}
}

// Create creates a new nudge record in PENDING state
func (r *NudgeRepository) Create(ctx context.Context, nudge *domain.NudgeRecord) error {
	nudge.ID = primitive.NewObjectID()
	nudge.Status = domain.NudgeStatusPending
	nudge.CreatedAt = time.Now()

	_, err := r.client.Collection(nudgesCollection).InsertOne(ctx, nudge)
	return err
}

// FindByJobID finds the nudge tied to a one-shot job
func (r *NudgeRepository) FindByJobID(ctx context.Context, jobID string) (*domain.NudgeRecord, error) {
	var nudge domain.NudgeRecord
	err := r.client.Collection(nudgesCollection).FindOne(ctx, bson.M{"job_id": jobID}).Decode(&nudge)
	if err != nil {
		return nil, err
	}
	return &nudge, nil
}

// DeleteByJobID removes the nudge tied to a one-shot job, used when reminder
// derivation re-runs and replaces the job
func (r *NudgeRepository) DeleteByJobID(ctx context.Context, jobID string) error {
	_, err := r.client.Collection(nudgesCollection).DeleteOne(ctx, bson.M{"job_id": jobID})
	return err
}

// UpdateStatus transitions a nudge out of PENDING exactly once
func (r *NudgeRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.NudgeStatus, errorMsg string) error {
	filter := bson.M{"_id": id, "status": domain.NudgeStatusPending}
	update := bson.M{
		"$set": bson.M{
			"status": status,
		},
	}
	if errorMsg != "" {
		update["$set"].(bson.M)["error"] = errorMsg
	}

	_, err := r.client.Collection(nudgesCollection).UpdateOne(ctx, filter, update)
	return err
}

// FindByUser finds a user's nudges with pagination, newest first
func (r *NudgeRepository) FindByUser(ctx context.Context, email string, status domain.NudgeStatus, page, pageSize int) ([]*domain.NudgeRecord, int64, error) {
	filter := bson.M{"user_email": email}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.client.Collection(nudgesCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize)).
		SetSort(bson.M{"scheduled_time": -1})

	cursor, err := r.client.Collection(nudgesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var nudges []*domain.NudgeRecord
	if err = cursor.All(ctx, &nudges); err != nil {
		return nil, 0, err
	}

	return nudges, total, nil
}
