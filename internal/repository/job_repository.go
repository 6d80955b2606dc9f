package repository

import (
	"context"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const jobsCollection = "scheduled_jobs"

// JobRepository is the durable job store. Jobs are keyed by a deterministic
// string _id, so writing a job that already exists replaces it in place
// instead of duplicating it.
type JobRepository struct {
	client *mongodb.MongoClient
}

// NewJobRepository creates a new job repository
func NewJobRepository(client *mongodb.MongoClient) *JobRepository {
	return &JobRepository{client: client}
}

// EnsureIndexes creates necessary indexes for query performance
func (r *JobRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_email", Value: 1},
			},
			Options: options.Index().SetName("user_email_idx"),
		},
		{
			Keys: bson.D{
				{Key: "kind", Value: 1},
				{Key: "run_at", Value: 1},
			},
			Options: options.Index().SetName("kind_run_at_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, jobsCollection, indexes)
}

// Upsert writes a job, replacing any job sharing the same id
func (r *JobRepository) Upsert(ctx context.Context, job *domain.ScheduledJob) error {
	now := time.Now()
	job.UpdatedAt = now
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}

	opts := options.Replace().SetUpsert(true)
	_, err := r.client.Collection(jobsCollection).ReplaceOne(ctx, bson.M{"_id": job.ID}, job, opts)
	return err
}

// FindAll returns every stored job, for trigger-table reload on startup
func (r *JobRepository) FindAll(ctx context.Context) ([]*domain.ScheduledJob, error) {
	cursor, err := r.client.Collection(jobsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*domain.ScheduledJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindDueDateJobs returns unfired one-shot jobs with run_at at or before now
func (r *JobRepository) FindDueDateJobs(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error) {
	filter := bson.M{
		"kind":     domain.JobKindDate,
		"run_at":   bson.M{"$lte": now},
		"fired_at": nil,
	}
	cursor, err := r.client.Collection(jobsCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*domain.ScheduledJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkFired stamps a one-shot job as fired. The update matches only unfired
// documents, so two pollers racing on the same job get exactly one winner.
func (r *JobRepository) MarkFired(ctx context.Context, id string, firedAt time.Time) (bool, error) {
	filter := bson.M{"_id": id, "fired_at": nil}
	update := bson.M{"$set": bson.M{"fired_at": firedAt, "updated_at": time.Now()}}

	result, err := r.client.Collection(jobsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// Delete removes a job by id
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(jobsCollection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteByUser removes every job owned by a user, used when the user disables
// notifications
func (r *JobRepository) DeleteByUser(ctx context.Context, email string) (int64, error) {
	result, err := r.client.Collection(jobsCollection).DeleteMany(ctx, bson.M{"user_email": email})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
