package repository

import (
	"context"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const snapshotsCollection = "completion_snapshots"

// StatsRepository reads the completion/streak snapshots maintained by the
// surrounding app. A missing snapshot is not an error; composition just runs
// with zero stats.
type StatsRepository struct {
	client *mongodb.MongoClient
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(client *mongodb.MongoClient) *StatsRepository {
	return &StatsRepository{client: client}
}

// GetByEmail retrieves a user's completion snapshot
func (r *StatsRepository) GetByEmail(ctx context.Context, email string) (*domain.CompletionSnapshot, error) {
	var snapshot domain.CompletionSnapshot
	err := r.client.Collection(snapshotsCollection).FindOne(ctx, bson.M{"user_email": email}).Decode(&snapshot)

	if err == mongo.ErrNoDocuments {
		return &domain.CompletionSnapshot{UserEmail: email}, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
