package repository

import (
	"context"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	apperrors "github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const goalsCollection = "goals"

// GoalRepository reads the goal/action-item documents owned by the
// surrounding app. Reminder derivation only reads them; nothing here writes
// to this collection.
type GoalRepository struct {
	client *mongodb.MongoClient
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(client *mongodb.MongoClient) *GoalRepository {
	return &GoalRepository{client: client}
}

// FindByID finds a goal by id
func (r *GoalRepository) FindByID(ctx context.Context, id string) (*domain.Goal, error) {
	var goal domain.Goal
	err := r.client.Collection(goalsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&goal)

	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewGoalNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	return &goal, nil
}
