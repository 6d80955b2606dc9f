package repository

import (
	"context"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	apperrors "github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const preferencesCollection = "user_preferences"

// PreferencesRepository handles user notification preference records
type PreferencesRepository struct {
	client *mongodb.MongoClient
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(client *mongodb.MongoClient) *PreferencesRepository {
	return &PreferencesRepository{client: client}
}

// EnsureIndexes creates necessary indexes
func (r *PreferencesRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_idx").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "device_token", Value: 1}},
			Options: options.Index().SetName("device_token_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, preferencesCollection, indexes)
}

// GetByEmail retrieves a user's preference record
func (r *PreferencesRepository) GetByEmail(ctx context.Context, email string) (*domain.UserPreferences, error) {
	var prefs domain.UserPreferences
	err := r.client.Collection(preferencesCollection).FindOne(ctx, bson.M{"email": email}).Decode(&prefs)

	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewUserNotFoundError(email)
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// FindByDeviceToken returns every account currently bound to a device token
func (r *PreferencesRepository) FindByDeviceToken(ctx context.Context, deviceToken string) ([]*domain.UserPreferences, error) {
	cursor, err := r.client.Collection(preferencesCollection).Find(ctx, bson.M{"device_token": deviceToken})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var accounts []*domain.UserPreferences
	if err = cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Upsert writes a preference record keyed by email. Events arrive
// at-least-once, so a re-delivered registration for an existing user may only
// refresh the timezone: the device token and enabled flag are written on
// first insert and belong to their own lifecycle events after that.
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *domain.UserPreferences) error {
	now := time.Now()
	prefs.UpdatedAt = now

	filter := bson.M{"email": prefs.Email}
	update := bson.M{
		"$set": bson.M{
			"timezone":   prefs.Timezone,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"device_token":          prefs.DeviceToken,
			"notifications_enabled": prefs.NotificationsEnabled,
			"created_at":            now,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(preferencesCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

// SetDeviceToken binds a push device token to a user
func (r *PreferencesRepository) SetDeviceToken(ctx context.Context, email, deviceToken string) error {
	return r.setField(ctx, email, bson.M{"device_token": deviceToken})
}

// ClearDeviceToken removes a user's stored token after the provider rejected
// it as invalid
func (r *PreferencesRepository) ClearDeviceToken(ctx context.Context, email string) error {
	filter := bson.M{"email": email}
	update := bson.M{
		"$unset": bson.M{"device_token": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}

	_, err := r.client.Collection(preferencesCollection).UpdateOne(ctx, filter, update)
	return err
}

// SetNotificationsEnabled flips the notifications-enabled preference
func (r *PreferencesRepository) SetNotificationsEnabled(ctx context.Context, email string, enabled bool) error {
	return r.setField(ctx, email, bson.M{"notifications_enabled": enabled})
}

// TouchLastActive stamps the user's last-active timestamp
func (r *PreferencesRepository) TouchLastActive(ctx context.Context, email string, at time.Time) error {
	return r.setField(ctx, email, bson.M{"last_active_at": at})
}

func (r *PreferencesRepository) setField(ctx context.Context, email string, fields bson.M) error {
	fields["updated_at"] = time.Now()

	filter := bson.M{"email": email}
	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"created_at": time.Now()},
	}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(preferencesCollection).UpdateOne(ctx, filter, update, opts)
	return err
}
