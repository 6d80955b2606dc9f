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

const deviceLocksCollection = "device_locks"

// deviceLockTTL is how long a claimed slot lives. Expiry never violates
// same-day uniqueness: only one day's row exists per (device, type) at a
// time, and a new day means a new _id.
const deviceLockTTL = 24 * time.Hour

// DeviceLockRepository implements the per-device-per-type-per-day send claim.
// The claim is an insert against the composite primary key, so the first
// writer wins and every later claim for the same slot loses, regardless of
// which user account is attempting the send.
//
// The lock's calendar date is the absolute UTC date while checkpoint triggers
// fire on user-local wall time. That frame mismatch is inherited behavior and
// kept as is.
type DeviceLockRepository struct {
	client *mongodb.MongoClient
}

// NewDeviceLockRepository creates a new device lock repository
func NewDeviceLockRepository(client *mongodb.MongoClient) *DeviceLockRepository {
	return &DeviceLockRepository{client: client}
}

// EnsureIndexes creates the TTL index that expires stale locks
func (r *DeviceLockRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().
				SetName("created_at_ttl_idx").
				SetExpireAfterSeconds(int32(deviceLockTTL / time.Second)),
		},
	}

	return r.client.CreateIndexes(ctx, deviceLocksCollection, indexes)
}

// TryClaim atomically claims the (device, type, date) slot. Returns true only
// when this call inserted the first row for that key; a duplicate-key
// rejection means another path already holds the slot and is not an error.
func (r *DeviceLockRepository) TryClaim(ctx context.Context, deviceToken, notificationType, date string) (bool, error) {
	lock := &domain.DeviceLock{
		ID:               domain.DeviceLockID(deviceToken, notificationType, date),
		DeviceToken:      deviceToken,
		NotificationType: notificationType,
		Date:             date,
		CreatedAt:        time.Now(),
	}

	_, err := r.client.Collection(deviceLocksCollection).InsertOne(ctx, lock)
	if err != nil {
		if mongodb.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
