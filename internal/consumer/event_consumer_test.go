package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPrefsStore mirrors the repository's upsert contract: the timezone is
// refreshed on every write, the device token and enabled flag only on first
// insert.
type memPrefsStore struct {
	users      map[string]*domain.UserPreferences
	lastActive map[string]time.Time
}

func newMemPrefsStore() *memPrefsStore {
	return &memPrefsStore{
		users:      make(map[string]*domain.UserPreferences),
		lastActive: make(map[string]time.Time),
	}
}

func (m *memPrefsStore) Upsert(_ context.Context, prefs *domain.UserPreferences) error {
	if existing, ok := m.users[prefs.Email]; ok {
		existing.Timezone = prefs.Timezone
		return nil
	}
	copied := *prefs
	m.users[prefs.Email] = &copied
	return nil
}

func (m *memPrefsStore) TouchLastActive(_ context.Context, email string, at time.Time) error {
	m.lastActive[email] = at
	return nil
}

type fakeCheckpointManager struct {
	tokens   map[string]string
	enabled  []string
	disabled []string
}

func (f *fakeCheckpointManager) RegisterDeviceToken(_ context.Context, email, token string) error {
	if f.tokens == nil {
		f.tokens = make(map[string]string)
	}
	f.tokens[email] = token
	return nil
}

func (f *fakeCheckpointManager) EnableDailyNotifications(_ context.Context, email string) error {
	f.enabled = append(f.enabled, email)
	return nil
}

func (f *fakeCheckpointManager) DisableDailyNotifications(_ context.Context, email string) error {
	f.disabled = append(f.disabled, email)
	return nil
}

type fakeReminderDeriver struct {
	goalIDs []string
}

func (f *fakeReminderDeriver) DeriveForGoal(_ context.Context, goalID string) (int, error) {
	f.goalIDs = append(f.goalIDs, goalID)
	return 1, nil
}

type fakeJobRemover struct {
	emails []string
}

func (f *fakeJobRemover) RemoveUserJobs(_ context.Context, email string) (int64, error) {
	f.emails = append(f.emails, email)
	return 4, nil
}

type consumerFixture struct {
	consumer    *EventConsumer
	prefs       *memPrefsStore
	checkpoints *fakeCheckpointManager
	reminders   *fakeReminderDeriver
	remover     *fakeJobRemover
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	f := &consumerFixture{
		prefs:       newMemPrefsStore(),
		checkpoints: &fakeCheckpointManager{},
		reminders:   &fakeReminderDeriver{},
		remover:     &fakeJobRemover{},
	}
	f.consumer = NewEventConsumer(nil, f.checkpoints, f.reminders, f.prefs, f.remover, logger.NewLogger())
	return f
}

func TestHandleEvent_UserRegistered(t *testing.T) {
	f := newConsumerFixture(t)

	err := f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  domain.EventUserRegistered,
		Email: "a@example.com",
		Data:  map[string]any{"timezone": "Asia/Kolkata"},
	})

	require.NoError(t, err)
	stored := f.prefs.users["a@example.com"]
	require.NotNil(t, stored)
	assert.Equal(t, "Asia/Kolkata", stored.Timezone)
	assert.False(t, stored.NotificationsEnabled, "notifications start disabled until opted in")
}

func TestHandleEvent_UserRegisteredDefaultsTimezone(t *testing.T) {
	f := newConsumerFixture(t)

	err := f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  domain.EventUserRegistered,
		Email: "a@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "UTC", f.prefs.users["a@example.com"].Timezone)
}

func TestHandleEvent_UserRegisteredRedeliveryKeepsDeviceState(t *testing.T) {
	f := newConsumerFixture(t)
	f.prefs.users["a@example.com"] = &domain.UserPreferences{
		Email:                "a@example.com",
		Timezone:             "UTC",
		DeviceToken:          "tok1",
		NotificationsEnabled: true,
	}

	// At-least-once delivery: the broker may requeue and re-deliver the
	// registration event long after the user bound a device and opted in.
	err := f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  domain.EventUserRegistered,
		Email: "a@example.com",
		Data:  map[string]any{"timezone": "Europe/London"},
	})

	require.NoError(t, err)
	stored := f.prefs.users["a@example.com"]
	assert.Equal(t, "tok1", stored.DeviceToken, "redelivery must not wipe the device token")
	assert.True(t, stored.NotificationsEnabled, "redelivery must not disable notifications")
	assert.Equal(t, "Europe/London", stored.Timezone)
}

func TestHandleEvent_DeviceAndPreferenceEvents(t *testing.T) {
	f := newConsumerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.consumer.handleEvent(ctx, &domain.Event{
		Type:  domain.EventDeviceRegistered,
		Email: "a@example.com",
		Data:  map[string]any{"device_token": "tok-new"},
	}))
	require.NoError(t, f.consumer.handleEvent(ctx, &domain.Event{Type: domain.EventNotificationsEnabled, Email: "a@example.com"}))
	require.NoError(t, f.consumer.handleEvent(ctx, &domain.Event{Type: domain.EventNotificationsDisabled, Email: "a@example.com"}))

	assert.Equal(t, "tok-new", f.checkpoints.tokens["a@example.com"])
	assert.Equal(t, []string{"a@example.com"}, f.checkpoints.enabled)
	assert.Equal(t, []string{"a@example.com"}, f.checkpoints.disabled)
}

func TestHandleEvent_UserActive(t *testing.T) {
	f := newConsumerFixture(t)
	at := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:      domain.EventUserActive,
		Email:     "a@example.com",
		Timestamp: at,
	}))
	assert.Equal(t, at, f.prefs.lastActive["a@example.com"])

	// Missing timestamp falls back to receipt time.
	require.NoError(t, f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  domain.EventUserActive,
		Email: "b@example.com",
	}))
	assert.False(t, f.prefs.lastActive["b@example.com"].IsZero())
}

func TestHandleEvent_UserDeleted(t *testing.T) {
	f := newConsumerFixture(t)

	require.NoError(t, f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  domain.EventUserDeleted,
		Email: "a@example.com",
	}))

	assert.Equal(t, []string{"a@example.com"}, f.remover.emails)
}

func TestHandleEvent_GoalPlanCreated(t *testing.T) {
	f := newConsumerFixture(t)

	require.NoError(t, f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  domain.EventGoalPlanCreated,
		Email: "a@example.com",
		Data:  map[string]any{"goal_id": "goal-1"},
	}))
	assert.Equal(t, []string{"goal-1"}, f.reminders.goalIDs)

	err := f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  domain.EventGoalPlanCreated,
		Email: "a@example.com",
	})
	assert.Error(t, err, "a plan event without goal_id must requeue, not ack")
}

func TestHandleEvent_UnknownTypeIsIgnored(t *testing.T) {
	f := newConsumerFixture(t)

	err := f.consumer.handleEvent(context.Background(), &domain.Event{
		Type:  "user.password_changed",
		Email: "a@example.com",
	})

	require.NoError(t, err, "unknown event types under the bound keys are acked and skipped")
	assert.Empty(t, f.prefs.users)
	assert.Empty(t, f.checkpoints.enabled)
}
