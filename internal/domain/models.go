package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CheckpointType is one of the fixed daily notification occasions
type CheckpointType string

const (
	CheckpointMorning CheckpointType = "morning"
	CheckpointMidday  CheckpointType = "midday"
	CheckpointEvening CheckpointType = "evening"
	CheckpointNight   CheckpointType = "night"
)

// LocalTime is a wall-clock hour and minute in a user's timezone
type LocalTime struct {
	Hour   int
	Minute int
}

// CheckpointTimes maps each checkpoint to its local wall-clock trigger time.
// These are fixed occasions, not user-configurable.
var CheckpointTimes = map[CheckpointType]LocalTime{
	CheckpointMorning: {Hour: 7, Minute: 0},
	CheckpointMidday:  {Hour: 12, Minute: 30},
	CheckpointEvening: {Hour: 18, Minute: 0},
	CheckpointNight:   {Hour: 21, Minute: 30},
}

// Valid reports whether t is a defined checkpoint
func (t CheckpointType) Valid() bool {
	_, ok := CheckpointTimes[t]
	return ok
}

// JobKind is the trigger kind of a scheduled job
type JobKind string

const (
	JobKindCron JobKind = "cron" // recurring, fires at a UTC hour:minute daily
	JobKindDate JobKind = "date" // one-shot, fires once at RunAt
)

// ScheduledJob is a persisted trigger. The id is deterministic: recurring
// checkpoint jobs derive it from (user, checkpoint type), one-shot reminder
// jobs from (user, reminder timestamp), so re-creating a job with the same id
// replaces rather than duplicates.
type ScheduledJob struct {
	ID   string  `json:"id" bson:"_id"`
	Kind JobKind `json:"kind" bson:"kind"`

	// Cron jobs: wall-clock trigger time in the named IANA zone. An empty
	// Timezone means UTC.
	Hour     int    `json:"hour" bson:"hour"`
	Minute   int    `json:"minute" bson:"minute"`
	Timezone string `json:"timezone,omitempty" bson:"timezone,omitempty"`

	RunAt   *time.Time        `json:"run_at,omitempty" bson:"run_at,omitempty"`
	Handler string            `json:"handler" bson:"handler"`
	Args    map[string]string `json:"args,omitempty" bson:"args,omitempty"`

	// Advisory metadata for observability only, never read for correctness.
	UserEmail string `json:"user_email" bson:"user_email"`
	Purpose   string `json:"purpose" bson:"purpose"`
	EntityID  string `json:"entity_id,omitempty" bson:"entity_id,omitempty"`

	FiredAt   *time.Time `json:"fired_at,omitempty" bson:"fired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// CheckpointJobID derives the recurring job id for a (user, checkpoint) pair
func CheckpointJobID(email string, checkpoint CheckpointType) string {
	return fmt.Sprintf("checkpoint:%s:%s", email, checkpoint)
}

// ReminderJobID derives the one-shot job id for a (user, reminder time) pair
func ReminderJobID(email string, runAt time.Time) string {
	return fmt.Sprintf("reminder:%s:%d", email, runAt.UTC().Unix())
}

// DeviceLock is an atomic per-device-per-type-per-day send claim. The _id is
// the composite key, so a concurrent second insert fails on the primary key
// and exactly one caller wins. Rows expire 24 hours after creation via a TTL
// index.
type DeviceLock struct {
	ID               string    `json:"id" bson:"_id"`
	DeviceToken      string    `json:"device_token" bson:"device_token"`
	NotificationType string    `json:"notification_type" bson:"notification_type"`
	Date             string    `json:"date" bson:"date"` // UTC calendar date, YYYY-MM-DD
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// DeviceLockID derives the composite lock key
func DeviceLockID(deviceToken, notificationType, date string) string {
	return fmt.Sprintf("%s:%s:%s", deviceToken, notificationType, date)
}

// NudgeStatus is the delivery state of a goal-linked reminder
type NudgeStatus string

const (
	NudgeStatusPending NudgeStatus = "PENDING"
	NudgeStatusSent    NudgeStatus = "SENT"
	NudgeStatusFailed  NudgeStatus = "FAILED"
)

// NudgeRecord is a goal-linked one-shot reminder tied to an action item's
// scheduled end time. Created once at plan time, transitions once at
// delivery, never mutated otherwise.
type NudgeRecord struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	JobID           string             `json:"job_id" bson:"job_id"`
	UserEmail       string             `json:"user_email" bson:"user_email"`
	GoalID          string             `json:"goal_id" bson:"goal_id"`
	ActionItemTitle string             `json:"action_item_title" bson:"action_item_title"`
	ScheduledTime   time.Time          `json:"scheduled_time" bson:"scheduled_time"`
	Title           string             `json:"title" bson:"title"`
	Body            string             `json:"body" bson:"body"`
	Status          NudgeStatus        `json:"status" bson:"status"`
	Error           string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
}

// UserPreferences is a user's notification preference record. The device
// token is the push-provider registration id for one installed app instance;
// several accounts can be bound to one token over time after logout/login.
type UserPreferences struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email                string             `json:"email" bson:"email"`
	Timezone             string             `json:"timezone" bson:"timezone"`
	DeviceToken          string             `json:"device_token,omitempty" bson:"device_token,omitempty"`
	NotificationsEnabled bool               `json:"notifications_enabled" bson:"notifications_enabled"`
	LastActiveAt         *time.Time         `json:"last_active_at,omitempty" bson:"last_active_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" bson:"updated_at"`
}

// HistoryStatus is the outcome recorded for a checkpoint send attempt
type HistoryStatus string

const (
	HistoryStatusSent       HistoryStatus = "sent"
	HistoryStatusFailed     HistoryStatus = "failed"
	HistoryStatusSuppressed HistoryStatus = "suppressed"
)

// HistoryRecord is one checkpoint send attempt. Recent sent bodies feed the
// composer's context so consecutive nudges do not repeat themselves.
type HistoryRecord struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserEmail  string             `json:"user_email" bson:"user_email"`
	Checkpoint CheckpointType     `json:"checkpoint" bson:"checkpoint"`
	Title      string             `json:"title,omitempty" bson:"title,omitempty"`
	Body       string             `json:"body,omitempty" bson:"body,omitempty"`
	Status     HistoryStatus      `json:"status" bson:"status"`
	Reason     string             `json:"reason,omitempty" bson:"reason,omitempty"`
	MessageID  string             `json:"message_id,omitempty" bson:"message_id,omitempty"`
	SentAt     *time.Time         `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// Goal is the read-only goal/action-item shape consumed for reminder
// derivation. Owned by the surrounding app; never mutated here.
type Goal struct {
	ID          string       `json:"id" bson:"_id"`
	UserEmail   string       `json:"user_email" bson:"user_email"`
	Title       string       `json:"title" bson:"title"`
	ActionItems []ActionItem `json:"action_items" bson:"action_items"`
}

// ActionItem is one trackable item inside a goal
type ActionItem struct {
	Title   string          `json:"title" bson:"title"`
	Entries []ScheduleEntry `json:"entries,omitempty" bson:"entries,omitempty"`
}

// ScheduleEntry is one per-weekday occurrence of an action item
type ScheduleEntry struct {
	Weekday   Weekday  `json:"weekday" bson:"weekday"`
	Date      FlexTime `json:"date,omitempty" bson:"date,omitempty"`
	Start     FlexTime `json:"start,omitempty" bson:"start,omitempty"`
	End       FlexTime `json:"end,omitempty" bson:"end,omitempty"`
	Notes     string   `json:"notes,omitempty" bson:"notes,omitempty"`
	Completed bool     `json:"completed" bson:"completed"`
}

// CompletionSnapshot is the read-only completion/streak snapshot consumed for
// composition. Owned externally; absent fields stay zero.
type CompletionSnapshot struct {
	UserEmail      string    `json:"user_email" bson:"user_email"`
	TodayCompleted int       `json:"today_completed" bson:"today_completed"`
	TodayTotal     int       `json:"today_total" bson:"today_total"`
	TodayPercent   float64   `json:"today_percent" bson:"today_percent"`
	WeeklyPercent  float64   `json:"weekly_percent" bson:"weekly_percent"`
	StreakDays     int       `json:"streak_days" bson:"streak_days"`
	Summary        string    `json:"summary,omitempty" bson:"summary,omitempty"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// EventType represents the type of event consumed from the message bus
type EventType string

const (
	EventUserRegistered        EventType = "user.registered"
	EventDeviceRegistered      EventType = "user.device_registered"
	EventNotificationsEnabled  EventType = "user.notifications_enabled"
	EventNotificationsDisabled EventType = "user.notifications_disabled"
	EventUserActive            EventType = "user.active"
	EventUserDeleted           EventType = "user.deleted"
	EventGoalPlanCreated       EventType = "goal.plan_created"
)

// Event represents an event published by the surrounding app
type Event struct {
	Type      EventType      `json:"type"`
	Email     string         `json:"email"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
