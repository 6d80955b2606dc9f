package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
	"github.com/pulseplan/go-nudge-service/internal/shared/rabbitmq"
)

const (
	eventExchange  = "health_events"
	eventQueue     = "nudge_engine"
	consumerTag    = "nudge-engine"
	userRoutingKey = "user.*"
	goalRoutingKey = "goal.*"
)

// checkpointManager is the slice of the checkpoint service preference events
// drive
type checkpointManager interface {
	RegisterDeviceToken(ctx context.Context, email, deviceToken string) error
	EnableDailyNotifications(ctx context.Context, email string) error
	DisableDailyNotifications(ctx context.Context, email string) error
}

// reminderDeriver rebuilds one-shot reminders when a goal plan lands
type reminderDeriver interface {
	DeriveForGoal(ctx context.Context, goalID string) (int, error)
}

// prefsStore is the preference access event handling needs
type prefsStore interface {
	Upsert(ctx context.Context, prefs *domain.UserPreferences) error
	TouchLastActive(ctx context.Context, email string, at time.Time) error
}

// userJobRemover drops every scheduled job a departing user owns
type userJobRemover interface {
	RemoveUserJobs(ctx context.Context, email string) (int64, error)
}

// EventConsumer consumes preference and goal events from the surrounding app
type EventConsumer struct {
	client      *rabbitmq.RabbitMQClient
	checkpoints checkpointManager
	reminders   reminderDeriver
	prefs       prefsStore
	sched       userJobRemover
	log         *logger.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(
	client *rabbitmq.RabbitMQClient,
	checkpoints checkpointManager,
	reminders reminderDeriver,
	prefs prefsStore,
	sched userJobRemover,
	log *logger.Logger,
) *EventConsumer {
	return &EventConsumer{
		client:      client,
		checkpoints: checkpoints,
		reminders:   reminders,
		prefs:       prefs,
		sched:       sched,
		log:         log,
	}
}

// Start declares the topology and consumes until the channel closes
func (c *EventConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting event consumer", "queue", eventQueue)

	if err := c.client.DeclareTopicExchange(eventExchange); err != nil {
		c.log.Error("Failed to declare exchange", "error", err)
		return err
	}
	if err := c.client.DeclareQueue(eventQueue); err != nil {
		c.log.Error("Failed to declare queue", "error", err)
		return err
	}
	for _, key := range []string{userRoutingKey, goalRoutingKey} {
		if err := c.client.BindQueue(eventQueue, key, eventExchange); err != nil {
			c.log.Error("Failed to bind queue", "error", err, "routing_key", key)
			return err
		}
	}

	messages, err := c.client.Consume(eventQueue, consumerTag)
	if err != nil {
		c.log.Error("Failed to start consuming", "error", err)
		return err
	}

	for msg := range messages {
		var event domain.Event
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			c.log.Error("Failed to unmarshal event", "error", err, "routing_key", msg.RoutingKey)
			msg.Nack(false, false) // malformed, never requeue
			continue
		}

		if err := c.handleEvent(ctx, &event); err != nil {
			c.log.Error("Failed to process event", "error", err, "type", event.Type, "user", event.Email)
			msg.Nack(false, true) // requeue for retry
			continue
		}

		msg.Ack(false)
		c.log.Debug("Event processed", "type", event.Type, "user", event.Email)
	}

	return nil
}

// handleEvent dispatches one event to the owning service
func (c *EventConsumer) handleEvent(ctx context.Context, event *domain.Event) error {
	switch event.Type {
	case domain.EventUserRegistered:
		timezone, _ := event.Data["timezone"].(string)
		if timezone == "" {
			timezone = "UTC"
		}
		return c.prefs.Upsert(ctx, &domain.UserPreferences{
			Email:    event.Email,
			Timezone: timezone,
		})

	case domain.EventDeviceRegistered:
		token, _ := event.Data["device_token"].(string)
		return c.checkpoints.RegisterDeviceToken(ctx, event.Email, token)

	case domain.EventNotificationsEnabled:
		return c.checkpoints.EnableDailyNotifications(ctx, event.Email)

	case domain.EventNotificationsDisabled:
		return c.checkpoints.DisableDailyNotifications(ctx, event.Email)

	case domain.EventUserActive:
		at := event.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		return c.prefs.TouchLastActive(ctx, event.Email, at)

	case domain.EventUserDeleted:
		removed, err := c.sched.RemoveUserJobs(ctx, event.Email)
		if err != nil {
			return err
		}
		c.log.Info("Removed scheduled jobs for deleted user", "user", event.Email, "removed", removed)
		return nil

	case domain.EventGoalPlanCreated:
		goalID, _ := event.Data["goal_id"].(string)
		if goalID == "" {
			return fmt.Errorf("goal.plan_created event for %s is missing goal_id", event.Email)
		}
		_, err := c.reminders.DeriveForGoal(ctx, goalID)
		return err

	default:
		// Unknown routing keys under user.*/goal.* are someone else's
		// events; ack and move on.
		c.log.Debug("Ignoring unhandled event type", "type", event.Type)
		return nil
	}
}
