package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/metrics"
	apperrors "github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
	"github.com/pulseplan/go-nudge-service/internal/timezone"
)

// HandlerCheckpoint is the scheduler handler name for recurring checkpoint jobs
const HandlerCheckpoint = "checkpoint"

// recentBodyCount is how many prior notification bodies feed the composer
const recentBodyCount = 5

// deviceLocker claims the per-device-per-type-per-day send slot
type deviceLocker interface {
	TryClaim(ctx context.Context, deviceToken, notificationType, date string) (bool, error)
}

// ownerResolver gates sends on current device ownership
type ownerResolver interface {
	IsOwner(ctx context.Context, email string) (bool, error)
}

// statsReader supplies the externally owned completion snapshot
type statsReader interface {
	GetByEmail(ctx context.Context, email string) (*domain.CompletionSnapshot, error)
}

// historyStore records send attempts and replays recent bodies
type historyStore interface {
	Create(ctx context.Context, record *domain.HistoryRecord) error
	RecentBodies(ctx context.Context, email string, limit int) ([]string, error)
}

// messageComposer builds the notification message, never failing
type messageComposer interface {
	Compose(ctx context.Context, cc domain.ComposeContext) domain.Message
}

// deliverer is the gateway to the push provider
type deliverer interface {
	Preconditions(ctx context.Context, email string) (*domain.UserPreferences, error)
	Send(ctx context.Context, email, notificationType string, msg domain.Message) (string, error)
}

// cronScheduler is the slice of the trigger engine checkpoint management uses
type cronScheduler interface {
	UpsertCronJob(ctx context.Context, job *domain.ScheduledJob) error
	RemoveJob(ctx context.Context, id string) error
}

// checkpointPrefsStore is the preference access checkpoint management needs
type checkpointPrefsStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.UserPreferences, error)
	SetDeviceToken(ctx context.Context, email, deviceToken string) error
	SetNotificationsEnabled(ctx context.Context, email string, enabled bool) error
}

// CheckpointService orchestrates recurring checkpoint sends:
// preconditions, owner gate, device slot claim, composition, delivery,
// history. It also manages the per-user recurring jobs behind the
// preference-change entry points.
type CheckpointService struct {
	prefs    checkpointPrefsStore
	resolver ownerResolver
	locks    deviceLocker
	stats    statsReader
	history  historyStore
	composer messageComposer
	delivery deliverer
	sched    cronScheduler
	log      *logger.Logger
	now      func() time.Time
}

// NewCheckpointService creates a new checkpoint service
func NewCheckpointService(
	prefs checkpointPrefsStore,
	resolver ownerResolver,
	locks deviceLocker,
	stats statsReader,
	history historyStore,
	composer messageComposer,
	delivery deliverer,
	sched cronScheduler,
	log *logger.Logger,
) *CheckpointService {
	return &CheckpointService{
		prefs:    prefs,
		resolver: resolver,
		locks:    locks,
		stats:    stats,
		history:  history,
		composer: composer,
		delivery: delivery,
		sched:    sched,
		log:      log,
		now:      time.Now,
	}
}

// HandleCheckpointJob is the scheduler handler for recurring checkpoint jobs.
// The user and checkpoint ride in the job args; the job's metadata fields are
// advisory only.
func (s *CheckpointService) HandleCheckpointJob(ctx context.Context, job *domain.ScheduledJob) error {
	email := job.Args["email"]
	checkpoint := domain.CheckpointType(job.Args["checkpoint"])
	if email == "" || !checkpoint.Valid() {
		return fmt.Errorf("checkpoint job %s has malformed args %v", job.ID, job.Args)
	}

	err := s.SendCheckpoint(ctx, email, checkpoint)
	if err != nil && isPrecondition(err) {
		// Expected, frequent, non-fatal; not a handler failure.
		s.log.Warn("Checkpoint send suppressed by precondition", "user", email, "checkpoint", checkpoint, "reason", err)
		return nil
	}
	return err
}

// SendCheckpointNow sends one checkpoint immediately, bypassing the cron
// trigger but not the owner gate or the device slot lock
func (s *CheckpointService) SendCheckpointNow(ctx context.Context, email string, checkpoint domain.CheckpointType) error {
	if !checkpoint.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown checkpoint type %q", checkpoint), nil)
	}
	return s.SendCheckpoint(ctx, email, checkpoint)
}

// SendCheckpoint runs the full checkpoint pipeline for one user
func (s *CheckpointService) SendCheckpoint(ctx context.Context, email string, checkpoint domain.CheckpointType) error {
	prefs, err := s.delivery.Preconditions(ctx, email)
	if err != nil {
		metrics.SendsSuppressed.WithLabelValues(string(checkpoint), "precondition").Inc()
		return err
	}

	owner, err := s.resolver.IsOwner(ctx, email)
	if err != nil {
		return err
	}
	if !owner {
		// Another account owns this device right now. A normal, frequent,
		// silent non-send.
		metrics.SendsSuppressed.WithLabelValues(string(checkpoint), "not_owner").Inc()
		s.log.Debug("Checkpoint suppressed, user is not the device owner", "user", email, "checkpoint", checkpoint)
		s.record(ctx, email, checkpoint, &domain.HistoryRecord{
			Status: domain.HistoryStatusSuppressed,
			Reason: "not_device_owner",
		})
		return nil
	}

	date := s.now().UTC().Format("2006-01-02")
	claimed, err := s.locks.TryClaim(ctx, prefs.DeviceToken, string(checkpoint), date)
	if err != nil {
		return apperrors.NewInternalError("device slot claim failed", err)
	}
	if !claimed {
		metrics.LockConflicts.Inc()
		metrics.SendsSuppressed.WithLabelValues(string(checkpoint), "duplicate").Inc()
		s.log.Debug("Checkpoint suppressed, device slot already claimed", "user", email, "checkpoint", checkpoint, "date", date)
		s.record(ctx, email, checkpoint, &domain.HistoryRecord{
			Status: domain.HistoryStatusSuppressed,
			Reason: "slot_already_claimed",
		})
		return nil
	}

	msg := s.composer.Compose(ctx, s.buildContext(ctx, email, checkpoint))

	messageID, err := s.delivery.Send(ctx, email, string(checkpoint), msg)
	if err != nil {
		metrics.NudgesSent.WithLabelValues(string(checkpoint), "failed").Inc()
		s.record(ctx, email, checkpoint, &domain.HistoryRecord{
			Title:  msg.Title,
			Body:   msg.Body,
			Status: domain.HistoryStatusFailed,
			Reason: err.Error(),
		})
		return err
	}

	metrics.NudgesSent.WithLabelValues(string(checkpoint), "sent").Inc()
	sentAt := s.now()
	s.record(ctx, email, checkpoint, &domain.HistoryRecord{
		Title:     msg.Title,
		Body:      msg.Body,
		Status:    domain.HistoryStatusSent,
		MessageID: messageID,
		SentAt:    &sentAt,
	})
	return nil
}

// buildContext assembles the deterministic composer context. Missing stats
// or history degrade to zero values, never block a send.
func (s *CheckpointService) buildContext(ctx context.Context, email string, checkpoint domain.CheckpointType) domain.ComposeContext {
	cc := domain.ComposeContext{Checkpoint: checkpoint}

	snapshot, err := s.stats.GetByEmail(ctx, email)
	if err != nil {
		s.log.Warn("Failed to load completion snapshot", "error", err, "user", email)
	} else {
		cc.TodayCompleted = snapshot.TodayCompleted
		cc.TodayTotal = snapshot.TodayTotal
		cc.TodayPercent = snapshot.TodayPercent
		cc.WeeklyPercent = snapshot.WeeklyPercent
		cc.StreakDays = snapshot.StreakDays
		cc.Summary = snapshot.Summary
	}

	bodies, err := s.history.RecentBodies(ctx, email, recentBodyCount)
	if err != nil {
		s.log.Warn("Failed to load recent notification bodies", "error", err, "user", email)
	} else {
		cc.RecentBodies = bodies
	}

	return cc
}

func (s *CheckpointService) record(ctx context.Context, email string, checkpoint domain.CheckpointType, record *domain.HistoryRecord) {
	record.UserEmail = email
	record.Checkpoint = checkpoint
	if err := s.history.Create(ctx, record); err != nil {
		s.log.Error("Failed to record send attempt", "error", err, "user", email, "checkpoint", checkpoint)
	}
}

// EnableDailyNotifications flips the preference on and upserts one recurring
// job per checkpoint. Jobs carry the user's local wall-clock times together
// with their IANA zone, never a zone offset snapshotted at enable time, so
// Daylight-Saving transitions move the fire instant with the user's clock.
// An unresolvable timezone fails only this user, never a batch.
func (s *CheckpointService) EnableDailyNotifications(ctx context.Context, email string) error {
	prefs, err := s.prefs.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	loc, err := timezone.Location(prefs.Timezone)
	if err != nil {
		return err
	}

	for checkpoint, local := range domain.CheckpointTimes {
		job := &domain.ScheduledJob{
			ID:       domain.CheckpointJobID(email, checkpoint),
			Hour:     local.Hour,
			Minute:   local.Minute,
			Timezone: loc.String(),
			Handler:  HandlerCheckpoint,
			Args: map[string]string{
				"email":      email,
				"checkpoint": string(checkpoint),
			},
			UserEmail: email,
			Purpose:   "daily checkpoint",
		}
		if err := s.sched.UpsertCronJob(ctx, job); err != nil {
			return fmt.Errorf("failed to schedule %s checkpoint for %s: %w", checkpoint, email, err)
		}
	}

	if err := s.prefs.SetNotificationsEnabled(ctx, email, true); err != nil {
		return err
	}

	s.log.Info("Daily notifications enabled", "user", email, "timezone", prefs.Timezone)
	return nil
}

// DisableDailyNotifications flips the preference off and removes the user's
// recurring checkpoint jobs. Pending one-shot reminders stay stored; the
// disabled preference suppresses them at delivery time.
func (s *CheckpointService) DisableDailyNotifications(ctx context.Context, email string) error {
	for checkpoint := range domain.CheckpointTimes {
		if err := s.sched.RemoveJob(ctx, domain.CheckpointJobID(email, checkpoint)); err != nil {
			return fmt.Errorf("failed to remove %s checkpoint for %s: %w", checkpoint, email, err)
		}
	}

	if err := s.prefs.SetNotificationsEnabled(ctx, email, false); err != nil {
		return err
	}

	s.log.Info("Daily notifications disabled", "user", email)
	return nil
}

// RegisterDeviceToken binds a push device token to a user
func (s *CheckpointService) RegisterDeviceToken(ctx context.Context, email, deviceToken string) error {
	if deviceToken == "" {
		return apperrors.NewValidationError("device token is empty", nil)
	}
	if err := s.prefs.SetDeviceToken(ctx, email, deviceToken); err != nil {
		return err
	}
	s.log.Info("Device token registered", "user", email)
	return nil
}

// isPrecondition reports whether err is one of the expected cheap failures
func isPrecondition(err error) bool {
	return apperrors.IsUserNotFound(err) || apperrors.IsTokenNotFound(err) || apperrors.IsNotificationDisabled(err)
}
