package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/metrics"
	apperrors "github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandlerReminder is the scheduler handler name for one-shot reminder jobs
const HandlerReminder = "reminder"

// goalStore is the read-only goal access reminder derivation needs
type goalStore interface {
	FindByID(ctx context.Context, goalID string) (*domain.Goal, error)
}

// nudgeStore persists goal-linked reminder records
type nudgeStore interface {
	Create(ctx context.Context, nudge *domain.NudgeRecord) error
	FindByJobID(ctx context.Context, jobID string) (*domain.NudgeRecord, error)
	DeleteByJobID(ctx context.Context, jobID string) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.NudgeStatus, errorMsg string) error
}

// oneShotScheduler is the slice of the trigger engine reminders use
type oneShotScheduler interface {
	ScheduleOnce(ctx context.Context, job *domain.ScheduledJob) error
}

// ReminderService derives goal-linked one-shot reminders from action-item
// schedules and delivers them when their jobs fire
type ReminderService struct {
	goals    goalStore
	nudges   nudgeStore
	resolver ownerResolver
	locks    deviceLocker
	delivery deliverer
	sched    oneShotScheduler
	buffer   time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewReminderService creates a new reminder service. buffer is how long
// before an action item's end time the reminder fires.
func NewReminderService(
	goals goalStore,
	nudges nudgeStore,
	resolver ownerResolver,
	locks deviceLocker,
	delivery deliverer,
	sched oneShotScheduler,
	buffer time.Duration,
	log *logger.Logger,
) *ReminderService {
	return &ReminderService{
		goals:    goals,
		nudges:   nudges,
		resolver: resolver,
		locks:    locks,
		delivery: delivery,
		sched:    sched,
		buffer:   buffer,
		log:      log,
		now:      time.Now,
	}
}

// DeriveForGoal walks a goal's action items and schedules one reminder per
// future schedule entry, timed buffer before the entry's end. Entries missing
// a date or end time, or whose reminder time has already elapsed, are skipped.
// Job ids are deterministic in (user, reminder timestamp), so re-running for
// the same goal replaces rather than duplicates.
func (s *ReminderService) DeriveForGoal(ctx context.Context, goalID string) (int, error) {
	goal, err := s.goals.FindByID(ctx, goalID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	scheduled := 0
	for _, item := range goal.ActionItems {
		for _, entry := range item.Entries {
			runAt, ok := s.reminderTime(goal, item.Title, entry)
			if !ok {
				continue
			}
			if !runAt.After(now) {
				s.log.Debug("Skipping elapsed reminder", "goal", goal.ID, "item", item.Title, "run_at", runAt)
				continue
			}
			if err := s.scheduleReminder(ctx, goal, item.Title, entry, runAt); err != nil {
				return scheduled, err
			}
			scheduled++
		}
	}

	s.log.Info("Reminders derived for goal", "goal", goal.ID, "user", goal.UserEmail, "scheduled", scheduled)
	return scheduled, nil
}

// reminderTime computes when the reminder for one schedule entry should fire.
// ok is false when the entry carries no usable date or end time.
func (s *ReminderService) reminderTime(goal *domain.Goal, itemTitle string, entry domain.ScheduleEntry) (time.Time, bool) {
	date, ok := entry.Date.Time()
	if !ok {
		s.log.Debug("Skipping entry without a date", "goal", goal.ID, "item", itemTitle, "weekday", entry.Weekday)
		return time.Time{}, false
	}
	end, ok := entry.End.Combine(date)
	if !ok {
		s.log.Debug("Skipping entry without an end time", "goal", goal.ID, "item", itemTitle, "weekday", entry.Weekday)
		return time.Time{}, false
	}
	return end.Add(-s.buffer), true
}

func (s *ReminderService) scheduleReminder(ctx context.Context, goal *domain.Goal, itemTitle string, entry domain.ScheduleEntry, runAt time.Time) error {
	jobID := domain.ReminderJobID(goal.UserEmail, runAt)

	// Replace any record a previous derivation left for this slot.
	if err := s.nudges.DeleteByJobID(ctx, jobID); err != nil {
		return err
	}
	nudge := &domain.NudgeRecord{
		JobID:           jobID,
		UserEmail:       goal.UserEmail,
		GoalID:          goal.ID,
		ActionItemTitle: itemTitle,
		ScheduledTime:   runAt,
		Title:           "Almost time ⏰",
		Body:            reminderBody(itemTitle, entry),
		Status:          domain.NudgeStatusPending,
	}
	if err := s.nudges.Create(ctx, nudge); err != nil {
		return err
	}

	job := &domain.ScheduledJob{
		ID:        jobID,
		RunAt:     &runAt,
		Handler:   HandlerReminder,
		Args:      map[string]string{"email": goal.UserEmail},
		UserEmail: goal.UserEmail,
		Purpose:   "goal reminder",
		EntityID:  goal.ID,
	}
	return s.sched.ScheduleOnce(ctx, job)
}

func reminderBody(itemTitle string, entry domain.ScheduleEntry) string {
	if end, ok := entry.End.Time(); ok {
		return fmt.Sprintf("\"%s\" wraps up at %s. A few minutes left to finish strong!", itemTitle, end.Format("15:04"))
	}
	return fmt.Sprintf("\"%s\" is wrapping up soon. A few minutes left to finish strong!", itemTitle)
}

// HandleReminderJob is the scheduler handler for one-shot reminder jobs. It
// is gated the same way a checkpoint send is: preconditions, owner check,
// then a device slot claim scoped to this single reminder instance.
func (s *ReminderService) HandleReminderJob(ctx context.Context, job *domain.ScheduledJob) error {
	nudge, err := s.nudges.FindByJobID(ctx, job.ID)
	if err != nil {
		return err
	}
	if nudge.Status != domain.NudgeStatusPending {
		s.log.Debug("Reminder already resolved", "job_id", job.ID, "status", nudge.Status)
		return nil
	}

	prefs, err := s.delivery.Preconditions(ctx, nudge.UserEmail)
	if err != nil {
		if isPrecondition(err) {
			s.log.Warn("Reminder suppressed by precondition", "user", nudge.UserEmail, "job_id", job.ID, "reason", err)
			metrics.SendsSuppressed.WithLabelValues(HandlerReminder, "precondition").Inc()
			return s.nudges.UpdateStatus(ctx, nudge.ID, domain.NudgeStatusFailed, err.Error())
		}
		return err
	}

	owner, err := s.resolver.IsOwner(ctx, nudge.UserEmail)
	if err != nil {
		return err
	}
	if !owner {
		// The record stays pending; a later manual re-derivation can still
		// reach the user on their next device.
		metrics.SendsSuppressed.WithLabelValues(HandlerReminder, "not_owner").Inc()
		s.log.Debug("Reminder suppressed, user is not the device owner", "user", nudge.UserEmail, "job_id", job.ID)
		return nil
	}

	// Lock type embeds the reminder timestamp so two distinct reminders on
	// one day never collide, while a double-fire of this one dedups.
	lockType := fmt.Sprintf("reminder:%d", nudge.ScheduledTime.UTC().Unix())
	date := s.now().UTC().Format("2006-01-02")
	claimed, err := s.locks.TryClaim(ctx, prefs.DeviceToken, lockType, date)
	if err != nil {
		return apperrors.NewInternalError("device slot claim failed", err)
	}
	if !claimed {
		metrics.LockConflicts.Inc()
		metrics.SendsSuppressed.WithLabelValues(HandlerReminder, "duplicate").Inc()
		s.log.Debug("Reminder suppressed, slot already claimed", "user", nudge.UserEmail, "job_id", job.ID)
		return nil
	}

	msg := domain.Message{Title: nudge.Title, Body: nudge.Body}
	if _, err := s.delivery.Send(ctx, nudge.UserEmail, HandlerReminder, msg); err != nil {
		metrics.NudgesSent.WithLabelValues(HandlerReminder, "failed").Inc()
		if updateErr := s.nudges.UpdateStatus(ctx, nudge.ID, domain.NudgeStatusFailed, err.Error()); updateErr != nil {
			s.log.Error("Failed to mark reminder failed", "error", updateErr, "job_id", job.ID)
		}
		return err
	}

	metrics.NudgesSent.WithLabelValues(HandlerReminder, "sent").Inc()
	return s.nudges.UpdateStatus(ctx, nudge.ID, domain.NudgeStatusSent, "")
}
