// Package scheduler is the in-process trigger engine. Recurring checkpoint
// jobs ride a cron runner; one-shot reminder jobs ride a poll loop over the
// durable store. Every stored job survives process restarts: the trigger
// table is rebuilt from the store on Start.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/metrics"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
	"github.com/pulseplan/go-nudge-service/internal/timezone"
	"github.com/robfig/cron/v3"
)

// JobStore is the durable job store backing the trigger table
type JobStore interface {
	Upsert(ctx context.Context, job *domain.ScheduledJob) error
	FindAll(ctx context.Context) ([]*domain.ScheduledJob, error)
	FindDueDateJobs(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error)
	MarkFired(ctx context.Context, id string, firedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, email string) (int64, error)
}

// HandlerFunc executes one fired job. Handlers run on their own goroutine
// with a bounded context; an error return is logged, never retried here.
type HandlerFunc func(ctx context.Context, job *domain.ScheduledJob) error

// Options tunes the trigger engine
type Options struct {
	// MisfireGrace bounds how late a due one-shot job may still run. A due
	// job older than this is skipped, never sent late.
	MisfireGrace time.Duration
	// PollInterval is how often the date-job poll loop wakes.
	PollInterval time.Duration
	// RunTimeout bounds one handler invocation.
	RunTimeout time.Duration
}

// NudgeScheduler drives recurring checkpoint jobs and one-shot reminder jobs.
// It is constructed explicitly and owns an explicit Start/Stop lifecycle tied
// to process startup and shutdown.
type NudgeScheduler struct {
	cron  *cron.Cron
	store JobStore
	log   *logger.Logger
	opts  Options

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	entries  map[string]cron.EntryID // job id -> live cron entry
	owners   map[string]string       // job id -> owning user email

	stopCh  chan struct{}
	stopped sync.Once
	now     func() time.Time
}

// NewNudgeScheduler creates a new scheduler over an injected durable store
func NewNudgeScheduler(store JobStore, log *logger.Logger, opts Options) *NudgeScheduler {
	if opts.MisfireGrace <= 0 {
		opts.MisfireGrace = 15 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = time.Minute
	}

	return &NudgeScheduler{
		// Zone-less specs evaluate in UTC, never in the host's local zone.
		cron:     cron.New(cron.WithLocation(time.UTC)),
		store:    store,
		log:      log,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		entries:  make(map[string]cron.EntryID),
		owners:   make(map[string]string),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// RegisterHandler registers a named job handler. Handlers must be registered
// before Start so persisted jobs can rebind to them.
func (s *NudgeScheduler) RegisterHandler(name string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
}

// Start rebuilds the trigger table from the durable store and begins firing
func (s *NudgeScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting nudge scheduler")

	jobs, err := s.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load job store: %w", err)
	}

	registered := 0
	for _, job := range jobs {
		if job.Kind != domain.JobKindCron {
			continue
		}
		if err := s.registerCron(job); err != nil {
			s.log.Error("Failed to register cron job", "error", err, "job_id", job.ID)
			continue
		}
		registered++
	}

	s.cron.Start()
	go s.pollLoop()

	s.log.Info("Nudge scheduler started", "cron_jobs", registered)
	return nil
}

// Stop halts the trigger table. In-flight handlers finish on their own.
func (s *NudgeScheduler) Stop() {
	s.stopped.Do(func() {
		s.log.Info("Stopping nudge scheduler")
		close(s.stopCh)
		s.cron.Stop()
	})
}

// UpsertCronJob stores and registers a recurring job. A job sharing the same
// id is replaced, both in the store and in the live trigger table, so the
// call is idempotent.
func (s *NudgeScheduler) UpsertCronJob(ctx context.Context, job *domain.ScheduledJob) error {
	job.Kind = domain.JobKindCron
	job.RunAt = nil

	if err := s.checkHandler(job.Handler); err != nil {
		return err
	}
	if job.Hour < 0 || job.Hour > 23 || job.Minute < 0 || job.Minute > 59 {
		return fmt.Errorf("invalid trigger time %02d:%02d for job %s", job.Hour, job.Minute, job.ID)
	}
	if job.Timezone != "" {
		loc, err := timezone.Location(job.Timezone)
		if err != nil {
			return err
		}
		job.Timezone = loc.String()
	}

	if err := s.store.Upsert(ctx, job); err != nil {
		return err
	}
	return s.registerCron(job)
}

// ScheduleOnce stores a one-shot job. A past run time is a logged skip, not
// an error; re-scheduling an existing id replaces the stored job.
func (s *NudgeScheduler) ScheduleOnce(ctx context.Context, job *domain.ScheduledJob) error {
	job.Kind = domain.JobKindDate

	if err := s.checkHandler(job.Handler); err != nil {
		return err
	}
	if job.RunAt == nil {
		return fmt.Errorf("one-shot job %s has no run time", job.ID)
	}
	if job.RunAt.Before(s.now()) {
		s.log.Warn("Skipping one-shot job with past run time", "job_id", job.ID, "run_at", job.RunAt)
		return nil
	}

	return s.store.Upsert(ctx, job)
}

// RemoveJob drops a job from the store and the live trigger table
func (s *NudgeScheduler) RemoveJob(ctx context.Context, id string) error {
	s.unregisterCron(id)
	return s.store.Delete(ctx, id)
}

// RemoveUserJobs drops every job owned by a user
func (s *NudgeScheduler) RemoveUserJobs(ctx context.Context, email string) (int64, error) {
	s.mu.Lock()
	var ids []string
	for id, owner := range s.owners {
		if owner == email {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.unregisterCron(id)
	}

	return s.store.DeleteByUser(ctx, email)
}

func (s *NudgeScheduler) checkHandler(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[name]; !ok {
		return fmt.Errorf("no handler registered as %q", name)
	}
	return nil
}

// registerCron installs one live trigger. The spec carries the job's own
// zone, so the fire instant follows the user's wall clock across
// Daylight-Saving transitions instead of a zone offset frozen at enable time.
func (s *NudgeScheduler) registerCron(job *domain.ScheduledJob) error {
	spec := fmt.Sprintf("%d %d * * *", job.Minute, job.Hour)
	if job.Timezone != "" {
		spec = fmt.Sprintf("CRON_TZ=%s %s", job.Timezone, spec)
	}

	captured := *job
	entryID, err := s.cron.AddFunc(spec, func() {
		s.dispatch(&captured)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if old, exists := s.entries[job.ID]; exists {
		s.cron.Remove(old)
	}
	s.entries[job.ID] = entryID
	s.owners[job.ID] = job.UserEmail
	metrics.ActiveCronJobs.Set(float64(len(s.entries)))
	s.mu.Unlock()

	s.log.Info("Registered cron job", "job_id", job.ID, "spec", spec, "purpose", job.Purpose)
	return nil
}

func (s *NudgeScheduler) unregisterCron(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, exists := s.entries[id]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, id)
		delete(s.owners, id)
		metrics.ActiveCronJobs.Set(float64(len(s.entries)))
	}
}

// pollLoop wakes periodically and fires due one-shot jobs
func (s *NudgeScheduler) pollLoop() {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// Fire anything that came due while the process was down.
	s.pollDateJobs()

	for {
		select {
		case <-ticker.C:
			s.pollDateJobs()
		case <-s.stopCh:
			return
		}
	}
}

// pollDateJobs claims and dispatches due one-shot jobs. A due job inside the
// misfire grace window is coalesced and run once; older jobs are skipped
// outright and never sent late.
func (s *NudgeScheduler) pollDateJobs() {
	now := s.now()
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PollInterval)
	defer cancel()

	due, err := s.store.FindDueDateJobs(ctx, now)
	if err != nil {
		s.log.Error("Failed to query due jobs", "error", err)
		return
	}

	for _, job := range due {
		fired, err := s.store.MarkFired(ctx, job.ID, now)
		if err != nil {
			s.log.Error("Failed to claim due job", "error", err, "job_id", job.ID)
			continue
		}
		if !fired {
			// Another poller won the claim.
			continue
		}

		age := now.Sub(*job.RunAt)
		if age > s.opts.MisfireGrace {
			metrics.SchedulerMisfires.WithLabelValues("skipped").Inc()
			s.log.Warn("Skipping job past misfire grace", "job_id", job.ID, "late_by", age)
			continue
		}
		if age > 2*s.opts.PollInterval {
			metrics.SchedulerMisfires.WithLabelValues("coalesced").Inc()
			s.log.Info("Coalescing late job", "job_id", job.ID, "late_by", age)
		}

		s.dispatch(job)
	}
}

// dispatch runs a fired job as an independent asynchronous task. A panic or
// error in one handler never reaches the trigger table or any other job.
func (s *NudgeScheduler) dispatch(job *domain.ScheduledJob) {
	s.mu.Lock()
	handler, ok := s.handlers[job.Handler]
	s.mu.Unlock()

	runID := uuid.NewString()
	if !ok {
		s.log.Error("Fired job has no registered handler", "job_id", job.ID, "handler", job.Handler, "run_id", runID)
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Job handler panicked", "job_id", job.ID, "handler", job.Handler, "run_id", runID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
		defer cancel()

		s.log.Debug("Dispatching job", "job_id", job.ID, "handler", job.Handler, "run_id", runID, "user", job.UserEmail)
		if err := handler(ctx, job); err != nil {
			s.log.Error("Job handler failed", "error", err, "job_id", job.ID, "run_id", runID)
		}
	}()
}
