package service

import (
	"context"
	"sync"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/push"
	apperrors "github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakePrefsStore backs accountStore, deliveryPrefsStore and
// checkpointPrefsStore with an in-memory map keyed by email
type fakePrefsStore struct {
	mu    sync.Mutex
	users map[string]*domain.UserPreferences
}

func newFakePrefsStore(users ...*domain.UserPreferences) *fakePrefsStore {
	s := &fakePrefsStore{users: make(map[string]*domain.UserPreferences)}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *fakePrefsStore) GetByEmail(_ context.Context, email string) (*domain.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, apperrors.NewUserNotFoundError(email)
	}
	copied := *u
	return &copied, nil
}

func (s *fakePrefsStore) FindByDeviceToken(_ context.Context, deviceToken string) ([]*domain.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.UserPreferences
	for _, u := range s.users {
		if u.DeviceToken == deviceToken {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakePrefsStore) ClearDeviceToken(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.DeviceToken = ""
	}
	return nil
}

func (s *fakePrefsStore) SetDeviceToken(_ context.Context, email, deviceToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		u = &domain.UserPreferences{Email: email}
		s.users[email] = u
	}
	u.DeviceToken = deviceToken
	return nil
}

func (s *fakePrefsStore) SetNotificationsEnabled(_ context.Context, email string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		u = &domain.UserPreferences{Email: email}
		s.users[email] = u
	}
	u.NotificationsEnabled = enabled
	return nil
}

// fakePushClient records sent messages and fails on demand
type fakePushClient struct {
	mu   sync.Mutex
	sent []*push.Message
	err  error
}

func (c *fakePushClient) Send(_ context.Context, msg *push.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, msg)
	return "msg-1", nil
}

// fakeLocks mirrors the device lock repository's insert-if-absent semantics
type fakeLocks struct {
	mu     sync.Mutex
	claims map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{claims: make(map[string]bool)}
}

func (l *fakeLocks) TryClaim(_ context.Context, deviceToken, notificationType, date string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := domain.DeviceLockID(deviceToken, notificationType, date)
	if l.claims[id] {
		return false, nil
	}
	l.claims[id] = true
	return true, nil
}

// fakeStats returns a fixed snapshot per user
type fakeStats struct {
	snapshots map[string]*domain.CompletionSnapshot
}

func (s *fakeStats) GetByEmail(_ context.Context, email string) (*domain.CompletionSnapshot, error) {
	if snap, ok := s.snapshots[email]; ok {
		return snap, nil
	}
	return &domain.CompletionSnapshot{UserEmail: email}, nil
}

// fakeHistory collects send-attempt records
type fakeHistory struct {
	mu      sync.Mutex
	records []*domain.HistoryRecord
	bodies  []string
}

func (h *fakeHistory) Create(_ context.Context, record *domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *fakeHistory) RecentBodies(_ context.Context, _ string, _ int) ([]string, error) {
	return h.bodies, nil
}

func (h *fakeHistory) byStatus(status domain.HistoryStatus) []*domain.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*domain.HistoryRecord
	for _, r := range h.records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// fakeSched records scheduled and removed jobs keyed by id
type fakeSched struct {
	mu      sync.Mutex
	jobs    map[string]*domain.ScheduledJob
	removed []string
}

func newFakeSched() *fakeSched {
	return &fakeSched{jobs: make(map[string]*domain.ScheduledJob)}
}

func (s *fakeSched) UpsertCronJob(_ context.Context, job *domain.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Kind = domain.JobKindCron
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeSched) ScheduleOnce(_ context.Context, job *domain.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Kind = domain.JobKindDate
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeSched) RemoveJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	s.removed = append(s.removed, id)
	return nil
}

// fakeGoalStore serves goals by id
type fakeGoalStore struct {
	goals map[string]*domain.Goal
}

func (s *fakeGoalStore) FindByID(_ context.Context, goalID string) (*domain.Goal, error) {
	if g, ok := s.goals[goalID]; ok {
		return g, nil
	}
	return nil, apperrors.NewGoalNotFoundError(goalID)
}

// fakeNudgeStore keeps nudge records keyed by job id
type fakeNudgeStore struct {
	mu    sync.Mutex
	byJob map[string]*domain.NudgeRecord
}

func newFakeNudgeStore() *fakeNudgeStore {
	return &fakeNudgeStore{byJob: make(map[string]*domain.NudgeRecord)}
}

func (s *fakeNudgeStore) Create(_ context.Context, nudge *domain.NudgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nudge.ID = primitive.NewObjectID()
	s.byJob[nudge.JobID] = nudge
	return nil
}

func (s *fakeNudgeStore) FindByJobID(_ context.Context, jobID string) (*domain.NudgeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byJob[jobID]; ok {
		copied := *n
		return &copied, nil
	}
	return nil, apperrors.NewInternalError("nudge not found", nil)
}

func (s *fakeNudgeStore) DeleteByJobID(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byJob, jobID)
	return nil
}

func (s *fakeNudgeStore) UpdateStatus(_ context.Context, id primitive.ObjectID, status domain.NudgeStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.byJob {
		if n.ID == id && n.Status == domain.NudgeStatusPending {
			n.Status = status
			n.Error = errorMsg
		}
	}
	return nil
}

// generatorFunc adapts a function to the TextGenerator interface
type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
