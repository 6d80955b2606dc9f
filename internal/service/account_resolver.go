package service

import (
	"context"
	"sort"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
)

// accountStore is the preference lookup the resolver needs
type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.UserPreferences, error)
	FindByDeviceToken(ctx context.Context, deviceToken string) ([]*domain.UserPreferences, error)
}

// AccountResolver decides which of the accounts sharing one device token
// currently owns the device. Ownership goes to the account that was seen
// most recently; a stale read here is self-correcting on the next checkpoint,
// so no locking is needed around the read-then-decide step.
type AccountResolver struct {
	prefs accountStore
	log   *logger.Logger
}

// NewAccountResolver creates a new account resolver
func NewAccountResolver(prefs accountStore, log *logger.Logger) *AccountResolver {
	return &AccountResolver{prefs: prefs, log: log}
}

// IsOwner reports whether the user is the current owner of their bound
// device. A user with no token on file owns nothing.
func (r *AccountResolver) IsOwner(ctx context.Context, email string) (bool, error) {
	prefs, err := r.prefs.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if prefs.DeviceToken == "" {
		return false, nil
	}

	accounts, err := r.prefs.FindByDeviceToken(ctx, prefs.DeviceToken)
	if err != nil {
		return false, err
	}

	owner := Owner(accounts)
	if owner == nil {
		return false, nil
	}
	return owner.Email == email, nil
}

// Owner selects the owning account from the set bound to one token. Accounts
// with a last-active timestamp are compared on it; when none has one the
// comparison falls back to last-updated, then creation time. Ties break on
// ascending email so the result is stable.
func Owner(accounts []*domain.UserPreferences) *domain.UserPreferences {
	if len(accounts) == 0 {
		return nil
	}

	candidates := accounts
	if active := withLastActive(accounts); len(active) > 0 {
		candidates = active
	}

	sorted := make([]*domain.UserPreferences, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := activityTime(sorted[i]), activityTime(sorted[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sorted[i].Email < sorted[j].Email
	})

	return sorted[0]
}

func withLastActive(accounts []*domain.UserPreferences) []*domain.UserPreferences {
	var out []*domain.UserPreferences
	for _, account := range accounts {
		if account.LastActiveAt != nil {
			out = append(out, account)
		}
	}
	return out
}

func activityTime(account *domain.UserPreferences) time.Time {
	if account.LastActiveAt != nil {
		return *account.LastActiveAt
	}
	if !account.UpdatedAt.IsZero() {
		return account.UpdatedAt
	}
	return account.CreatedAt
}
