package service

import (
	"context"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/metrics"
	"github.com/pulseplan/go-nudge-service/internal/push"
	apperrors "github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
)

// Fixed platform presentation hints; not user-configurable.
const (
	pushChannelID = "nudges"
	pushSound     = "default"
	pushBadge     = 1
)

// deliveryPrefsStore is the preference access the gateway needs
type deliveryPrefsStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.UserPreferences, error)
	ClearDeviceToken(ctx context.Context, email string) error
}

// DeliveryService is the gateway to the push provider. It checks cheap
// preconditions, classifies provider failures, and self-heals invalid
// tokens. It never retries: a duplicate push is worse than a missed one, and
// retry policy belongs to the scheduler's misfire handling.
type DeliveryService struct {
	prefs deliveryPrefsStore
	push  push.Client
	log   *logger.Logger
}

// NewDeliveryService creates a new delivery gateway
func NewDeliveryService(prefs deliveryPrefsStore, pushClient push.Client, log *logger.Logger) *DeliveryService {
	return &DeliveryService{
		prefs: prefs,
		push:  pushClient,
		log:   log,
	}
}

// Preconditions checks the cheap failure modes before any lock claim or
// provider call: unknown user, missing token, disabled preference. All three
// are expected, frequent outcomes for callers to log at warning level.
func (s *DeliveryService) Preconditions(ctx context.Context, email string) (*domain.UserPreferences, error) {
	prefs, err := s.prefs.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !prefs.NotificationsEnabled {
		return nil, apperrors.NewNotificationDisabledError(email)
	}
	if prefs.DeviceToken == "" {
		return nil, apperrors.NewTokenNotFoundError(email)
	}
	return prefs, nil
}

// Send delivers one message to the user's device and returns the provider
// message id
func (s *DeliveryService) Send(ctx context.Context, email, notificationType string, msg domain.Message) (string, error) {
	prefs, err := s.Preconditions(ctx, email)
	if err != nil {
		return "", err
	}

	start := time.Now()
	messageID, err := s.push.Send(ctx, &push.Message{
		Token: prefs.DeviceToken,
		Notification: push.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: map[string]string{
			"type": "nudge",
			"user": email,
		},
		ChannelID: pushChannelID,
		Sound:     pushSound,
		Badge:     pushBadge,
	})
	metrics.DeliveryDuration.WithLabelValues(notificationType).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", s.classifySendError(ctx, email, err)
	}

	s.log.Info("Nudge delivered", "user", email, "type", notificationType, "message_id", messageID)
	return messageID, nil
}

// classifySendError maps a provider failure onto the notification error
// taxonomy, clearing the stored token when the provider reports it invalid
func (s *DeliveryService) classifySendError(ctx context.Context, email string, err error) error {
	provErr, ok := err.(*push.ProviderError)
	if !ok {
		return apperrors.NewNotificationError(apperrors.KindUnexpected, err.Error())
	}

	switch provErr.Kind {
	case push.ErrorInvalidToken:
		if clearErr := s.prefs.ClearDeviceToken(ctx, email); clearErr != nil {
			s.log.Error("Failed to clear invalid device token", "error", clearErr, "user", email)
		} else {
			metrics.TokensCleared.Inc()
			s.log.Warn("Cleared invalid device token", "user", email)
		}
		return apperrors.NewNotificationError(apperrors.KindInvalidToken, provErr.Message)
	case push.ErrorUnregistered:
		return apperrors.NewNotificationError(apperrors.KindTokenNotFound, provErr.Message)
	default:
		return apperrors.NewNotificationError(apperrors.KindUnexpected, provErr.Message)
	}
}
