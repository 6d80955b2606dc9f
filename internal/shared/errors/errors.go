package errors

import (
	"errors"
	"fmt"
)

// AppError represents an application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Error codes for the delivery pipeline. Precondition failures (unknown user,
// missing token, disabled notifications) are expected, frequent outcomes, not
// incidents.
const (
	CodeConfiguration        = "CONFIGURATION_ERROR"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeTokenNotFound        = "TOKEN_NOT_FOUND"
	CodeNotificationDisabled = "NOTIFICATION_DISABLED"
	CodeGoalNotFound         = "GOAL_NOT_FOUND"
	CodeNotification         = "NOTIFICATION_ERROR"
	CodeValidation           = "VALIDATION_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

// NotificationErrorKind classifies provider-side delivery failures
type NotificationErrorKind string

const (
	// KindInvalidToken means the provider rejected the token as invalid or
	// expired; the stored token is cleared before this error is returned.
	KindInvalidToken NotificationErrorKind = "invalid_token"
	// KindTokenNotFound means the provider does not recognize the token.
	KindTokenNotFound NotificationErrorKind = "token_not_found"
	// KindUnexpected covers every other provider failure; the original
	// provider message is retained for diagnostics.
	KindUnexpected NotificationErrorKind = "unexpected"
)

// NotificationError represents a classified provider delivery failure
type NotificationError struct {
	Kind            NotificationErrorKind
	ProviderMessage string
}

// Error implements the error interface
func (e *NotificationError) Error() string {
	if e.ProviderMessage != "" {
		return fmt.Sprintf("%s: %s - %s", CodeNotification, e.Kind, e.ProviderMessage)
	}
	return fmt.Sprintf("%s: %s", CodeNotification, e.Kind)
}

// NewConfigurationError reports an unresolvable configuration value, such as
// a timezone identifier that cannot be loaded
func NewConfigurationError(message string, err error) *AppError {
	return &AppError{Code: CodeConfiguration, Message: message, Err: err}
}

// NewUserNotFoundError reports a user with no preference record on file
func NewUserNotFoundError(email string) *AppError {
	return &AppError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user record for %s", email)}
}

// NewTokenNotFoundError reports a user with no device token on file
func NewTokenNotFoundError(email string) *AppError {
	return &AppError{Code: CodeTokenNotFound, Message: fmt.Sprintf("no device token for %s", email)}
}

// NewNotificationDisabledError reports a user who has disabled notifications
func NewNotificationDisabledError(email string) *AppError {
	return &AppError{Code: CodeNotificationDisabled, Message: fmt.Sprintf("notifications disabled for %s", email)}
}

// NewGoalNotFoundError reports a goal id that does not resolve
func NewGoalNotFoundError(goalID string) *AppError {
	return &AppError{Code: CodeGoalNotFound, Message: fmt.Sprintf("no goal with id %s", goalID)}
}

// NewNotificationError creates a classified provider failure
func NewNotificationError(kind NotificationErrorKind, providerMessage string) *NotificationError {
	return &NotificationError{Kind: kind, ProviderMessage: providerMessage}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsUserNotFound reports whether err is a missing-user precondition failure
func IsUserNotFound(err error) bool { return HasCode(err, CodeUserNotFound) }

// IsTokenNotFound reports whether err is a missing-token precondition failure
func IsTokenNotFound(err error) bool { return HasCode(err, CodeTokenNotFound) }

// IsNotificationDisabled reports whether err is a disabled-preference precondition failure
func IsNotificationDisabled(err error) bool { return HasCode(err, CodeNotificationDisabled) }

// IsGoalNotFound reports whether err is a missing-goal failure
func IsGoalNotFound(err error) bool { return HasCode(err, CodeGoalNotFound) }

// NotificationKind extracts the failure kind from a classified provider
// error; ok is false when err is not a NotificationError
func NotificationKind(err error) (NotificationErrorKind, bool) {
	var notifErr *NotificationError
	if errors.As(err, &notifErr) {
		return notifErr.Kind, true
	}
	return "", false
}
