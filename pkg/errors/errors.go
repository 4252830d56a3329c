package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Engine error codes. Nothing in the engine is fatal to the host
// process; every failure degrades to "item left in its current state,
// re-evaluated next cycle".
const (
	ErrProtocolNotFound ErrorCode = iota + 1000
	ErrNotReady
	ErrNoWindowMatch
	ErrConcurrentUpdateConflict
	ErrNotificationDelivery
	ErrNotFound
	ErrBadRequest
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ProtocolNotFound: no template matches the episode. Reported to the
// caller, generation skipped; the episode is left without auto
// scheduling.
func ProtocolNotFound(conditionType, cancerType string) *AppError {
	return &AppError{
		Code:    ErrProtocolNotFound,
		Message: fmt.Sprintf("no surveillance protocol for condition %q cancer type %q", conditionType, cancerType),
	}
}

// NotReady: the anchor date is missing. Expansion is deferred, not
// failed; the trigger is retried when the treatment is dated.
func NotReady(reason string) *AppError {
	return &AppError{
		Code:    ErrNotReady,
		Message: reason,
	}
}

// ConcurrentUpdateConflict: an optimistic-update precondition failed.
// Retried once by the service layer, then reported.
func ConcurrentUpdateConflict(scheduleID string) *AppError {
	return &AppError{
		Code:    ErrConcurrentUpdateConflict,
		Message: fmt.Sprintf("schedule %s was modified concurrently", scheduleID),
	}
}

// NotificationDelivery: the sink timed out or errored. The caller leaves
// the sent flag unset so the next cycle retries.
func NotificationDelivery(err error) *AppError {
	return &AppError{
		Code:    ErrNotificationDelivery,
		Message: "notification delivery failed",
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

// IsCode reports whether err carries the given engine code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == code
}
