package services

import (
	"errors"
	"fmt"

	"github.com/voyago/booking-backend/internal/models"
)

var (
	// ErrNotFound is returned when the booking does not exist
	ErrNotFound = errors.New("booking not found")

	// ErrInvalidTransition is returned when the target status is not reachable from the current one
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrForbidden is returned when the actor lacks the kind's manage permission
	ErrForbidden = errors.New("insufficient permissions")

	// ErrInvalidState is returned when reconciliation is requested for a booking that is not pending reconciliation
	ErrInvalidState = errors.New("booking is not pending reconciliation")

	// ErrProviderRetryFailed is returned when the provider did not confirm a retried booking
	ErrProviderRetryFailed = errors.New("provider retry failed")

	// ErrValidation is returned for malformed requests
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the booking changed between load and write. Reload and retry.
	ErrConflict = errors.New("booking was modified by another request")
)

// TransitionError names the rejected move
type TransitionError struct {
	Kind models.BookingKind
	From models.BookingStatus
	To   models.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change %s booking status from %s to %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
