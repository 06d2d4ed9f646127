package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRetryLimited is returned when a booking has failed provider retries too often recently
var ErrRetryLimited = errors.New("too many failed provider retries")

// FailedRetryCounter counts recent failed provider retries for a booking
type FailedRetryCounter interface {
	CountFailedRetries(ctx context.Context, bookingID uuid.UUID, since time.Time) (int, time.Time, error)
}

// RetryLimitConfig holds provider retry limiting configuration
type RetryLimitConfig struct {
	MaxFailures int           // Failed retries allowed per booking
	Window      time.Duration // Time window the failures are counted in
}

// DefaultRetryLimitConfig returns the default retry limit configuration
func DefaultRetryLimitConfig() RetryLimitConfig {
	return RetryLimitConfig{
		MaxFailures: 5,                // 5 failures
		Window:      15 * time.Minute, // per 15 minutes
	}
}

// RateLimitError represents a retry limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return ErrRetryLimited
}

// RetryLimiter stops operators from hammering the provider for a booking it keeps refusing.
// Failures are read back from the audit trail, so the limit holds across instances.
type RetryLimiter struct {
	counter FailedRetryCounter
	config  RetryLimitConfig
	now     func() time.Time
}

// NewRetryLimiter creates a new retry limiter. Non-positive config values fall back to the defaults.
func NewRetryLimiter(counter FailedRetryCounter, config RetryLimitConfig) *RetryLimiter {
	defaults := DefaultRetryLimitConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	return &RetryLimiter{
		counter: counter,
		config:  config,
		now:     time.Now,
	}
}

// Check returns a *RateLimitError once the booking reached MaxFailures within Window
func (l *RetryLimiter) Check(ctx context.Context, bookingID uuid.UUID) error {
	count, lastFailure, err := l.counter.CountFailedRetries(ctx, bookingID, l.now().Add(-l.config.Window))
	if err != nil {
		return fmt.Errorf("failed to check retry limit: %w", err)
	}

	if count >= l.config.MaxFailures {
		retryAfter := lastFailure.Add(l.config.Window)
		return &RateLimitError{
			Message:    fmt.Sprintf("Provider retry failed %d times for this booking. Please try again after %s", count, retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
		}
	}

	return nil
}
