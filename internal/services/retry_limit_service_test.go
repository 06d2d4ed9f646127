package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyago/booking-backend/internal/models"
	"github.com/voyago/booking-backend/pkg/provider"
)

type stubRetryCounter struct {
	count int
	last  time.Time
	err   error
	since time.Time
}

func (s *stubRetryCounter) CountFailedRetries(ctx context.Context, bookingID uuid.UUID, since time.Time) (int, time.Time, error) {
	s.since = since
	return s.count, s.last, s.err
}

func TestRetryLimiter_UnderLimit(t *testing.T) {
	counter := &stubRetryCounter{count: 4, last: time.Now()}
	limiter := NewRetryLimiter(counter, RetryLimitConfig{MaxFailures: 5, Window: 10 * time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.NoError(t, limiter.Check(context.Background(), uuid.New()))
	assert.Equal(t, now.Add(-10*time.Minute), counter.since)
}

func TestRetryLimiter_Exceeded(t *testing.T) {
	last := time.Now().Add(-2 * time.Minute)
	limiter := NewRetryLimiter(&stubRetryCounter{count: 5, last: last}, RetryLimitConfig{MaxFailures: 5, Window: 10 * time.Minute})

	err := limiter.Check(context.Background(), uuid.New())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryLimited)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, last.Add(10*time.Minute), rle.RetryAfter)
	assert.Contains(t, rle.Message, "5 times")
}

func TestRetryLimiter_CounterError(t *testing.T) {
	limiter := NewRetryLimiter(&stubRetryCounter{err: errInjected}, DefaultRetryLimitConfig())

	err := limiter.Check(context.Background(), uuid.New())

	assert.ErrorIs(t, err, errInjected)
	assert.NotErrorIs(t, err, ErrRetryLimited)
}

func TestNewRetryLimiter_Defaults(t *testing.T) {
	limiter := NewRetryLimiter(&stubRetryCounter{}, RetryLimitConfig{})
	assert.Equal(t, DefaultRetryLimitConfig(), limiter.config)
}

func TestReconcile_RetryLimitedSkipsProvider(t *testing.T) {
	f := newFixture(t)
	actor := operator(models.BookingKindHotel)
	b := parkHotelBooking(t, f, actor)
	f.reconciler.WithRetryLimiter(NewRetryLimiter(&stubRetryCounter{count: 3, last: time.Now()}, RetryLimitConfig{MaxFailures: 3, Window: time.Minute}))

	_, err := f.reconciler.Resolve(context.Background(), ReconcileRequest{BookingID: b.ID, Action: ReconcileActionRetry, Actor: actor})

	assert.ErrorIs(t, err, ErrRetryLimited)
	assert.Equal(t, 0, f.provider.callCount())
	assert.Equal(t, models.BookingStatusPendingReconciliation, f.store.booking(models.BookingKindHotel, b.ID).Status)
}

func TestReconcile_RetryLimitDoesNotBlockRefund(t *testing.T) {
	f := newFixture(t)
	actor := operator(models.BookingKindHotel)
	b := parkHotelBooking(t, f, actor)
	f.reconciler.WithRetryLimiter(NewRetryLimiter(&stubRetryCounter{count: 10, last: time.Now()}, RetryLimitConfig{MaxFailures: 1, Window: time.Minute}))

	updated, err := f.reconciler.Resolve(context.Background(), ReconcileRequest{BookingID: b.ID, Action: ReconcileActionRefund, Reason: "give up", Actor: actor})

	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, updated.Status)
}

func TestReconcile_RetryLimitCheckFailureStillCallsProvider(t *testing.T) {
	f := newFixture(t)
	actor := operator(models.BookingKindHotel)
	b := parkHotelBooking(t, f, actor)
	f.provider.result = &provider.ConfirmResult{Confirmed: true, ProviderStatus: "CONFIRMED"}
	f.reconciler.WithRetryLimiter(NewRetryLimiter(&stubRetryCounter{err: errInjected}, DefaultRetryLimitConfig()))

	updated, err := f.reconciler.Resolve(context.Background(), ReconcileRequest{BookingID: b.ID, Action: ReconcileActionRetry, Actor: actor})

	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, updated.Status)
	assert.Equal(t, 1, f.provider.callCount())
	f.dispatcher.Wait()
	assert.Contains(t, f.logs.String(), "Retry limit check failed")
}
