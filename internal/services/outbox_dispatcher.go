package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/models"
)

// NotificationTrigger hands an event to the notification pipeline
type NotificationTrigger interface {
	Notify(ctx context.Context, eventType, kind string, bookingID uuid.UUID) error
}

// OutboxStore is the persistent side-effect queue
type OutboxStore interface {
	FetchPending(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// dispatchTimeout bounds one notification call
const dispatchTimeout = 10 * time.Second

// OutboxDispatcher delivers outbox events to the notification trigger.
// Events are tried right after commit and again by the scheduled drain until
// they succeed or run out of attempts, so delivery is at least once.
type OutboxDispatcher struct {
	store       OutboxStore
	trigger     NotificationTrigger
	logger      *logrus.Logger
	batchSize   int
	maxAttempts int
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewOutboxDispatcher creates a new outbox dispatcher
func NewOutboxDispatcher(store OutboxStore, trigger NotificationTrigger, logger *logrus.Logger, batchSize, maxAttempts int) *OutboxDispatcher {
	return &OutboxDispatcher{
		store:       store,
		trigger:     trigger,
		logger:      logger,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// DispatchAsync delivers freshly committed events in the background
func (d *OutboxDispatcher) DispatchAsync(events []models.OutboxEvent) {
	if len(events) == 0 {
		return
	}
	pending := make([]models.OutboxEvent, len(events))
	copy(pending, events)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Dispatch(context.Background(), pending)
	}()
}

// Dispatch delivers events one by one and returns how many succeeded
func (d *OutboxDispatcher) Dispatch(ctx context.Context, events []models.OutboxEvent) int {
	delivered := 0
	for _, event := range events {
		if d.deliver(ctx, event) {
			delivered++
		}
	}
	return delivered
}

func (d *OutboxDispatcher) deliver(ctx context.Context, event models.OutboxEvent) bool {
	callCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	entry := d.logger.WithFields(logrus.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"booking_kind": event.BookingKind,
		"booking_id":   event.BookingID,
	})

	if err := d.trigger.Notify(callCtx, event.EventType, string(event.BookingKind), event.BookingID); err != nil {
		entry.WithError(err).Warn("Notification dispatch failed, will retry")
		if markErr := d.store.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			entry.WithError(markErr).Error("Failed to record outbox failure")
		}
		return false
	}

	if err := d.store.MarkDispatched(ctx, event.ID, d.now()); err != nil {
		// Delivered but not marked: the drain will send it again
		entry.WithError(err).Error("Failed to mark outbox event dispatched")
	}
	return true
}

// Drain delivers one batch of pending events and returns how many were delivered
func (d *OutboxDispatcher) Drain(ctx context.Context) (int, error) {
	events, err := d.store.FetchPending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		return 0, err
	}
	return d.Dispatch(ctx, events), nil
}

// Wait blocks until background dispatches have finished
func (d *OutboxDispatcher) Wait() {
	d.wg.Wait()
}
