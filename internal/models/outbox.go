package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a side effect recorded in the same transaction as a status change
// and delivered at least once afterwards.
type OutboxEvent struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	EventType    string      `json:"event_type" db:"event_type"`
	BookingKind  BookingKind `json:"booking_kind" db:"booking_kind"`
	BookingID    uuid.UUID   `json:"booking_id" db:"booking_id"`
	Payload      JSONB       `json:"payload,omitempty" db:"payload"`
	Attempts     int         `json:"attempts" db:"attempts"`
	LastError    *string     `json:"last_error,omitempty" db:"last_error"`
	DispatchedAt *time.Time  `json:"dispatched_at,omitempty" db:"dispatched_at"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// NewNotificationEvent builds the outbox row for a status notification
func NewNotificationEvent(kind BookingKind, bookingID uuid.UUID, status BookingStatus, at time.Time) OutboxEvent {
	return OutboxEvent{
		ID:          uuid.New(),
		EventType:   kind.NotificationEvent(status),
		BookingKind: kind,
		BookingID:   bookingID,
		Payload:     JSONB{"status": string(status)},
		CreatedAt:   at,
	}
}
