package models

import (
	"time"

	"github.com/google/uuid"
)

// StatusLog is one append-only entry in a booking's status history
type StatusLog struct {
	ID            int64          `json:"id" db:"id"`
	BookingID     uuid.UUID      `json:"booking_id" db:"booking_id"`
	FromStatus    *BookingStatus `json:"from_status" db:"from_status"`
	ToStatus      BookingStatus  `json:"to_status" db:"to_status"`
	Reason        *string        `json:"reason,omitempty" db:"reason"`
	ChangedByID   uuid.UUID      `json:"changed_by_id" db:"changed_by_id"`
	ChangedByName string         `json:"changed_by_name" db:"changed_by_name"`
	Metadata      JSONB          `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// StatusChange is everything the atomic status+log write needs.
// From is the status the caller validated against; the write fails if the row moved on.
type StatusChange struct {
	BookingID    uuid.UUID
	From         BookingStatus
	To           BookingStatus
	Reason       *string
	RefundAmount *float64
	Actor        Actor
	Metadata     JSONB
	Outbox       []OutboxEvent
	At           time.Time
}

// Cancels reports whether the change lands on the cancellation terminal
func (c *StatusChange) Cancels() bool {
	return c.To == BookingStatusCancelled
}

// StatusMismatch is a booking whose latest status log disagrees with its status
type StatusMismatch struct {
	Kind             BookingKind   `json:"kind" db:"-"`
	BookingID        uuid.UUID     `json:"booking_id" db:"id"`
	BookingReference string        `json:"booking_reference" db:"booking_reference"`
	Status           BookingStatus `json:"status" db:"status"`
	LatestToStatus   BookingStatus `json:"latest_to_status" db:"latest_to_status"`
}
