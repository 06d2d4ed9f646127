package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingKind identifies one of the booking families that share the lifecycle engine
type BookingKind string

const (
	BookingKindHotel    BookingKind = "hotel"
	BookingKindTour     BookingKind = "tour"
	BookingKindTransfer BookingKind = "transfer"
)

// AllBookingKinds lists every kind handled by the engine
var AllBookingKinds = []BookingKind{BookingKindHotel, BookingKindTour, BookingKindTransfer}

// ParseBookingKind accepts both the singular kind and the plural route segment ("hotels")
func ParseBookingKind(s string) (BookingKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hotel", "hotels":
		return BookingKindHotel, nil
	case "tour", "tours":
		return BookingKindTour, nil
	case "transfer", "transfers":
		return BookingKindTransfer, nil
	}
	return "", fmt.Errorf("unknown booking kind: %q", s)
}

// BookingTable returns the table that stores bookings of this kind
func (k BookingKind) BookingTable() string {
	return string(k) + "_bookings"
}

// StatusLogTable returns the append-only status log table of this kind
func (k BookingKind) StatusLogTable() string {
	return string(k) + "_booking_status_logs"
}

// ManagePermission returns the permission key required to change bookings of this kind
func (k BookingKind) ManagePermission() string {
	return "manage-" + string(k) + "-bookings"
}

// EntityType is the audit log entity type for bookings of this kind
func (k BookingKind) EntityType() string {
	return string(k) + "_booking"
}

// NotificationEvent builds the notification event type for a status, e.g. hotel_booking_confirmed
func (k BookingKind) NotificationEvent(status BookingStatus) string {
	return fmt.Sprintf("%s_booking_%s", k, status)
}

// BookingStatus is the union of every kind's status vocabulary.
// Which values are legal for a kind is decided by the transition tables.
type BookingStatus string

const (
	BookingStatusPending               BookingStatus = "pending"
	BookingStatusConfirmed             BookingStatus = "confirmed"
	BookingStatusCancelled             BookingStatus = "cancelled"
	BookingStatusCompleted             BookingStatus = "completed"
	BookingStatusNoShow                BookingStatus = "no_show"
	BookingStatusFailed                BookingStatus = "failed"
	BookingStatusPendingCancellation   BookingStatus = "pending_cancellation"
	BookingStatusCancellationFailed    BookingStatus = "cancellation_failed"
	BookingStatusPendingReconciliation BookingStatus = "pending_reconciliation"
)

// Booking is a hotel, tour or transfer booking row.
// Status is only ever written through the transition engine.
type Booking struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	Kind               BookingKind   `json:"kind" db:"-"`
	BookingReference   string        `json:"booking_reference" db:"booking_reference"`
	CustomerID         *uuid.UUID    `json:"customer_id,omitempty" db:"customer_id"`
	Status             BookingStatus `json:"status" db:"status"`
	Currency           string        `json:"currency" db:"currency"`
	NetPrice           float64       `json:"net_price" db:"net_price"`
	Markup             float64       `json:"markup" db:"markup"`
	SellingPrice       float64       `json:"selling_price" db:"selling_price"`
	ProviderBookingID  *string       `json:"provider_booking_id,omitempty" db:"provider_booking_id"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason *string       `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RefundAmount       *float64      `json:"refund_amount,omitempty" db:"refund_amount"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so callers can't mutate a stored booking through shared pointers
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.CustomerID != nil {
		v := *b.CustomerID
		c.CustomerID = &v
	}
	if b.ProviderBookingID != nil {
		v := *b.ProviderBookingID
		c.ProviderBookingID = &v
	}
	if b.CancelledAt != nil {
		v := *b.CancelledAt
		c.CancelledAt = &v
	}
	if b.CancellationReason != nil {
		v := *b.CancellationReason
		c.CancellationReason = &v
	}
	if b.RefundAmount != nil {
		v := *b.RefundAmount
		c.RefundAmount = &v
	}
	return &c
}

// Actor is the authenticated user or automated process behind a mutation
type Actor struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}
