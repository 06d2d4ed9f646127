package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/voyago/booking-backend/internal/models"
)

// BookingRepository reads bookings of every kind and performs the atomic
// status+log write. It is the only code path that writes booking status.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// bookingColumns returns the select list for a kind.
// Only hotel bookings carry a provider linkage.
func bookingColumns(kind models.BookingKind) string {
	provider := "NULL::text AS provider_booking_id"
	if kind == models.BookingKindHotel {
		provider = "provider_booking_id"
	}
	return `id, booking_reference, customer_id, status, currency,
		net_price, markup, selling_price, ` + provider + `,
		cancelled_at, cancellation_reason, refund_amount, created_at, updated_at`
}

// GetByID returns a booking or ErrNotFound
func (r *BookingRepository) GetByID(ctx context.Context, kind models.BookingKind, id uuid.UUID) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, bookingColumns(kind), kind.BookingTable())

	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s booking: %w", kind, err)
	}

	booking.Kind = kind
	return &booking, nil
}

// ApplyStatusChange locks the booking row, checks it is still in change.From,
// updates it and appends the status log and outbox rows in one transaction.
// Nothing is persisted unless every statement succeeds.
func (r *BookingRepository) ApplyStatusChange(ctx context.Context, kind models.BookingKind, change *models.StatusChange) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Lock and re-check the current status
	var current models.BookingStatus
	lockQuery := fmt.Sprintf(`SELECT status FROM %s WHERE id = $1 FOR UPDATE`, kind.BookingTable())
	err = tx.GetContext(ctx, &current, lockQuery, change.BookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if current != change.From {
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrStaleStatus, change.From, current)
	}

	// 2. Guarded update
	updated, err := updateBookingStatus(ctx, tx, kind, change)
	if err != nil {
		return nil, err
	}

	// 3. Status log entry
	logQuery := fmt.Sprintf(`
		INSERT INTO %s (booking_id, from_status, to_status, reason, changed_by_id, changed_by_name, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, kind.StatusLogTable())
	_, err = tx.ExecContext(ctx, logQuery,
		change.BookingID, change.From, change.To, change.Reason,
		change.Actor.ID, change.Actor.Name, change.Metadata, change.At,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append status log: %w", err)
	}

	// 4. Side effects to deliver after commit
	for i := range change.Outbox {
		if err := insertOutboxEvent(ctx, tx, &change.Outbox[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	updated.Kind = kind
	return updated, nil
}

func updateBookingStatus(ctx context.Context, tx *sqlx.Tx, kind models.BookingKind, change *models.StatusChange) (*models.Booking, error) {
	sets := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{change.To, change.At}

	if change.Cancels() {
		args = append(args, change.At, change.Reason)
		sets = append(sets,
			fmt.Sprintf("cancelled_at = $%d", len(args)-1),
			fmt.Sprintf("cancellation_reason = $%d", len(args)),
		)
	}
	if change.RefundAmount != nil {
		args = append(args, *change.RefundAmount)
		sets = append(sets, fmt.Sprintf("refund_amount = $%d", len(args)))
	}

	args = append(args, change.BookingID, change.From)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND status = $%d RETURNING %s`,
		kind.BookingTable(), strings.Join(sets, ", "), len(args)-1, len(args), bookingColumns(kind))

	var booking models.Booking
	err := tx.QueryRowxContext(ctx, query, args...).StructScan(&booking)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: guarded update matched no rows", ErrStaleStatus)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	return &booking, nil
}

// FindStatusMismatches lists bookings whose latest status log entry disagrees with the booking status
func (r *BookingRepository) FindStatusMismatches(ctx context.Context, kind models.BookingKind) ([]models.StatusMismatch, error) {
	query := fmt.Sprintf(`
		SELECT b.id, b.booking_reference, b.status, l.to_status AS latest_to_status
		FROM %s b
		JOIN LATERAL (
			SELECT to_status FROM %s
			WHERE booking_id = b.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) l ON TRUE
		WHERE l.to_status <> b.status
		ORDER BY b.created_at`, kind.BookingTable(), kind.StatusLogTable())

	var mismatches []models.StatusMismatch
	if err := r.db.SelectContext(ctx, &mismatches, query); err != nil {
		return nil, fmt.Errorf("failed to scan %s bookings: %w", kind, err)
	}
	for i := range mismatches {
		mismatches[i].Kind = kind
	}

	return mismatches, nil
}
