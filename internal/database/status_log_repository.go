package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/voyago/booking-backend/internal/models"
)

// StatusLogRepository reads the per-kind status history tables.
// Rows are written only by BookingRepository.ApplyStatusChange.
type StatusLogRepository struct {
	db *sqlx.DB
}

// NewStatusLogRepository creates a new StatusLogRepository
func NewStatusLogRepository(db *sqlx.DB) *StatusLogRepository {
	return &StatusLogRepository{db: db}
}

// ListByBooking returns the history of a booking, oldest first
func (r *StatusLogRepository) ListByBooking(ctx context.Context, kind models.BookingKind, bookingID uuid.UUID) ([]models.StatusLog, error) {
	query := fmt.Sprintf(`
		SELECT id, booking_id, from_status, to_status, reason,
		       changed_by_id, changed_by_name, metadata, created_at
		FROM %s
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC`, kind.StatusLogTable())

	logs := []models.StatusLog{}
	if err := r.db.SelectContext(ctx, &logs, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}

	return logs, nil
}
