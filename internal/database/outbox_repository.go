package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/voyago/booking-backend/internal/models"
)

// outboxLease is how long a claimed event stays invisible to other dispatchers.
// It must outlast one notification call.
const outboxLease = time.Minute

// OutboxRepository handles the booking_outbox side-effect queue
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func insertOutboxEvent(ctx context.Context, tx *sqlx.Tx, event *models.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Fresh events start leased to the post-commit dispatch so the drain skips them
	_, err := tx.ExecContext(ctx, `
		INSERT INTO booking_outbox (id, event_type, booking_kind, booking_id, payload, attempts, locked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)`,
		event.ID, event.EventType, event.BookingKind, event.BookingID, event.Payload,
		event.CreatedAt.Add(outboxLease), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write outbox event %s: %w", event.EventType, err)
	}

	return nil
}

// FetchPending claims undelivered events that still have attempts left, oldest first.
// Claimed rows are leased so concurrent drains on other instances skip them.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	query := `
		UPDATE booking_outbox
		SET locked_until = $1
		WHERE id IN (
			SELECT id
			FROM booking_outbox
			WHERE dispatched_at IS NULL AND attempts < $2
			  AND (locked_until IS NULL OR locked_until < $3)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, booking_kind, booking_id, payload, attempts, last_error, dispatched_at, created_at`

	now := time.Now()
	events := []models.OutboxEvent{}
	if err := r.db.SelectContext(ctx, &events, query, now.Add(outboxLease), maxAttempts, now, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}

	return events, nil
}

// MarkDispatched records a successful delivery
func (r *OutboxRepository) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE booking_outbox
		SET dispatched_at = $1, attempts = attempts + 1, last_error = NULL, locked_until = NULL
		WHERE id = $2 AND dispatched_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event dispatched: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE booking_outbox
		SET attempts = attempts + 1, last_error = $1, locked_until = NULL
		WHERE id = $2 AND dispatched_at IS NULL`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}
