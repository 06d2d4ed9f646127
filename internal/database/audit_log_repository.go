package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/voyago/booking-backend/internal/models"
)

// AuditLogRepository handles the append-only audit_logs table
type AuditLogRepository struct {
	db *sqlx.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sqlx.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Insert appends an audit entry. Audit rows are never updated or deleted.
func (r *AuditLogRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_logs (
			id, action, entity_type, entity_id, description,
			old_values, new_values, metadata,
			user_id, user_name, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.Description,
		entry.OldValues, entry.NewValues, entry.Metadata,
		entry.UserID, entry.UserName, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// List returns audit entries matching the filter, newest first
func (r *AuditLogRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	filter.Normalize()

	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		add("action = ANY($%d::text[])", pq.Array(actions))
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != nil {
		add("entity_id = $%d", *filter.EntityID)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	query := `
		SELECT id, action, entity_type, entity_id, description,
		       old_values, new_values, metadata,
		       user_id, user_name, ip_address, user_agent, created_at
		FROM audit_logs`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf("\n\t\tORDER BY created_at DESC, id\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	logs := []models.AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, nil
}

// CountFailedRetries counts provider retries for a hotel booking that failed after since.
// The second value is the most recent failure, or the zero time when there were none.
func (r *AuditLogRepository) CountFailedRetries(ctx context.Context, bookingID uuid.UUID, since time.Time) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), MAX(created_at)
		FROM audit_logs
		WHERE entity_id = $1
		  AND action = $2
		  AND metadata->>'outcome' = 'provider_failed'
		  AND created_at > $3`

	var (
		count int
		last  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, bookingID, string(models.AuditActionReconciled), since).Scan(&count, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, fmt.Errorf("failed to count failed retries: %w", err)
	}

	return count, last.Time, nil
}
