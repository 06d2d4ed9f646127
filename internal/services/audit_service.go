package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/models"
	"github.com/voyago/booking-backend/internal/utils"
)

// AuditStore persists audit entries
type AuditStore interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error)
}

// auditWriteTimeout bounds a single audit insert after the request context is detached
const auditWriteTimeout = 5 * time.Second

// AuditService writes the system-wide audit trail.
// Recording never fails the caller; write errors go to the operational log.
type AuditService struct {
	store  AuditStore
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore, logger *logrus.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

// Record appends an entry. It returns nothing: an audit outage must not undo a committed change.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) {
	if entry == nil {
		return
	}

	if entry.UserAgent != nil && entry.Metadata["device_info"] == nil {
		entry.AddMetadata("device_info", utils.ParseUserAgent(*entry.UserAgent))
	}

	// The request may already be finished or cancelled by the time we get here
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.store.Insert(writeCtx, entry); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
			"user_name":   entry.UserName,
			"error":       err.Error(),
		}).Error("AUDIT ERROR: failed to write audit log")
	}
}

// Audited runs fn and records template once fn succeeds.
// fn may fill in the entity and values on the template; on error nothing is recorded.
func (s *AuditService) Audited(ctx context.Context, template *models.AuditLog, fn func(ctx context.Context, entry *models.AuditLog) error) error {
	if err := fn(ctx, template); err != nil {
		return err
	}
	s.Record(ctx, template)
	return nil
}

// List returns entries matching filter, newest first
func (s *AuditService) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	filter.Normalize()
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, newValidationError("to", "must not be before from")
	}
	return s.store.List(ctx, filter)
}
