package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/database"
	"github.com/voyago/booking-backend/internal/models"
)

// BookingStore loads bookings and applies status changes atomically
type BookingStore interface {
	GetByID(ctx context.Context, kind models.BookingKind, id uuid.UUID) (*models.Booking, error)
	ApplyStatusChange(ctx context.Context, kind models.BookingKind, change *models.StatusChange) (*models.Booking, error)
}

// StatusLogStore reads a booking's status history
type StatusLogStore interface {
	ListByBooking(ctx context.Context, kind models.BookingKind, bookingID uuid.UUID) ([]models.StatusLog, error)
}

// TransitionRequest asks for one status change
type TransitionRequest struct {
	Kind      models.BookingKind
	BookingID uuid.UUID
	Target    models.BookingStatus
	Actor     models.Actor
	Reason    string
}

// transitionOptions carry what the reconciliation path adds on top of a plain request
type transitionOptions struct {
	reconciliation bool
	auditAction    models.AuditAction
	refundAmount   *float64
	metadata       models.JSONB
}

// AllowedTransitions is what a UI may offer for a booking
type AllowedTransitions struct {
	Kind    models.BookingKind     `json:"kind"`
	Current models.BookingStatus   `json:"current"`
	Targets []models.BookingStatus `json:"targets"`
	// Terminal is true when the booking can never change status again
	Terminal bool `json:"terminal"`
	// ReconcileActions is non-empty only for hotel bookings pending reconciliation
	ReconcileActions []ReconcileAction `json:"reconcile_actions"`
}

// TransitionService is the only path that changes booking status
type TransitionService struct {
	bookings    BookingStore
	statusLogs  StatusLogStore
	permissions PermissionChecker
	audit       *AuditService
	dispatcher  *OutboxDispatcher
	logger      *logrus.Logger
	now         func() time.Time
}

// NewTransitionService creates a new TransitionService
func NewTransitionService(
	bookings BookingStore,
	statusLogs StatusLogStore,
	permissions PermissionChecker,
	audit *AuditService,
	dispatcher *OutboxDispatcher,
	logger *logrus.Logger,
) *TransitionService {
	return &TransitionService{
		bookings:    bookings,
		statusLogs:  statusLogs,
		permissions: permissions,
		audit:       audit,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// Execute validates and applies a status change
func (s *TransitionService) Execute(ctx context.Context, req TransitionRequest) (*models.Booking, error) {
	return s.execute(ctx, req, transitionOptions{auditAction: models.AuditActionStatusChanged})
}

// ChangeTourBookingStatus moves a tour booking to target
func (s *TransitionService) ChangeTourBookingStatus(ctx context.Context, id uuid.UUID, target models.BookingStatus, reason string, actor models.Actor) (*models.Booking, error) {
	return s.Execute(ctx, TransitionRequest{Kind: models.BookingKindTour, BookingID: id, Target: target, Actor: actor, Reason: reason})
}

// ChangeTransferBookingStatus moves a transfer booking to target
func (s *TransitionService) ChangeTransferBookingStatus(ctx context.Context, id uuid.UUID, target models.BookingStatus, reason string, actor models.Actor) (*models.Booking, error) {
	return s.Execute(ctx, TransitionRequest{Kind: models.BookingKindTransfer, BookingID: id, Target: target, Actor: actor, Reason: reason})
}

// ChangeHotelBookingStatus moves a hotel booking along a non-reconciliation edge
func (s *TransitionService) ChangeHotelBookingStatus(ctx context.Context, id uuid.UUID, target models.BookingStatus, reason string, actor models.Actor) (*models.Booking, error) {
	return s.Execute(ctx, TransitionRequest{Kind: models.BookingKindHotel, BookingID: id, Target: target, Actor: actor, Reason: reason})
}

func (s *TransitionService) execute(ctx context.Context, req TransitionRequest, opts transitionOptions) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, req.Kind, req.BookingID)
	if err != nil {
		return nil, err
	}

	if opts.reconciliation && booking.Status != models.BookingStatusPendingReconciliation {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidState, booking.BookingReference, booking.Status)
	}
	if !opts.reconciliation && requiresReconciliation(booking) {
		return nil, &TransitionError{Kind: req.Kind, From: booking.Status, To: req.Target}
	}
	if err := ValidateTransition(req.Kind, booking.Status, req.Target); err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, req.Actor, req.Kind); err != nil {
		return nil, err
	}

	change := &models.StatusChange{
		BookingID:    booking.ID,
		From:         booking.Status,
		To:           req.Target,
		Reason:       optionalString(req.Reason),
		RefundAmount: opts.refundAmount,
		Actor:        req.Actor,
		Metadata:     opts.metadata,
		At:           s.now(),
	}
	change.Outbox = []models.OutboxEvent{
		models.NewNotificationEvent(req.Kind, booking.ID, req.Target, change.At),
	}

	template := models.NewAuditLog(opts.auditAction, req.Kind.EntityType(), req.Actor).SetEntity(booking.ID)

	var updated *models.Booking
	err = s.audit.Audited(ctx, template, func(ctx context.Context, entry *models.AuditLog) error {
		result, err := s.bookings.ApplyStatusChange(ctx, req.Kind, change)
		if err != nil {
			return mapStoreError(err, booking)
		}
		updated = result
		describeChange(entry, booking, updated, change)
		return nil
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_kind": req.Kind,
			"booking_id":   booking.ID,
			"from":         booking.Status,
			"to":           req.Target,
			"error":        err.Error(),
		}).Warn("Status change rejected")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_kind": req.Kind,
		"booking_id":   booking.ID,
		"reference":    booking.BookingReference,
		"from":         change.From,
		"to":           change.To,
		"actor":        req.Actor.Name,
	}).Info("Booking status changed")

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(change.Outbox)
	}

	return updated, nil
}

func (s *TransitionService) authorize(ctx context.Context, actor models.Actor, kind models.BookingKind) error {
	if !s.permissions.HasPermission(ctx, actor, kind.ManagePermission()) {
		return fmt.Errorf("%w: %s required", ErrForbidden, kind.ManagePermission())
	}
	return nil
}

// requiresReconciliation reports whether only the reconciliation flow may move the booking
func requiresReconciliation(b *models.Booking) bool {
	return b.Kind == models.BookingKindHotel && b.Status == models.BookingStatusPendingReconciliation
}

func mapStoreError(err error, booking *models.Booking) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound
	case database.IsConflict(err):
		return fmt.Errorf("%w: %s", ErrConflict, booking.BookingReference)
	default:
		return fmt.Errorf("failed to apply status change: %w", err)
	}
}

func describeChange(entry *models.AuditLog, before, after *models.Booking, change *models.StatusChange) {
	entry.Description = fmt.Sprintf("%s booking %s status changed from %s to %s",
		titleKind(before.Kind), before.BookingReference, change.From, change.To)

	oldValues := map[string]interface{}{"status": string(change.From)}
	newValues := map[string]interface{}{"status": string(change.To)}
	if after.RefundAmount != nil {
		oldValues["refund_amount"] = before.RefundAmount
		newValues["refund_amount"] = *after.RefundAmount
	}
	if change.Cancels() {
		newValues["cancelled_at"] = after.CancelledAt
	}
	entry.SetValues(oldValues, newValues)

	entry.AddMetadata("booking_reference", before.BookingReference)
	if change.Reason != nil {
		entry.AddMetadata("reason", *change.Reason)
	}
	for k, v := range change.Metadata {
		entry.AddMetadata(k, v)
	}
}

// GetBooking loads a booking, mapping a missing row to ErrNotFound
func (s *TransitionService) GetBooking(ctx context.Context, kind models.BookingKind, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, kind, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	booking.Kind = kind
	return booking, nil
}

// ListStatusLogs returns a booking's status history, oldest first
func (s *TransitionService) ListStatusLogs(ctx context.Context, kind models.BookingKind, id uuid.UUID) ([]models.StatusLog, error) {
	if _, err := s.GetBooking(ctx, kind, id); err != nil {
		return nil, err
	}
	logs, err := s.statusLogs.ListByBooking(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}
	return logs, nil
}

// AllowedTransitions returns the targets an operator may request for a booking
func (s *TransitionService) AllowedTransitions(ctx context.Context, kind models.BookingKind, id uuid.UUID) (*AllowedTransitions, error) {
	booking, err := s.GetBooking(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	result := &AllowedTransitions{
		Kind:             kind,
		Current:          booking.Status,
		Targets:          AllowedTargets(kind, booking.Status),
		Terminal:         IsTerminal(kind, booking.Status),
		ReconcileActions: []ReconcileAction{},
	}
	if requiresReconciliation(booking) {
		result.Targets = []models.BookingStatus{}
		result.ReconcileActions = []ReconcileAction{ReconcileActionRetry, ReconcileActionRefund}
	}
	return result, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func titleKind(kind models.BookingKind) string {
	k := string(kind)
	if k == "" {
		return k
	}
	return strings.ToUpper(k[:1]) + k[1:]
}
