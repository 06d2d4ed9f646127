package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/models"
	"github.com/voyago/booking-backend/pkg/provider"
	"github.com/voyago/booking-backend/pkg/validator"
)

// ReconcileAction is the operator's decision for a booking pending reconciliation
type ReconcileAction string

const (
	ReconcileActionRetry  ReconcileAction = "retry"
	ReconcileActionRefund ReconcileAction = "refund"
)

// HotelProvider confirms bookings with the hotel supplier
type HotelProvider interface {
	ConfirmBooking(ctx context.Context, providerBookingID string) (*provider.ConfirmResult, error)
}

// RefundPolicy decides how much to refund. The default refunds the full selling price.
type RefundPolicy func(booking *models.Booking) float64

// FullRefund refunds the selling price
func FullRefund(booking *models.Booking) float64 {
	return booking.SellingPrice
}

// ReconcileRequest resolves one hotel booking
type ReconcileRequest struct {
	BookingID uuid.UUID
	Action    ReconcileAction
	Reason    string
	Actor     models.Actor
}

// ReconciliationService resolves hotel bookings stuck in pending_reconciliation
type ReconciliationService struct {
	transitions  *TransitionService
	provider     HotelProvider
	audit        *AuditService
	logger       *logrus.Logger
	retryTimeout time.Duration
	refundPolicy RefundPolicy
	limiter      *RetryLimiter
}

// NewReconciliationService creates a new ReconciliationService.
// A nil policy means FullRefund.
func NewReconciliationService(
	transitions *TransitionService,
	hotelProvider HotelProvider,
	audit *AuditService,
	logger *logrus.Logger,
	retryTimeout time.Duration,
	policy RefundPolicy,
) *ReconciliationService {
	if policy == nil {
		policy = FullRefund
	}
	return &ReconciliationService{
		transitions:  transitions,
		provider:     hotelProvider,
		audit:        audit,
		logger:       logger,
		retryTimeout: retryTimeout,
		refundPolicy: policy,
	}
}

// WithRetryLimiter caps failed provider retries per booking
func (s *ReconciliationService) WithRetryLimiter(limiter *RetryLimiter) *ReconciliationService {
	s.limiter = limiter
	return s
}

// ReconcileHotelBooking retries or refunds a hotel booking
func (s *ReconciliationService) ReconcileHotelBooking(ctx context.Context, id uuid.UUID, action ReconcileAction, reason string, actor models.Actor) (*models.Booking, error) {
	return s.Resolve(ctx, ReconcileRequest{BookingID: id, Action: action, Reason: reason, Actor: actor})
}

// Resolve applies the operator's decision.
// Request validation happens before any read or provider call.
func (s *ReconciliationService) Resolve(ctx context.Context, req ReconcileRequest) (*models.Booking, error) {
	if err := validateReconcileRequest(req); err != nil {
		return nil, err
	}

	booking, err := s.transitions.GetBooking(ctx, models.BookingKindHotel, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPendingReconciliation {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidState, booking.BookingReference, booking.Status)
	}
	if err := s.transitions.authorize(ctx, req.Actor, models.BookingKindHotel); err != nil {
		return nil, err
	}

	switch req.Action {
	case ReconcileActionRetry:
		return s.retry(ctx, booking, req)
	default:
		return s.refund(ctx, booking, req)
	}
}

func validateReconcileRequest(req ReconcileRequest) error {
	switch req.Action {
	case ReconcileActionRetry:
		return nil
	case ReconcileActionRefund:
		if validator.IsBlank(req.Reason) {
			return newValidationError("reason", "is required for a refund")
		}
		return nil
	default:
		return newValidationError("action", fmt.Sprintf("must be %q or %q", ReconcileActionRetry, ReconcileActionRefund))
	}
}

func (s *ReconciliationService) retry(ctx context.Context, booking *models.Booking, req ReconcileRequest) (*models.Booking, error) {
	if booking.ProviderBookingID == nil || *booking.ProviderBookingID == "" {
		return nil, newValidationError("provider_booking_id", "booking has no provider reference to retry")
	}

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, booking.ID); err != nil {
			if errors.Is(err, ErrRetryLimited) {
				return nil, err
			}
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"error":      err.Error(),
			}).Warn("Retry limit check failed, calling provider anyway")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.retryTimeout)
	result, err := s.provider.ConfirmBooking(callCtx, *booking.ProviderBookingID)
	cancel()

	if err != nil || result == nil || !result.Confirmed {
		failure := retryFailure(err, result)
		s.recordFailedRetry(ctx, booking, req, failure)
		return nil, fmt.Errorf("%w: %s", ErrProviderRetryFailed, failure)
	}

	metadata := reconcileMetadata(req)
	metadata["provider_status"] = result.ProviderStatus
	if result.ConfirmationCode != "" {
		metadata["confirmation_code"] = result.ConfirmationCode
	}

	reason := req.Reason
	if validator.IsBlank(reason) {
		reason = "provider retry confirmed booking"
	}

	return s.transitions.execute(ctx, TransitionRequest{
		Kind:      models.BookingKindHotel,
		BookingID: booking.ID,
		Target:    models.BookingStatusConfirmed,
		Actor:     req.Actor,
		Reason:    reason,
	}, transitionOptions{
		reconciliation: true,
		auditAction:    models.AuditActionReconciled,
		metadata:       metadata,
	})
}

func (s *ReconciliationService) refund(ctx context.Context, booking *models.Booking, req ReconcileRequest) (*models.Booking, error) {
	amount := s.refundPolicy(booking)
	if amount < 0 || amount > booking.SellingPrice {
		return nil, newValidationError("refund_amount", fmt.Sprintf("%.2f is outside 0..%.2f", amount, booking.SellingPrice))
	}

	metadata := reconcileMetadata(req)
	metadata["refund_amount"] = amount
	metadata["currency"] = booking.Currency

	return s.transitions.execute(ctx, TransitionRequest{
		Kind:      models.BookingKindHotel,
		BookingID: booking.ID,
		Target:    models.BookingStatusCancelled,
		Actor:     req.Actor,
		Reason:    req.Reason,
	}, transitionOptions{
		reconciliation: true,
		auditAction:    models.AuditActionRefunded,
		refundAmount:   &amount,
		metadata:       metadata,
	})
}

// recordFailedRetry leaves a trace of the attempt; the booking itself is untouched
func (s *ReconciliationService) recordFailedRetry(ctx context.Context, booking *models.Booking, req ReconcileRequest, failure string) {
	s.logger.WithFields(logrus.Fields{
		"booking_id":          booking.ID,
		"reference":           booking.BookingReference,
		"provider_booking_id": *booking.ProviderBookingID,
		"error":               failure,
	}).Warn("Provider retry failed, booking stays pending reconciliation")

	entry := models.NewAuditLog(models.AuditActionReconciled, models.BookingKindHotel.EntityType(), req.Actor).SetEntity(booking.ID)
	entry.Description = fmt.Sprintf("Hotel booking %s provider retry failed", booking.BookingReference)
	for k, v := range reconcileMetadata(req) {
		entry.AddMetadata(k, v)
	}
	entry.AddMetadata("booking_reference", booking.BookingReference)
	entry.AddMetadata("outcome", "provider_failed")
	entry.AddMetadata("error", failure)
	s.audit.Record(ctx, entry)
}

func reconcileMetadata(req ReconcileRequest) models.JSONB {
	return models.JSONB{
		"action": string(req.Action),
		"reason": strings.TrimSpace(req.Reason),
	}
}

func retryFailure(err error, result *provider.ConfirmResult) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "provider did not respond in time"
	case err != nil:
		return err.Error()
	case result == nil:
		return "provider returned no result"
	case result.Message != "":
		return fmt.Sprintf("provider refused confirmation (%s): %s", result.ProviderStatus, result.Message)
	default:
		return fmt.Sprintf("provider refused confirmation (%s)", result.ProviderStatus)
	}
}
