package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/middleware"
	"github.com/voyago/booking-backend/internal/models"
	"github.com/voyago/booking-backend/internal/services"
	"github.com/voyago/booking-backend/pkg/voucher"
)

// BookingLifecycle is the booking surface of the transition service
type BookingLifecycle interface {
	GetBooking(ctx context.Context, kind models.BookingKind, id uuid.UUID) (*models.Booking, error)
	AllowedTransitions(ctx context.Context, kind models.BookingKind, id uuid.UUID) (*services.AllowedTransitions, error)
	ListStatusLogs(ctx context.Context, kind models.BookingKind, id uuid.UUID) ([]models.StatusLog, error)
	ChangeTourBookingStatus(ctx context.Context, id uuid.UUID, target models.BookingStatus, reason string, actor models.Actor) (*models.Booking, error)
	ChangeTransferBookingStatus(ctx context.Context, id uuid.UUID, target models.BookingStatus, reason string, actor models.Actor) (*models.Booking, error)
	ChangeHotelBookingStatus(ctx context.Context, id uuid.UUID, target models.BookingStatus, reason string, actor models.Actor) (*models.Booking, error)
}

// HotelReconciler resolves hotel bookings pending reconciliation
type HotelReconciler interface {
	ReconcileHotelBooking(ctx context.Context, id uuid.UUID, action services.ReconcileAction, reason string, actor models.Actor) (*models.Booking, error)
}

// VoucherStore fetches rendered vouchers
type VoucherStore interface {
	DownloadVoucher(ctx context.Context, kind string, bookingID uuid.UUID) (*voucher.Voucher, error)
}

// BookingHandler handles booking lifecycle HTTP requests
type BookingHandler struct {
	bookings   BookingLifecycle
	reconciler HotelReconciler
	vouchers   VoucherStore
	logger     *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	bookings BookingLifecycle,
	reconciler HotelReconciler,
	vouchers VoucherStore,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookings:   bookings,
		reconciler: reconciler,
		vouchers:   vouchers,
		logger:     logger,
	}
}

// ChangeStatusRequest represents a status change request
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,notblank"`
	Reason string `json:"reason" binding:"max=1000"`
}

// ReconcileRequest represents an operator's reconciliation decision
type ReconcileRequest struct {
	Action string `json:"action" binding:"required,oneof=retry refund"`
	Reason string `json:"reason" binding:"max=1000"`
}

// GetBooking handles GET /api/v1/admin/bookings/:kind/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	kind, id, ok := bookingParams(c)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// AllowedTransitions handles GET /api/v1/admin/bookings/:kind/:id/allowed-transitions
func (h *BookingHandler) AllowedTransitions(c *gin.Context) {
	kind, id, ok := bookingParams(c)
	if !ok {
		return
	}

	allowed, err := h.bookings.AllowedTransitions(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, allowed)
}

// ChangeStatus handles PATCH /api/v1/admin/bookings/:kind/:id/status
func (h *BookingHandler) ChangeStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	kind, id, ok := bookingParams(c)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	target := models.BookingStatus(req.Status)
	ctx := c.Request.Context()

	var (
		booking *models.Booking
		err     error
	)
	switch kind {
	case models.BookingKindTour:
		booking, err = h.bookings.ChangeTourBookingStatus(ctx, id, target, req.Reason, actor)
	case models.BookingKindTransfer:
		booking, err = h.bookings.ChangeTransferBookingStatus(ctx, id, target, req.Reason, actor)
	default:
		booking, err = h.bookings.ChangeHotelBookingStatus(ctx, id, target, req.Reason, actor)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Booking status changed to %s", booking.Status),
		"booking": booking,
	})
}

// Reconcile handles POST /api/v1/admin/bookings/hotels/:id/reconcile.
// The route is registered as /bookings/:kind/:id/reconcile so it shares the kind segment.
func (h *BookingHandler) Reconcile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	kind, id, ok := bookingParams(c)
	if !ok {
		return
	}
	if kind != models.BookingKindHotel {
		respondBadRequest(c, "invalid_kind", "Only hotel bookings can be reconciled")
		return
	}

	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	booking, err := h.reconciler.ReconcileHotelBooking(c.Request.Context(), id, services.ReconcileAction(req.Action), req.Reason, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Booking reconciled via %s", req.Action),
		"booking": booking,
	})
}

// ListStatusLogs handles GET /api/v1/admin/bookings/:kind/:id/status-logs
func (h *BookingHandler) ListStatusLogs(c *gin.Context) {
	kind, id, ok := bookingParams(c)
	if !ok {
		return
	}

	logs, err := h.bookings.ListStatusLogs(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if logs == nil {
		logs = []models.StatusLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status_logs": logs,
		"total":       len(logs),
	})
}

// DownloadVoucher handles GET /api/v1/admin/bookings/:kind/:id/voucher
func (h *BookingHandler) DownloadVoucher(c *gin.Context) {
	kind, id, ok := bookingParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.bookings.GetBooking(ctx, kind, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	doc, err := h.vouchers.DownloadVoucher(ctx, string(kind), id)
	if errors.Is(err, voucher.ErrVoucherNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "voucher_not_found",
			Message: "No voucher has been issued for this booking",
		})
		return
	}
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"booking_kind": kind,
			"booking_id":   id,
			"error":        err.Error(),
		}).Error("Failed to download voucher")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "voucher_unavailable",
			Message: "Voucher store is unavailable",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, exists := middleware.ActorFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User context not found",
		})
		return models.Actor{}, false
	}
	return actor, true
}

func bookingParams(c *gin.Context) (models.BookingKind, uuid.UUID, bool) {
	kind, err := models.ParseBookingKind(c.Param("kind"))
	if err != nil {
		respondBadRequest(c, "invalid_kind", "Booking kind must be one of: hotels, tours, transfers")
		return "", uuid.Nil, false
	}
	id, ok := bookingID(c)
	return kind, id, ok
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid_id", "Invalid booking ID format")
		return uuid.Nil, false
	}
	return id, true
}
