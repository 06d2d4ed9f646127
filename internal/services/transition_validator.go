package services

import "github.com/voyago/booking-backend/internal/models"

type transitionTable map[models.BookingStatus][]models.BookingStatus

// Tours and transfers share one lifecycle
var activityTransitions = transitionTable{
	models.BookingStatusPending:   {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusConfirmed: {models.BookingStatusCancelled, models.BookingStatusCompleted, models.BookingStatusNoShow},
	models.BookingStatusCancelled: {},
	models.BookingStatusCompleted: {},
	models.BookingStatusNoShow:    {},
}

// Hotel bookings go through the provider, so cancellation is asynchronous
// and provider failures park the booking for manual reconciliation.
var hotelTransitions = transitionTable{
	models.BookingStatusPending:               {models.BookingStatusConfirmed, models.BookingStatusFailed},
	models.BookingStatusConfirmed:             {models.BookingStatusPendingCancellation},
	models.BookingStatusPendingCancellation:   {models.BookingStatusCancelled, models.BookingStatusCancellationFailed},
	models.BookingStatusCancellationFailed:    {models.BookingStatusPendingCancellation, models.BookingStatusPendingReconciliation},
	models.BookingStatusFailed:                {models.BookingStatusPendingReconciliation},
	models.BookingStatusPendingReconciliation: {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusCancelled:             {},
	models.BookingStatusCompleted:             {},
}

var transitionTables = map[models.BookingKind]transitionTable{
	models.BookingKindTour:     activityTransitions,
	models.BookingKindTransfer: activityTransitions,
	models.BookingKindHotel:    hotelTransitions,
}

// IsAllowed reports whether current -> target is an edge of the kind's lifecycle.
// Unknown kinds or statuses and self-transitions are never allowed.
func IsAllowed(kind models.BookingKind, current, target models.BookingStatus) bool {
	table, ok := transitionTables[kind]
	if !ok {
		return false
	}
	for _, s := range table[current] {
		if s == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *TransitionError if the move is not allowed
func ValidateTransition(kind models.BookingKind, current, target models.BookingStatus) error {
	if !IsAllowed(kind, current, target) {
		return &TransitionError{Kind: kind, From: current, To: target}
	}
	return nil
}

// AllowedTargets returns the statuses reachable in one step from status
func AllowedTargets(kind models.BookingKind, status models.BookingStatus) []models.BookingStatus {
	targets := transitionTables[kind][status]
	out := make([]models.BookingStatus, len(targets))
	copy(out, targets)
	return out
}

// IsKnownStatus reports whether status belongs to the kind's vocabulary
func IsKnownStatus(kind models.BookingKind, status models.BookingStatus) bool {
	_, ok := transitionTables[kind][status]
	return ok
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(kind models.BookingKind, status models.BookingStatus) bool {
	return IsKnownStatus(kind, status) && len(transitionTables[kind][status]) == 0
}
