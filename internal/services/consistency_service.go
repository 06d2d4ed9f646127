package services

import (
	"context"
	"fmt"

	"github.com/voyago/booking-backend/internal/models"
)

// MismatchFinder reports bookings whose latest status log disagrees with the booking row
type MismatchFinder interface {
	FindStatusMismatches(ctx context.Context, kind models.BookingKind) ([]models.StatusMismatch, error)
}

// ConsistencyService checks that every booking's status matches its latest status log entry
type ConsistencyService struct {
	finder MismatchFinder
}

// NewConsistencyService creates a new ConsistencyService
func NewConsistencyService(finder MismatchFinder) *ConsistencyService {
	return &ConsistencyService{finder: finder}
}

// Check scans every booking kind
func (s *ConsistencyService) Check(ctx context.Context) ([]models.StatusMismatch, error) {
	var all []models.StatusMismatch
	for _, kind := range models.AllBookingKinds {
		mismatches, err := s.finder.FindStatusMismatches(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("consistency check failed for %s bookings: %w", kind, err)
		}
		all = append(all, mismatches...)
	}
	return all, nil
}
