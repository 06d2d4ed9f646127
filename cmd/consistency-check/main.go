package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/config"
	"github.com/voyago/booking-backend/internal/database"
	"github.com/voyago/booking-backend/internal/services"
)

// Exits 1 when any booking's status differs from its latest status log entry
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "upper bound for the whole scan")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	checker := services.NewConsistencyService(database.NewBookingRepository(db.DB))
	mismatches, err := checker.Check(ctx)
	if err != nil {
		logger.Fatalf("Consistency check failed: %v", err)
	}

	for _, m := range mismatches {
		logger.WithFields(logrus.Fields{
			"booking_kind":     m.Kind,
			"booking_id":       m.BookingID,
			"reference":        m.BookingReference,
			"status":           m.Status,
			"latest_to_status": m.LatestToStatus,
		}).Error("Booking status does not match its status log")
	}

	if len(mismatches) > 0 {
		logger.Errorf("Found %d inconsistent bookings", len(mismatches))
		db.Close()
		os.Exit(1)
	}

	logger.Info("All bookings are consistent with their status logs")
}
