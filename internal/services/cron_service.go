package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron          *cron.Cron
	dispatcher    *OutboxDispatcher
	consistency   *ConsistencyService
	logger        *logrus.Logger
	drainSchedule string
}

// NewCronService creates a new CronService
func NewCronService(dispatcher *OutboxDispatcher, consistency *ConsistencyService, logger *logrus.Logger, drainSchedule string) *CronService {
	// Seconds precision so the outbox can be drained more than once a minute
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:          c,
		dispatcher:    dispatcher,
		consistency:   consistency,
		logger:        logger,
		drainSchedule: drainSchedule,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Job 1: Retry undelivered notifications
	// Cron format: second minute hour day month weekday
	_, err := s.cron.AddFunc(s.drainSchedule, s.drainOutboxJob)
	if err != nil {
		return fmt.Errorf("failed to schedule outbox drain job: %w", err)
	}
	s.logger.Infof("✓ Scheduled: Drain notification outbox (%s)", s.drainSchedule)

	// Job 2: Status/log consistency scan daily at 3 AM
	_, err = s.cron.AddFunc("0 0 3 * * *", s.consistencyCheckJob)
	if err != nil {
		return fmt.Errorf("failed to schedule consistency check job: %w", err)
	}
	s.logger.Info("✓ Scheduled: Booking status consistency check (Daily at 3:00 AM)")

	s.cron.Start()
	s.logger.Info("✓ Cron service started successfully")

	return nil
}

// Stop stops all cron jobs and waits for running ones
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("✓ Cron service stopped")
}

// drainOutboxJob delivers one batch of pending outbox events
func (s *CronService) drainOutboxJob() {
	startTime := time.Now()

	delivered, err := s.dispatcher.Drain(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("[CRON ERROR] Failed to drain outbox")
		return
	}

	if delivered > 0 {
		s.logger.WithFields(logrus.Fields{
			"delivered":   delivered,
			"duration_ms": time.Since(startTime).Milliseconds(),
		}).Info("[CRON] ✓ Drained notification outbox")
	}
}

// consistencyCheckJob logs bookings whose status disagrees with their status log
func (s *CronService) consistencyCheckJob() {
	s.logger.Info("[CRON] Starting booking status consistency check...")
	startTime := time.Now()

	mismatches, err := s.consistency.Check(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("[CRON ERROR] Consistency check failed")
		return
	}

	for _, m := range mismatches {
		s.logger.WithFields(logrus.Fields{
			"booking_kind":     m.Kind,
			"booking_id":       m.BookingID,
			"reference":        m.BookingReference,
			"status":           m.Status,
			"latest_to_status": m.LatestToStatus,
		}).Error("[CRON] Booking status does not match status log")
	}

	s.logger.Infof("[CRON] ✓ Consistency check found %d mismatches in %v", len(mismatches), time.Since(startTime))
}

// RunDrainNow runs the outbox drain immediately
func (s *CronService) RunDrainNow() {
	s.logger.Info("[MANUAL] Running outbox drain now...")
	s.drainOutboxJob()
}

// RunConsistencyCheckNow runs the consistency check immediately
func (s *CronService) RunConsistencyCheckNow() {
	s.logger.Info("[MANUAL] Running consistency check now...")
	s.consistencyCheckJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
