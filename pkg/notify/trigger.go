package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Trigger hands a booking event to the notification pipeline.
// Rendering and delivery happen downstream.
type Trigger interface {
	Notify(ctx context.Context, eventType, kind string, bookingID uuid.UUID) error
}

// streamWriter is the part of the redis client the trigger needs
type streamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisTrigger publishes events onto a Redis stream consumed by the notification workers
type RedisTrigger struct {
	client streamWriter
	stream string
	maxLen int64
}

// NewRedisClient parses a redis:// URL and returns a connected client
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewRedisTrigger creates a trigger writing to the given stream
func NewRedisTrigger(client streamWriter, stream string) *RedisTrigger {
	return &RedisTrigger{
		client: client,
		stream: stream,
		maxLen: 100000,
	}
}

// Notify appends one entry to the stream
func (t *RedisTrigger) Notify(ctx context.Context, eventType, kind string, bookingID uuid.UUID) error {
	args := &redis.XAddArgs{
		Stream: t.stream,
		MaxLen: t.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_type":   eventType,
			"booking_kind": kind,
			"booking_id":   bookingID.String(),
			"emitted_at":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to stream %s: %w", eventType, t.stream, err)
	}
	return nil
}

// LogTrigger only logs events. Used in development when no Redis is configured.
type LogTrigger struct {
	logger *logrus.Logger
}

// NewLogTrigger creates a logging trigger
func NewLogTrigger(logger *logrus.Logger) *LogTrigger {
	return &LogTrigger{logger: logger}
}

// Notify logs the event and always succeeds
func (t *LogTrigger) Notify(ctx context.Context, eventType, kind string, bookingID uuid.UUID) error {
	t.logger.WithFields(logrus.Fields{
		"event_type":   eventType,
		"booking_kind": kind,
		"booking_id":   bookingID,
	}).Info("Notification triggered (development mode, not published)")
	return nil
}
