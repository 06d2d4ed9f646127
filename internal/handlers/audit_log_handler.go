package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/models"
)

// AuditLogReader lists audit log entries
type AuditLogReader interface {
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error)
}

// AuditLogHandler serves the admin audit trail
type AuditLogHandler struct {
	audit  AuditLogReader
	logger *logrus.Logger
}

// NewAuditLogHandler creates a new audit log handler
func NewAuditLogHandler(audit AuditLogReader, logger *logrus.Logger) *AuditLogHandler {
	return &AuditLogHandler{audit: audit, logger: logger}
}

// ListAuditLogs handles GET /api/v1/admin/audit-logs
func (h *AuditLogHandler) ListAuditLogs(c *gin.Context) {
	filter, err := parseAuditLogFilter(c)
	if err != nil {
		respondBadRequest(c, "invalid_filter", err.Error())
		return
	}

	entries, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}

	filter.Normalize()
	c.JSON(http.StatusOK, gin.H{
		"audit_logs": entries,
		"count":      len(entries),
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

func parseAuditLogFilter(c *gin.Context) (models.AuditLogFilter, error) {
	var filter models.AuditLogFilter

	if raw := c.Query("action"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			action, err := models.ParseAuditAction(strings.TrimSpace(part))
			if err != nil {
				return filter, err
			}
			filter.Actions = append(filter.Actions, action)
		}
	}

	filter.EntityType = strings.TrimSpace(c.Query("entity_type"))

	var err error
	if filter.EntityID, err = optionalUUID(c, "entity_id"); err != nil {
		return filter, err
	}
	if filter.UserID, err = optionalUUID(c, "user_id"); err != nil {
		return filter, err
	}
	if filter.From, err = optionalTime(c, "from", false); err != nil {
		return filter, err
	}
	if filter.To, err = optionalTime(c, "to", true); err != nil {
		return filter, err
	}
	if filter.Limit, err = optionalInt(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = optionalInt(c, "offset"); err != nil {
		return filter, err
	}

	return filter, nil
}

func optionalUUID(c *gin.Context, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a valid UUID", key)
	}
	return &id, nil
}

// optionalTime accepts RFC3339 timestamps or plain dates. With endOfDay a
// plain date covers the whole day, down to Postgres' microsecond precision.
func optionalTime(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("%s must be an RFC3339 timestamp or YYYY-MM-DD date", key)
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
