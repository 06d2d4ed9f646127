package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the closed set of auditable actions
type AuditAction string

const (
	AuditActionCreated         AuditAction = "created"
	AuditActionUpdated         AuditAction = "updated"
	AuditActionDeleted         AuditAction = "deleted"
	AuditActionStatusChanged   AuditAction = "status_changed"
	AuditActionLogin           AuditAction = "login"
	AuditActionLogout          AuditAction = "logout"
	AuditActionReconciled      AuditAction = "reconciled"
	AuditActionRefunded        AuditAction = "refunded"
	AuditActionMarkupChanged   AuditAction = "markup_changed"
	AuditActionSettingsUpdated AuditAction = "settings_updated"
	AuditActionRoleAssigned    AuditAction = "role_assigned"
	AuditActionExported        AuditAction = "exported"
)

var auditActions = map[AuditAction]bool{
	AuditActionCreated:         true,
	AuditActionUpdated:         true,
	AuditActionDeleted:         true,
	AuditActionStatusChanged:   true,
	AuditActionLogin:           true,
	AuditActionLogout:          true,
	AuditActionReconciled:      true,
	AuditActionRefunded:        true,
	AuditActionMarkupChanged:   true,
	AuditActionSettingsUpdated: true,
	AuditActionRoleAssigned:    true,
	AuditActionExported:        true,
}

// ParseAuditAction validates an action coming from a filter or caller
func ParseAuditAction(s string) (AuditAction, error) {
	a := AuditAction(s)
	if !auditActions[a] {
		return "", fmt.Errorf("unknown audit action: %q", s)
	}
	return a, nil
}

// AuditLog is an immutable record of a mutating action
type AuditLog struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Action      AuditAction `json:"action" db:"action"`
	EntityType  string      `json:"entity_type" db:"entity_type"`
	EntityID    *uuid.UUID  `json:"entity_id,omitempty" db:"entity_id"`
	Description string      `json:"description" db:"description"`
	OldValues   JSONB       `json:"old_values,omitempty" db:"old_values"`
	NewValues   JSONB       `json:"new_values,omitempty" db:"new_values"`
	Metadata    JSONB       `json:"metadata,omitempty" db:"metadata"`
	UserID      *uuid.UUID  `json:"user_id,omitempty" db:"user_id"`
	UserName    string      `json:"user_name" db:"user_name"`
	IPAddress   *string     `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   *string     `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// NewAuditLog creates an entry attributed to the actor
func NewAuditLog(action AuditAction, entityType string, actor Actor) *AuditLog {
	entry := &AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		UserName:   actor.Name,
	}
	if actor.ID != uuid.Nil {
		id := actor.ID
		entry.UserID = &id
	}
	if actor.IPAddress != "" {
		ip := actor.IPAddress
		entry.IPAddress = &ip
	}
	if actor.UserAgent != "" {
		ua := actor.UserAgent
		entry.UserAgent = &ua
	}
	return entry
}

// SetEntity sets the affected entity id
func (a *AuditLog) SetEntity(id uuid.UUID) *AuditLog {
	a.EntityID = &id
	return a
}

// SetValues sets the before/after diff
func (a *AuditLog) SetValues(oldValues, newValues map[string]interface{}) *AuditLog {
	a.OldValues = JSONB(oldValues)
	a.NewValues = JSONB(newValues)
	return a
}

// AddMetadata merges a key into the metadata document
func (a *AuditLog) AddMetadata(key string, value interface{}) *AuditLog {
	if a.Metadata == nil {
		a.Metadata = JSONB{}
	}
	a.Metadata[key] = value
	return a
}

// AuditLogFilter narrows a ListAuditLogs query. Zero values mean "any".
type AuditLogFilter struct {
	Actions    []AuditAction
	EntityType string
	EntityID   *uuid.UUID
	UserID     *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

const (
	DefaultAuditLogLimit = 50
	MaxAuditLogLimit     = 500
)

// Normalize clamps paging values
func (f *AuditLogFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLogLimit
	}
	if f.Limit > MaxAuditLogLimit {
		f.Limit = MaxAuditLogLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
