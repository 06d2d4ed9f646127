package services

import (
	"context"

	"github.com/voyago/booking-backend/internal/models"
)

// PermissionChecker answers whether an actor holds a permission key.
// Computing permissions (roles, inheritance) happens in the auth service.
type PermissionChecker interface {
	HasPermission(ctx context.Context, actor models.Actor, key string) bool
}

// ClaimsPermissionChecker trusts the permission list carried in the actor's access token
type ClaimsPermissionChecker struct{}

// NewClaimsPermissionChecker creates a checker over token claims
func NewClaimsPermissionChecker() *ClaimsPermissionChecker {
	return &ClaimsPermissionChecker{}
}

// HasPermission reports whether key is among the actor's permissions
func (c *ClaimsPermissionChecker) HasPermission(ctx context.Context, actor models.Actor, key string) bool {
	for _, p := range actor.Permissions {
		if p == key {
			return true
		}
	}
	return false
}
