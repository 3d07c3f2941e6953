package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// Role is an application role granted inside a tenant namespace (e.g. "admin", "billing_viewer")
type Role string

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseRole normalizes and validates a role name
func ParseRole(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", shared.NewDomainError("INVALID_ROLE", "Role name cannot be empty")
	}
	if len(name) > 50 {
		return "", shared.NewDomainError("INVALID_ROLE", "Role name cannot exceed 50 characters")
	}
	if !roleNamePattern.MatchString(name) {
		return "", shared.NewDomainError("INVALID_ROLE", "Role name can only contain lower-case letters, digits and underscores")
	}
	return Role(name), nil
}

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// RoleGrant is a role held by a principal inside one tenant namespace
type RoleGrant struct {
	PrincipalID   uuid.UUID
	Role          Role
	SourceEventID string // Billing event that caused the grant, empty for manual grants
	GrantedAt     time.Time
}

// TenantDescriptor is the copy of catalog facts stored inside the tenant namespace
type TenantDescriptor struct {
	TenantID  uuid.UUID
	Slug      string
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

// Descriptor returns the descriptor mirrored into the tenant namespace
func (t *Tenant) Descriptor() TenantDescriptor {
	return TenantDescriptor{
		TenantID:  t.ID,
		Slug:      t.Slug,
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt,
	}
}
