package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// MembershipRole is the catalog-level relationship of a principal to a tenant
type MembershipRole string

const (
	MembershipRoleOwner  MembershipRole = "owner"
	MembershipRoleMember MembershipRole = "member"
)

// Membership records that a principal may act inside a tenant
type Membership struct {
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
	Role        MembershipRole
	CreatedAt   time.Time
}

// NewMembership creates a membership
func NewMembership(tenantID, principalID uuid.UUID, role MembershipRole) (*Membership, error) {
	if tenantID == uuid.Nil || principalID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MEMBERSHIP", "Membership requires tenant and principal")
	}
	if role != MembershipRoleOwner && role != MembershipRoleMember {
		return nil, shared.NewDomainError("INVALID_MEMBERSHIP", "Unknown membership role")
	}
	return &Membership{
		TenantID:    tenantID,
		PrincipalID: principalID,
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Principal is an authenticated caller as carried by a session token
type Principal struct {
	ID uuid.UUID
	// SessionTenantID is the tenant the session was issued for, uuid.Nil when unbound
	SessionTenantID uuid.UUID
	PlatformAdmin   bool
}

// IsZero reports whether no principal is present
func (p Principal) IsZero() bool {
	return p.ID == uuid.Nil
}
