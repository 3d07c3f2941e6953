package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
)

// TenantModel is the persistence model for the Tenant aggregate
type TenantModel struct {
	AggregateModel
	Slug      string                `gorm:"type:varchar(63);not null;uniqueIndex"`
	Namespace string                `gorm:"type:varchar(63);not null;uniqueIndex"`
	Status    identity.TenantStatus `gorm:"type:varchar(20);not null;default:'provisioning'"`
	OwnerID   uuid.UUID             `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant
func (m *TenantModel) ToDomain() *identity.Tenant {
	return &identity.Tenant{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Slug:              m.Slug,
		Namespace:         identity.Namespace(m.Namespace),
		Status:            m.Status,
		OwnerID:           m.OwnerID,
	}
}

// FromDomain populates the persistence model from a domain Tenant
func (m *TenantModel) FromDomain(t *identity.Tenant) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.Slug = t.Slug
	m.Namespace = t.Namespace.String()
	m.Status = t.Status
	m.OwnerID = t.OwnerID
}

// TenantModelFromDomain creates a new persistence model from a domain Tenant
func TenantModelFromDomain(t *identity.Tenant) *TenantModel {
	m := &TenantModel{}
	m.FromDomain(t)
	return m
}

// TenantDomainModel maps a custom host to a tenant
type TenantDomainModel struct {
	Host      string    `gorm:"type:varchar(253);primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantDomainModel) TableName() string {
	return "tenant_domains"
}

// ToDomain converts the persistence model to a domain TenantDomain
func (m *TenantDomainModel) ToDomain() *identity.TenantDomain {
	return &identity.TenantDomain{
		Host:      m.Host,
		TenantID:  m.TenantID,
		CreatedAt: m.CreatedAt,
	}
}

// TenantDomainModelFromDomain creates a new persistence model from a domain TenantDomain
func TenantDomainModelFromDomain(d *identity.TenantDomain) *TenantDomainModel {
	return &TenantDomainModel{
		Host:      d.Host,
		TenantID:  d.TenantID,
		CreatedAt: d.CreatedAt,
	}
}

// MembershipModel links a principal to a tenant
type MembershipModel struct {
	TenantID    uuid.UUID               `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID               `gorm:"type:uuid;primaryKey;index"`
	Role        identity.MembershipRole `gorm:"type:varchar(20);not null;default:'member'"`
	CreatedAt   time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MembershipModel) TableName() string {
	return "tenant_memberships"
}

// ToDomain converts the persistence model to a domain Membership
func (m *MembershipModel) ToDomain() *identity.Membership {
	return &identity.Membership{
		TenantID:    m.TenantID,
		PrincipalID: m.PrincipalID,
		Role:        m.Role,
		CreatedAt:   m.CreatedAt,
	}
}

// MembershipModelFromDomain creates a new persistence model from a domain Membership
func MembershipModelFromDomain(ms *identity.Membership) *MembershipModel {
	return &MembershipModel{
		TenantID:    ms.TenantID,
		PrincipalID: ms.PrincipalID,
		Role:        ms.Role,
		CreatedAt:   ms.CreatedAt,
	}
}
