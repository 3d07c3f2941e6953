package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
)

// TenantTableNames lists the tables that exist inside every tenant namespace
var TenantTableNames = []string{
	TenantDescriptorModel{}.TableName(),
	SubscriptionModel{}.TableName(),
	RoleGrantModel{}.TableName(),
	InvoiceLineModel{}.TableName(),
}

// TenantDescriptorModel mirrors catalog facts inside the tenant namespace. It holds one row.
type TenantDescriptorModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug      string    `gorm:"type:varchar(63);not null"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantDescriptorModel) TableName() string {
	return "tenant_descriptor"
}

// ToDomain converts the persistence model to a domain TenantDescriptor
func (m *TenantDescriptorModel) ToDomain() *identity.TenantDescriptor {
	return &identity.TenantDescriptor{
		TenantID:  m.TenantID,
		Slug:      m.Slug,
		OwnerID:   m.OwnerID,
		CreatedAt: m.CreatedAt,
	}
}

// SubscriptionModel is the single subscription row of a tenant; ID is always 1
type SubscriptionModel struct {
	ID               int                       `gorm:"primaryKey;autoIncrement:false"`
	PlanCode         string                    `gorm:"type:varchar(50);not null"`
	State            billing.SubscriptionState `gorm:"type:varchar(20);not null"`
	GrantedPlan      string                    `gorm:"type:varchar(50);not null;default:''"`
	CurrentPeriodEnd *time.Time
	LastEventID      string    `gorm:"type:varchar(255);not null"`
	LastEventAt      time.Time `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// SubscriptionRowID is the primary key of the only subscription row
const SubscriptionRowID = 1

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscription"
}

// ToDomain converts the persistence model to a domain Subscription
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		PlanCode:         m.PlanCode,
		State:            m.State,
		GrantedPlan:      m.GrantedPlan,
		CurrentPeriodEnd: m.CurrentPeriodEnd,
		LastEventID:      m.LastEventID,
		LastEventAt:      m.LastEventAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription
func SubscriptionModelFromDomain(s *billing.Subscription) *SubscriptionModel {
	return &SubscriptionModel{
		ID:               SubscriptionRowID,
		PlanCode:         s.PlanCode,
		State:            s.State,
		GrantedPlan:      s.GrantedPlan,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		LastEventID:      s.LastEventID,
		LastEventAt:      s.LastEventAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// RoleGrantModel is a role held by a principal inside the tenant
type RoleGrantModel struct {
	PrincipalID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role          string    `gorm:"type:varchar(50);primaryKey"`
	SourceEventID string    `gorm:"type:varchar(255);not null;default:''"`
	GrantedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RoleGrantModel) TableName() string {
	return "role_grants"
}

// ToDomain converts the persistence model to a domain RoleGrant
func (m *RoleGrantModel) ToDomain() identity.RoleGrant {
	return identity.RoleGrant{
		PrincipalID:   m.PrincipalID,
		Role:          identity.Role(m.Role),
		SourceEventID: m.SourceEventID,
		GrantedAt:     m.GrantedAt,
	}
}

// InvoiceLineModel is a paid invoice inside the tenant
type InvoiceLineModel struct {
	InvoiceID string          `gorm:"type:varchar(255);primaryKey"`
	EventID   string          `gorm:"type:varchar(255);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency  string          `gorm:"type:varchar(3);not null"`
	PeriodEnd *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the persistence model to a domain InvoiceLine
func (m *InvoiceLineModel) ToDomain() billing.InvoiceLine {
	return billing.InvoiceLine{
		InvoiceID: m.InvoiceID,
		EventID:   m.EventID,
		Amount:    m.Amount,
		Currency:  m.Currency,
		PeriodEnd: m.PeriodEnd,
		CreatedAt: m.CreatedAt,
	}
}

// InvoiceLineModelFromDomain creates a new persistence model from a domain InvoiceLine
func InvoiceLineModelFromDomain(l *billing.InvoiceLine) *InvoiceLineModel {
	return &InvoiceLineModel{
		InvoiceID: l.InvoiceID,
		EventID:   l.EventID,
		Amount:    l.Amount,
		Currency:  l.Currency,
		PeriodEnd: l.PeriodEnd,
		CreatedAt: l.CreatedAt,
	}
}
