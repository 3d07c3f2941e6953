package models

import (
	"time"

	"github.com/tenantcore/backend/internal/domain/billing"
)

// BillingEventModel is the persistence model for the billing event ledger
type BillingEventModel struct {
	EventID      string               `gorm:"type:varchar(255);primaryKey"`
	TenantRef    string               `gorm:"type:varchar(255);not null;default:''"`
	Type         billing.EventType    `gorm:"type:varchar(100);not null"`
	Payload      string               `gorm:"type:jsonb;not null"`
	Status       billing.RecordStatus `gorm:"type:varchar(20);not null;default:'received'"`
	ReceivedAt   time.Time            `gorm:"not null"`
	ProcessedAt  *time.Time
	RejectReason string `gorm:"type:text;not null;default:''"`
	Attempts     int    `gorm:"not null;default:1"`
	LastError    string `gorm:"type:text;not null;default:''"`
}

// TableName returns the table name for GORM
func (BillingEventModel) TableName() string {
	return "billing_events"
}

// ToDomain converts the persistence model to a domain EventRecord
func (m *BillingEventModel) ToDomain() *billing.EventRecord {
	return &billing.EventRecord{
		EventID:      m.EventID,
		TenantRef:    m.TenantRef,
		Type:         m.Type,
		Payload:      []byte(m.Payload),
		Status:       m.Status,
		ReceivedAt:   m.ReceivedAt,
		ProcessedAt:  m.ProcessedAt,
		RejectReason: m.RejectReason,
		Attempts:     m.Attempts,
		LastError:    m.LastError,
	}
}

// BillingEventModelFromDomain creates a new persistence model from a domain EventRecord
func BillingEventModelFromDomain(r *billing.EventRecord) *BillingEventModel {
	return &BillingEventModel{
		EventID:      r.EventID,
		TenantRef:    r.TenantRef,
		Type:         r.Type,
		Payload:      string(r.Payload),
		Status:       r.Status,
		ReceivedAt:   r.ReceivedAt,
		ProcessedAt:  r.ProcessedAt,
		RejectReason: r.RejectReason,
		Attempts:     r.Attempts,
		LastError:    r.LastError,
	}
}
