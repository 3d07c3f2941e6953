package billing

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// Payload is the normalized webhook body
type Payload struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	TenantRef  string      `json:"tenant_ref"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       PayloadData `json:"data"`
}

// PayloadData carries the type-specific fields
type PayloadData struct {
	PlanCode         string           `json:"plan_code,omitempty"`
	CurrentPeriodEnd *time.Time       `json:"current_period_end,omitempty"`
	InvoiceID        string           `json:"invoice_id,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Currency         string           `json:"currency,omitempty"`
}

// ParsePayload decodes and validates the envelope of a webhook body.
// Type-specific fields are checked when the event is applied.
func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Billing event payload is not valid JSON")
	}
	p.ID = strings.TrimSpace(p.ID)
	p.TenantRef = strings.TrimSpace(p.TenantRef)
	p.Data.PlanCode = strings.ToLower(strings.TrimSpace(p.Data.PlanCode))
	p.Data.Currency = strings.ToUpper(strings.TrimSpace(p.Data.Currency))

	if p.ID == "" {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Billing event id is required")
	}
	if p.Type == "" {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Billing event type is required")
	}
	if p.OccurredAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Billing event occurred_at is required")
	}
	p.OccurredAt = p.OccurredAt.UTC()
	return &p, nil
}
