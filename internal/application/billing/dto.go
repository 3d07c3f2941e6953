package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
)

// SubscriptionResponse is the billing state of the bound tenant as seen by one principal
type SubscriptionResponse struct {
	PlanCode         string                `json:"plan_code,omitempty"`
	State            string                `json:"state"`
	CurrentPeriodEnd *time.Time            `json:"current_period_end,omitempty"`
	LastEventID      string                `json:"last_event_id,omitempty"`
	LastEventAt      *time.Time            `json:"last_event_at,omitempty"`
	Roles            []string              `json:"roles"`
	Invoices         []InvoiceLineResponse `json:"invoices"`
}

// InvoiceLineResponse is one paid invoice
type InvoiceLineResponse struct {
	InvoiceID string          `json:"invoice_id"`
	EventID   string          `json:"event_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PeriodEnd *time.Time      `json:"period_end,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventRecordResponse is a ledger entry as shown to operators
type EventRecordResponse struct {
	EventID      string     `json:"event_id"`
	TenantRef    string     `json:"tenant_ref"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	ReceivedAt   time.Time  `json:"received_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
}

// EventRecordListResult is a page of ledger entries
type EventRecordListResult struct {
	Events []EventRecordResponse `json:"events"`
	Total  int64                 `json:"total"`
}

// ToInvoiceLineResponse converts a domain invoice line
func ToInvoiceLineResponse(line billing.InvoiceLine) InvoiceLineResponse {
	return InvoiceLineResponse{
		InvoiceID: line.InvoiceID,
		EventID:   line.EventID,
		Amount:    line.Amount,
		Currency:  line.Currency,
		PeriodEnd: line.PeriodEnd,
		CreatedAt: line.CreatedAt,
	}
}

// ToEventRecordResponse converts a ledger entry
func ToEventRecordResponse(r billing.EventRecord) EventRecordResponse {
	return EventRecordResponse{
		EventID:      r.EventID,
		TenantRef:    r.TenantRef,
		Type:         r.Type.String(),
		Status:       string(r.Status),
		ReceivedAt:   r.ReceivedAt,
		ProcessedAt:  r.ProcessedAt,
		RejectReason: r.RejectReason,
		Attempts:     r.Attempts,
		LastError:    r.LastError,
	}
}

func roleNames(grants []identity.RoleGrant) []string {
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		names = append(names, g.Role.String())
	}
	return names
}
