package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// InvoiceLine is a paid invoice appended to the tenant's namespace.
// InvoiceID is a second idempotency key next to the ledger's event id.
type InvoiceLine struct {
	InvoiceID string
	EventID   string
	Amount    decimal.Decimal
	Currency  string
	PeriodEnd *time.Time
	CreatedAt time.Time
}

// NewInvoiceLine creates an invoice line from an invoice.paid event
func NewInvoiceLine(invoiceID, eventID string, amount decimal.Decimal, currency string, periodEnd *time.Time) (*InvoiceLine, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice id is required")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice amount cannot be negative")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice currency must be a 3-letter code")
	}
	return &InvoiceLine{
		InvoiceID: invoiceID,
		EventID:   eventID,
		Amount:    amount,
		Currency:  currency,
		PeriodEnd: periodEnd,
		CreatedAt: time.Now().UTC(),
	}, nil
}
