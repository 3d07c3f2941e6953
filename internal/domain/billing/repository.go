package billing

import (
	"context"

	"github.com/tenantcore/backend/internal/domain/shared"
)

// Ledger is the catalog-level, append-only store of billing events
type Ledger interface {
	// RecordIfNew inserts the record unless its event id exists, in one atomic statement.
	// A record still in received status counts as a retry: its attempts are incremented and OutcomePending is returned.
	RecordIfNew(ctx context.Context, record *EventRecord) (RecordOutcome, error)

	// Find returns the record for an event id
	Find(ctx context.Context, eventID string) (*EventRecord, error)

	// FindByStatus lists records in one status, oldest first
	FindByStatus(ctx context.Context, status RecordStatus, filter shared.Filter) ([]EventRecord, int64, error)

	// MarkRejected moves a received record to rejected, keeping its payload
	MarkRejected(ctx context.Context, eventID, reason string) error

	// RecordFailure stores the last retryable error on a received record
	RecordFailure(ctx context.Context, eventID, message string) error

	// Reopen moves a rejected record back to received for an explicit reprocess
	Reopen(ctx context.Context, eventID string) error
}

// ScopedLedger is the ledger as seen from inside an apply transaction
type ScopedLedger interface {
	// Claim locks the record for the rest of the transaction
	Claim(ctx context.Context, eventID string) (*EventRecord, error)

	// MarkProcessed sets status applied and processed_at in the same transaction as the effect
	MarkProcessed(ctx context.Context, eventID string) error
}

// SubscriptionRepository reads and writes the subscription of the bound tenant
type SubscriptionRepository interface {
	// Get returns the subscription or shared.ErrNotFound
	Get(ctx context.Context) (*Subscription, error)

	// GetForUpdate is Get with a row lock held until the transaction ends
	GetForUpdate(ctx context.Context) (*Subscription, error)

	// Save inserts or replaces the single subscription row
	Save(ctx context.Context, subscription *Subscription) error
}

// InvoiceLineRepository appends invoice lines in the bound tenant namespace
type InvoiceLineRepository interface {
	// Append inserts the line unless its invoice id exists; it reports whether a row was written
	Append(ctx context.Context, line *InvoiceLine) (bool, error)

	// FindAll lists invoice lines, newest first
	FindAll(ctx context.Context, filter shared.Filter) ([]InvoiceLine, error)
}
