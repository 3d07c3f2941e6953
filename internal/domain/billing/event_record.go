package billing

import (
	"strings"
	"time"

	"github.com/tenantcore/backend/internal/domain/shared"
)

// RecordStatus is the processing status of a ledger entry
type RecordStatus string

const (
	RecordStatusReceived RecordStatus = "received" // Stored, not yet applied; redelivery retries it
	RecordStatusApplied  RecordStatus = "applied"
	RecordStatusRejected RecordStatus = "rejected" // Terminal; needs manual reconciliation
)

// IsValid reports whether the status is known
func (s RecordStatus) IsValid() bool {
	return s == RecordStatusReceived || s == RecordStatusApplied || s == RecordStatusRejected
}

// IsTerminal reports whether no further processing will happen
func (s RecordStatus) IsTerminal() bool {
	return s == RecordStatusApplied || s == RecordStatusRejected
}

// RecordOutcome is the result of trying to insert a ledger entry
type RecordOutcome string

const (
	// OutcomeAccepted means the event was not seen before and has just been recorded
	OutcomeAccepted RecordOutcome = "accepted"
	// OutcomeAlreadySeen means the event reached a terminal status earlier
	OutcomeAlreadySeen RecordOutcome = "already_seen"
	// OutcomePending means an earlier delivery was recorded but never applied
	OutcomePending RecordOutcome = "pending"
)

// EventRecord is an append-only ledger entry. Records are never deleted.
type EventRecord struct {
	EventID      string
	TenantRef    string
	Type         EventType
	Payload      []byte
	Status       RecordStatus
	ReceivedAt   time.Time
	ProcessedAt  *time.Time
	RejectReason string
	Attempts     int
	LastError    string
}

// NewEventRecord creates a received ledger entry
func NewEventRecord(eventID, tenantRef string, eventType EventType, payload []byte) (*EventRecord, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, shared.NewDomainError("INVALID_EVENT_ID", "Billing event id cannot be empty")
	}
	if len(eventID) > 255 {
		return nil, shared.NewDomainError("INVALID_EVENT_ID", "Billing event id cannot exceed 255 characters")
	}
	if strings.TrimSpace(string(eventType)) == "" {
		return nil, shared.NewDomainError("INVALID_EVENT_TYPE", "Billing event type cannot be empty")
	}

	return &EventRecord{
		EventID:    eventID,
		TenantRef:  strings.TrimSpace(tenantRef),
		Type:       eventType,
		Payload:    payload,
		Status:     RecordStatusReceived,
		ReceivedAt: time.Now().UTC(),
		Attempts:   1,
	}, nil
}

// IsProcessed reports whether the record has been applied
func (r *EventRecord) IsProcessed() bool {
	return r.Status == RecordStatusApplied
}

// NewRejection builds the error for an event that can never be applied as delivered
func NewRejection(reason string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeRejected, reason)
}
