package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ReconciliationService lets operators inspect the ledger and explicitly reprocess events.
// Rejected events are never retried automatically.
type ReconciliationService struct {
	ledger    billing.Ledger
	processor *Processor
	logger    *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(ledger billing.Ledger, processor *Processor, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{
		ledger:    ledger,
		processor: processor,
		logger:    logger,
	}
}

// ListEvents lists ledger entries in one status, oldest first
func (s *ReconciliationService) ListEvents(ctx context.Context, status string, filter shared.Filter) (*EventRecordListResult, error) {
	st := billing.RecordStatus(status)
	if !st.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown billing event status %q", status))
	}

	records, total, err := s.ledger.FindByStatus(ctx, st, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing events: %w", err)
	}

	result := &EventRecordListResult{
		Events: make([]EventRecordResponse, 0, len(records)),
		Total:  total,
	}
	for _, r := range records {
		result.Events = append(result.Events, ToEventRecordResponse(r))
	}
	return result, nil
}

// GetEvent returns one ledger entry
func (s *ReconciliationService) GetEvent(ctx context.Context, eventID string) (*EventRecordResponse, error) {
	record, err := s.ledger.Find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	resp := ToEventRecordResponse(*record)
	return &resp, nil
}

// Reprocess applies a stored event again with its stored payload.
// A rejected event is reopened first; an applied event reports already_seen.
func (s *ReconciliationService) Reprocess(ctx context.Context, eventID string) (*IngestResult, error) {
	record, err := s.ledger.Find(ctx, eventID)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case billing.RecordStatusApplied:
		return &IngestResult{
			EventID:   record.EventID,
			EventType: record.Type.String(),
			Outcome:   OutcomeAlreadySeen,
			Message:   "Event already processed",
		}, nil
	case billing.RecordStatusRejected:
		if err := s.ledger.Reopen(ctx, eventID); err != nil {
			return nil, fmt.Errorf("failed to reopen billing event: %w", err)
		}
		logger.WithLogger(ctx, s.logger).Info("Rejected billing event reopened",
			zap.String("event_id", eventID),
			zap.String("previous_reason", record.RejectReason),
		)
		record.Status = billing.RecordStatusReceived
		record.RejectReason = ""
	}

	return s.processor.Reprocess(ctx, record)
}

// SweepResult summarizes one pass over stuck received events
type SweepResult struct {
	Scanned     int
	Applied     int
	AlreadySeen int
	Rejected    int
	Failed      int
}

// SweepPending reprocesses received events older than minAge, up to limit per pass.
// Rejected events are left for an operator.
func (s *ReconciliationService) SweepPending(ctx context.Context, minAge time.Duration, limit int) (*SweepResult, error) {
	records, _, err := s.ledger.FindByStatus(ctx, billing.RecordStatusReceived, shared.Filter{Page: 1, PageSize: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending billing events: %w", err)
	}

	result := &SweepResult{}
	cutoff := time.Now().Add(-minAge)
	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		record := &records[i]
		if record.ReceivedAt.After(cutoff) {
			continue
		}
		result.Scanned++

		res, err := s.processor.Reprocess(ctx, record)
		if err != nil {
			result.Failed++
			continue
		}
		switch res.Outcome {
		case OutcomeAccepted:
			result.Applied++
		case OutcomeAlreadySeen:
			result.AlreadySeen++
		case OutcomeRejected:
			result.Rejected++
		}
	}
	return result, nil
}
