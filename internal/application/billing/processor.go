// Package billing applies billing provider events to tenant namespaces.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Outcome is the result of ingesting one billing event
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeAlreadySeen Outcome = "already_seen"
	OutcomeRejected    Outcome = "rejected"
)

const (
	defaultApplyTimeout  = 10 * time.Second
	defaultLedgerTimeout = 3 * time.Second
)

// errAlreadyProcessed aborts an apply transaction that found its record already applied
var errAlreadyProcessed = errors.New("billing event already processed")

// TenantLookup finds the catalog snapshot of a tenant by id
type TenantLookup interface {
	Lookup(ctx context.Context, tenantID uuid.UUID) (*identity.TenantSnapshot, error)
}

// Metrics receives billing measurements
type Metrics interface {
	RecordBillingEvent(ctx context.Context, eventType string, outcome string)
	RecordApplyDuration(ctx context.Context, eventType string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordBillingEvent(context.Context, string, string)         {}
func (nopMetrics) RecordApplyDuration(context.Context, string, time.Duration) {}

// IngestInput is one delivery of a billing event
type IngestInput struct {
	EventID   string
	TenantRef string // Hint from the envelope; the stored payload is authoritative
	Type      billing.EventType
	Payload   []byte
}

// IngestResult contains the outcome of an ingest
type IngestResult struct {
	EventID   string  `json:"event_id"`
	EventType string  `json:"event_type"`
	Outcome   Outcome `json:"outcome"`
	Message   string  `json:"message,omitempty"`
}

// ProcessorConfig contains configuration for the processor
type ProcessorConfig struct {
	Ledger        billing.Ledger
	Tenants       TenantLookup
	Binder        tenancy.Binder
	Mapper        *billing.PlanRoleMapper
	ApplyTimeout  time.Duration
	LedgerTimeout time.Duration
	Metrics       Metrics
	Logger        *zap.Logger
}

// Processor records billing events in the ledger and applies them exactly once
type Processor struct {
	ledger        billing.Ledger
	tenants       TenantLookup
	binder        tenancy.Binder
	mapper        *billing.PlanRoleMapper
	applyTimeout  time.Duration
	ledgerTimeout time.Duration
	metrics       Metrics
	logger        *zap.Logger
}

// NewProcessor creates a new Processor
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = defaultApplyTimeout
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaultLedgerTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Processor{
		ledger:        cfg.Ledger,
		tenants:       cfg.Tenants,
		binder:        cfg.Binder,
		mapper:        cfg.Mapper,
		applyTimeout:  cfg.ApplyTimeout,
		ledgerTimeout: cfg.LedgerTimeout,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// IngestBillingEvent records the event and applies it to the tenant it references.
// A returned error is retryable: the record stays received and a redelivery retries it.
func (p *Processor) IngestBillingEvent(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartOperation(ctx, "billing", "ingest",
		telemetry.KeyEventID.String(input.EventID),
		telemetry.KeyEventType.String(string(input.Type)),
	)
	defer span.End()

	result, err := p.ingest(ctx, input)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(telemetry.KeyEventOutcome.String(string(result.Outcome)))
	return result, nil
}

func (p *Processor) ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	record, err := billing.NewEventRecord(input.EventID, input.TenantRef, input.Type, input.Payload)
	if err != nil {
		return nil, err
	}

	log := p.log(ctx, record)

	outcome, err := p.recordIfNew(ctx, record)
	if err != nil {
		log.Error("Failed to record billing event", zap.Error(err))
		return nil, fmt.Errorf("failed to record billing event: %w", err)
	}
	if outcome == billing.OutcomeAlreadySeen {
		log.Info("Billing event already seen")
		return p.finish(ctx, record, OutcomeAlreadySeen, "Event already processed"), nil
	}
	if outcome == billing.OutcomePending {
		log.Info("Retrying pending billing event")
	}

	return p.process(ctx, record)
}

// Reprocess re-enters lookup, bind and apply for a stored received record
func (p *Processor) Reprocess(ctx context.Context, record *billing.EventRecord) (*IngestResult, error) {
	if record.Status != billing.RecordStatusReceived {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Only received billing events can be processed")
	}
	p.log(ctx, record).Info("Reprocessing billing event")
	return p.process(ctx, record)
}

func (p *Processor) recordIfNew(ctx context.Context, record *billing.EventRecord) (billing.RecordOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.ledgerTimeout)
	defer cancel()
	return p.ledger.RecordIfNew(ctx, record)
}

func (p *Processor) process(ctx context.Context, record *billing.EventRecord) (*IngestResult, error) {
	payload, err := billing.ParsePayload(record.Payload)
	if err != nil {
		return p.reject(ctx, record, err.Error())
	}
	if !record.Type.IsKnown() {
		return p.reject(ctx, record, fmt.Sprintf("Unknown billing event type %q", record.Type))
	}

	tenantRef := payload.TenantRef
	if tenantRef == "" {
		tenantRef = record.TenantRef
	}
	tenantID, err := uuid.Parse(tenantRef)
	if err != nil {
		return p.reject(ctx, record, fmt.Sprintf("Unknown tenant reference %q", tenantRef))
	}

	snapshot, err := p.tenants.Lookup(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return p.reject(ctx, record, fmt.Sprintf("Unknown tenant %s", tenantID))
		}
		return p.fail(ctx, record, fmt.Errorf("failed to look up tenant: %w", err))
	}
	binding, err := snapshot.BillingBinding()
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return p.reject(ctx, record, fmt.Sprintf("Tenant %s is deleted", tenantID))
		}
		return p.fail(ctx, record, err)
	}

	ctx = logger.WithTenantID(ctx, tenantID.String())
	ctx = logger.WithNamespace(ctx, binding.Namespace().String())
	log := p.log(ctx, record)

	start := time.Now()
	err = p.apply(ctx, binding, record, payload)
	p.metrics.RecordApplyDuration(ctx, record.Type.String(), time.Since(start))

	switch {
	case err == nil:
		log.Info("Billing event applied")
		return p.finish(ctx, record, OutcomeAccepted, "Event applied"), nil
	case errors.Is(err, errAlreadyProcessed):
		log.Info("Billing event applied by a concurrent delivery")
		return p.finish(ctx, record, OutcomeAlreadySeen, "Event already processed"), nil
	case errors.Is(err, shared.ErrRejected):
		return p.reject(ctx, record, rejectionReason(err))
	default:
		return p.fail(ctx, record, err)
	}
}

// apply runs the effect, the ledger claim and the processed mark in one tenant transaction
func (p *Processor) apply(ctx context.Context, binding identity.Binding, record *billing.EventRecord, payload *billing.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, p.applyTimeout)
	defer cancel()

	return p.binder.ScopedAcquire(ctx, binding, func(ctx context.Context, repos tenancy.TenantRepositories) error {
		if err := repos.LockTenant(ctx); err != nil {
			return fmt.Errorf("failed to lock tenant: %w", err)
		}

		claimed, err := repos.Ledger().Claim(ctx, record.EventID)
		if err != nil {
			return fmt.Errorf("failed to claim billing event: %w", err)
		}
		if claimed.Status != billing.RecordStatusReceived {
			return errAlreadyProcessed
		}

		descriptor, err := repos.Descriptor().Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read tenant descriptor: %w", err)
		}

		effect := &effect{
			repos:   repos,
			mapper:  p.mapper,
			payload: payload,
			eventID: record.EventID,
			owner:   descriptor.OwnerID,
			log:     p.log(ctx, record),
		}
		if err := effect.apply(ctx, record.Type); err != nil {
			return err
		}

		return repos.Ledger().MarkProcessed(ctx, record.EventID)
	})
}

func (p *Processor) reject(ctx context.Context, record *billing.EventRecord, reason string) (*IngestResult, error) {
	log := p.log(ctx, record)

	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.ledgerTimeout)
	defer cancel()
	if err := p.ledger.MarkRejected(ledgerCtx, record.EventID, reason); err != nil {
		if errors.Is(err, shared.ErrInvalidState) {
			log.Info("Billing event reached a terminal status concurrently")
			return p.finish(ctx, record, OutcomeAlreadySeen, "Event already processed"), nil
		}
		log.Error("Failed to mark billing event rejected", zap.Error(err))
		return nil, fmt.Errorf("failed to reject billing event: %w", err)
	}

	log.Error("Billing event rejected, manual reconciliation required",
		zap.String("tenant_ref", record.TenantRef),
		zap.String("reason", reason),
	)
	return p.finish(ctx, record, OutcomeRejected, reason), nil
}

func (p *Processor) fail(ctx context.Context, record *billing.EventRecord, cause error) (*IngestResult, error) {
	log := p.log(ctx, record)
	log.Warn("Billing event apply failed, awaiting redelivery", zap.Error(cause))

	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.ledgerTimeout)
	defer cancel()
	if err := p.ledger.RecordFailure(ledgerCtx, record.EventID, cause.Error()); err != nil {
		log.Warn("Failed to record billing event failure", zap.Error(err))
	}

	p.metrics.RecordBillingEvent(ctx, record.Type.String(), "failed")
	return nil, fmt.Errorf("failed to apply billing event %s: %w", record.EventID, cause)
}

func (p *Processor) finish(ctx context.Context, record *billing.EventRecord, outcome Outcome, message string) *IngestResult {
	p.metrics.RecordBillingEvent(ctx, record.Type.String(), string(outcome))
	return &IngestResult{
		EventID:   record.EventID,
		EventType: record.Type.String(),
		Outcome:   outcome,
		Message:   message,
	}
}

func (p *Processor) log(ctx context.Context, record *billing.EventRecord) *logger.ContextLogger {
	return logger.WithLogger(ctx, p.logger).With(
		zap.String("event_id", record.EventID),
		zap.String("event_type", record.Type.String()),
	)
}

func rejectionReason(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
