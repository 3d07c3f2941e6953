package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics records tenant resolution and billing ingestion measurements.
// It satisfies the Metrics ports of the tenancy and billing application packages.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Tenancy
	registryLookupsTotal    *Counter
	resolutionFailuresTotal *Counter
	crossTenantDeniedTotal  *Counter

	// Billing
	billingEventsTotal   *Counter
	billingApplyDuration *DurationHistogram
	ledgerBacklog        *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	backlogProvider BacklogProvider
}

// BacklogProvider counts ledger records by status for the backlog gauge.
// billing.Ledger satisfies it.
type BacklogProvider interface {
	FindByStatus(ctx context.Context, status billing.RecordStatus, filter shared.Filter) ([]billing.EventRecord, int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	BacklogProvider BacklogProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		backlogProvider: cfg.BacklogProvider,
	}

	var err error

	bm.registryLookupsTotal, err = NewCounter(
		cfg.Meter,
		"tenantcore_registry_lookups_total",
		"Registry cache lookups by kind and result",
		"{lookups}",
	)
	if err != nil {
		return nil, err
	}

	bm.resolutionFailuresTotal, err = NewCounter(
		cfg.Meter,
		"tenantcore_resolution_failures_total",
		"Tenant resolution failures by reason",
		"{failures}",
	)
	if err != nil {
		return nil, err
	}

	bm.crossTenantDeniedTotal, err = NewCounter(
		cfg.Meter,
		"tenantcore_cross_tenant_denied_total",
		"Requests denied because the principal is not a member of the addressed tenant",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	bm.billingEventsTotal, err = NewCounter(
		cfg.Meter,
		"tenantcore_billing_events_total",
		"Billing events ingested by type and outcome",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	bm.billingApplyDuration, err = NewDurationHistogram(
		cfg.Meter,
		"tenantcore_billing_apply_duration_seconds",
		"Time spent applying a billing event inside its tenant namespace",
		ApplyDurationBuckets,
	)
	if err != nil {
		return nil, err
	}

	bm.ledgerBacklog, err = NewGauge(
		cfg.Meter,
		"tenantcore_billing_ledger_backlog",
		"Ledger records waiting in received or rejected status",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Tenancy Metrics
// =============================================================================

// RecordCacheLookup records a registry cache hit or miss
func (bm *BusinessMetrics) RecordCacheLookup(ctx context.Context, kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	bm.registryLookupsTotal.Inc(ctx,
		AttrLookupKind.String(kind),
		AttrLookupResult.String(result),
	)
}

// RecordResolutionFailure records a failed tenant resolution
func (bm *BusinessMetrics) RecordResolutionFailure(ctx context.Context, reason string) {
	bm.resolutionFailuresTotal.Inc(ctx, AttrFailureReason.String(reason))
}

// RecordCrossTenantDenied records a request refused for a non-member principal
func (bm *BusinessMetrics) RecordCrossTenantDenied(ctx context.Context) {
	bm.crossTenantDeniedTotal.Inc(ctx)
}

// =============================================================================
// Billing Metrics
// =============================================================================

// RecordBillingEvent records the outcome of one ingestion
func (bm *BusinessMetrics) RecordBillingEvent(ctx context.Context, eventType, outcome string) {
	bm.billingEventsTotal.Inc(ctx,
		AttrEventType.String(eventType),
		AttrOutcome.String(outcome),
	)
}

// RecordApplyDuration records how long the namespace-scoped apply took
func (bm *BusinessMetrics) RecordApplyDuration(ctx context.Context, eventType string, d time.Duration) {
	bm.billingApplyDuration.Observe(ctx, d, AttrEventType.String(eventType))
}

// RecordLedgerBacklog records the number of records in one status
func (bm *BusinessMetrics) RecordLedgerBacklog(ctx context.Context, status billing.RecordStatus, count int64) {
	bm.ledgerBacklog.Record(ctx, count, AttrLedgerStatus.String(string(status)))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of the ledger backlog gauge.
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectBacklog(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectBacklog(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectBacklog(ctx context.Context) {
	if bm.backlogProvider == nil {
		bm.logger.Debug("No backlog provider configured, skipping ledger backlog collection")
		return
	}

	for _, status := range []billing.RecordStatus{billing.RecordStatusReceived, billing.RecordStatusRejected} {
		_, total, err := bm.backlogProvider.FindByStatus(ctx, status, shared.Filter{Page: 1, PageSize: 1})
		if err != nil {
			bm.logger.Warn("Failed to count ledger backlog",
				zap.String("status", string(status)),
				zap.Error(err),
			)
			continue
		}
		bm.RecordLedgerBacklog(ctx, status, total)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// Business metrics attribute keys not already defined in metrics.go
var (
	AttrLookupKind    = attribute.Key("lookup_kind")
	AttrLookupResult  = attribute.Key("lookup_result")
	AttrFailureReason = attribute.Key("failure_reason")
	AttrEventType     = attribute.Key("event_type")
	AttrOutcome       = attribute.Key("outcome")
	AttrLedgerStatus  = attribute.Key("ledger_status")
)
