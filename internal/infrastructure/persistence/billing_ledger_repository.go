package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository implements billing.Ledger on the catalog billing_events table
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// RecordIfNew inserts the record with ON CONFLICT DO NOTHING.
// When the id exists, a record still in received status is counted as a retry.
func (r *GormLedgerRepository) RecordIfNew(ctx context.Context, record *billing.EventRecord) (billing.RecordOutcome, error) {
	model := models.BillingEventModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 1 {
		return billing.OutcomeAccepted, nil
	}

	retry := r.db.WithContext(ctx).
		Model(&models.BillingEventModel{}).
		Where("event_id = ? AND status = ?", record.EventID, billing.RecordStatusReceived).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if retry.Error != nil {
		return "", retry.Error
	}
	if retry.RowsAffected == 1 {
		return billing.OutcomePending, nil
	}
	return billing.OutcomeAlreadySeen, nil
}

// Find returns the record for eventID
func (r *GormLedgerRepository) Find(ctx context.Context, eventID string) (*billing.EventRecord, error) {
	var model models.BillingEventModel
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStatus lists records in status, oldest first unless the filter says otherwise
func (r *GormLedgerRepository) FindByStatus(ctx context.Context, status billing.RecordStatus, filter shared.Filter) ([]billing.EventRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BillingEventModel{}).Where("status = ?", status)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var eventModels []models.BillingEventModel
	if err := query.Order(ledgerListOrder.clause(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&eventModels).Error; err != nil {
		return nil, 0, err
	}

	records := make([]billing.EventRecord, len(eventModels))
	for i, model := range eventModels {
		records[i] = *model.ToDomain()
	}
	return records, total, nil
}

// MarkRejected moves a received record to rejected. The payload is kept.
func (r *GormLedgerRepository) MarkRejected(ctx context.Context, eventID, reason string) error {
	return r.transition(ctx, eventID, billing.RecordStatusReceived, map[string]any{
		"status":        billing.RecordStatusRejected,
		"reject_reason": reason,
	})
}

// RecordFailure stores the last retryable error of a received record
func (r *GormLedgerRepository) RecordFailure(ctx context.Context, eventID, message string) error {
	return r.transition(ctx, eventID, billing.RecordStatusReceived, map[string]any{
		"last_error": message,
	})
}

// Reopen moves a rejected record back to received
func (r *GormLedgerRepository) Reopen(ctx context.Context, eventID string) error {
	return r.transition(ctx, eventID, billing.RecordStatusRejected, map[string]any{
		"status":   billing.RecordStatusReceived,
		"attempts": gorm.Expr("attempts + 1"),
	})
}

func (r *GormLedgerRepository) transition(ctx context.Context, eventID string, from billing.RecordStatus, values map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.BillingEventModel{}).
		Where("event_id = ? AND status = ?", eventID, from).
		UpdateColumns(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Find(ctx, eventID); err != nil {
			return err
		}
		return shared.NewDomainError(shared.CodeInvalidState, "Billing event is not "+string(from))
	}
	return nil
}

// gormScopedLedger is the ledger as seen from inside an apply transaction.
// table is schema-qualified in production because the tenant search_path hides the catalog.
type gormScopedLedger struct {
	tx    *gorm.DB
	table string
}

func newGormScopedLedger(tx *gorm.DB, table string) *gormScopedLedger {
	return &gormScopedLedger{tx: tx, table: table}
}

// Claim locks the record with SELECT ... FOR UPDATE until the transaction ends
func (l *gormScopedLedger) Claim(ctx context.Context, eventID string) (*billing.EventRecord, error) {
	var model models.BillingEventModel
	err := l.tx.WithContext(ctx).
		Table(l.table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ?", eventID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkProcessed sets applied status and processed_at in the caller's transaction
func (l *gormScopedLedger) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	result := l.tx.WithContext(ctx).
		Table(l.table).
		Where("event_id = ? AND status = ?", eventID, billing.RecordStatusReceived).
		UpdateColumns(map[string]any{
			"status":       billing.RecordStatusApplied,
			"processed_at": now,
			"last_error":   "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeInvalidState, "Billing event is not awaiting application")
	}
	return nil
}

// Ensure the ledger implementations satisfy the domain ports
var (
	_ billing.Ledger       = (*GormLedgerRepository)(nil)
	_ billing.ScopedLedger = (*gormScopedLedger)(nil)
)
