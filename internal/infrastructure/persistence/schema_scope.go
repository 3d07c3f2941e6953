package persistence

import (
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// CatalogLedgerTable is the ledger table as addressed from inside a tenant namespace
const CatalogLedgerTable = "public.billing_events"

//go:embed ddl/tenant_schema.sql
var tenantSchemaDDL string

// TenantSchemaStatements returns the DDL statements that create the tables of one tenant namespace
func TenantSchemaStatements() []string {
	var stmts []string
	var b strings.Builder
	for _, line := range strings.Split(tenantSchemaDDL, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSpace(b.String()))
			b.Reset()
		}
	}
	return stmts
}

// searchPathStatement routes unqualified names to namespace until the transaction ends
func searchPathStatement(namespace string) string {
	return "SET LOCAL search_path TO " + pq.QuoteIdentifier(namespace)
}

// tenantLockKey maps a tenant to the key of its transaction-level advisory lock
func tenantLockKey(tenantID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(tenantID[:])
	return int64(h.Sum64())
}

// GormSchemaScope implements tenancy.Binder with a transaction whose search_path
// contains only the bound tenant namespace.
type GormSchemaScope struct {
	db          *gorm.DB
	ledgerTable string
}

// NewGormSchemaScope creates a new GormSchemaScope
func NewGormSchemaScope(db *gorm.DB) *GormSchemaScope {
	return &GormSchemaScope{db: db, ledgerTable: CatalogLedgerTable}
}

// ScopedAcquire runs body in a transaction bound to the namespace of binding.
// The transaction commits when body returns nil and rolls back on error or panic,
// which also restores the connection's search_path.
func (s *GormSchemaScope) ScopedAcquire(ctx context.Context, binding identity.Binding, body func(ctx context.Context, repos tenancy.TenantRepositories) error) error {
	if binding.IsZero() {
		return tenant.ErrInvalidNamespace
	}
	namespace := binding.Namespace().String()
	if !tenant.ValidNamespace(namespace) {
		return tenant.ErrInvalidNamespace
	}

	ctx = logger.WithTenantID(ctx, binding.TenantID().String())
	ctx = logger.WithNamespace(ctx, namespace)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(searchPathStatement(namespace)).Error; err != nil {
			return fmt.Errorf("failed to bind namespace %s: %w", namespace, err)
		}
		repos := &tenantRepositories{
			bound:       boundDB{tx: tx, namespace: namespace},
			ledgerTable: s.ledgerTable,
			tenantID:    binding.TenantID(),
		}
		return body(tenant.WithBoundNamespace(ctx, namespace), repos)
	})
}

// tenantRepositories provides access to the tenant-scoped repositories of one transaction
type tenantRepositories struct {
	bound       boundDB
	ledgerTable string
	tenantID    uuid.UUID
}

// Descriptor returns the descriptor repository scoped to the current transaction
func (r *tenantRepositories) Descriptor() identity.DescriptorRepository {
	return &gormDescriptorRepository{r.bound}
}

// RoleGrants returns the role grant repository scoped to the current transaction
func (r *tenantRepositories) RoleGrants() identity.RoleGrantRepository {
	return &gormRoleGrantRepository{r.bound}
}

// Subscriptions returns the subscription repository scoped to the current transaction
func (r *tenantRepositories) Subscriptions() billing.SubscriptionRepository {
	return &gormSubscriptionRepository{r.bound}
}

// InvoiceLines returns the invoice line repository scoped to the current transaction
func (r *tenantRepositories) InvoiceLines() billing.InvoiceLineRepository {
	return &gormInvoiceLineRepository{r.bound}
}

// Ledger returns the catalog ledger as seen from the current transaction
func (r *tenantRepositories) Ledger() billing.ScopedLedger {
	return newGormScopedLedger(r.bound.tx, r.ledgerTable)
}

// LockTenant takes the tenant's advisory lock; it is released at commit or rollback
func (r *tenantRepositories) LockTenant(ctx context.Context) error {
	return r.bound.tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", tenantLockKey(r.tenantID)).Error
}

// Ensure GormSchemaScope implements tenancy.Binder
var _ tenancy.Binder = (*GormSchemaScope)(nil)

// Ensure tenantRepositories implements tenancy.TenantRepositories
var _ tenancy.TenantRepositories = (*tenantRepositories)(nil)
