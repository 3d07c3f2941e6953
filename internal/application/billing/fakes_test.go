package billing

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// memLedger is an in-memory billing.Ledger
type memLedger struct {
	mu      sync.Mutex
	records map[string]*billing.EventRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]*billing.EventRecord)}
}

func (l *memLedger) RecordIfNew(_ context.Context, record *billing.EventRecord) (billing.RecordOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.records[record.EventID]; ok {
		if existing.Status == billing.RecordStatusReceived {
			existing.Attempts++
			return billing.OutcomePending, nil
		}
		return billing.OutcomeAlreadySeen, nil
	}
	stored := *record
	l.records[record.EventID] = &stored
	return billing.OutcomeAccepted, nil
}

func (l *memLedger) Find(_ context.Context, eventID string) (*billing.EventRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[eventID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (l *memLedger) FindByStatus(_ context.Context, status billing.RecordStatus, _ shared.Filter) ([]billing.EventRecord, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []billing.EventRecord
	for _, r := range l.records {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, int64(len(out)), nil
}

func (l *memLedger) transition(eventID string, from billing.RecordStatus, apply func(r *billing.EventRecord)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[eventID]
	if !ok {
		return shared.ErrNotFound
	}
	if r.Status != from {
		return shared.ErrInvalidState
	}
	apply(r)
	return nil
}

func (l *memLedger) MarkRejected(_ context.Context, eventID, reason string) error {
	return l.transition(eventID, billing.RecordStatusReceived, func(r *billing.EventRecord) {
		r.Status = billing.RecordStatusRejected
		r.RejectReason = reason
		now := time.Now().UTC()
		r.ProcessedAt = &now
	})
}

func (l *memLedger) RecordFailure(_ context.Context, eventID, message string) error {
	return l.transition(eventID, billing.RecordStatusReceived, func(r *billing.EventRecord) {
		r.LastError = message
	})
}

func (l *memLedger) Reopen(_ context.Context, eventID string) error {
	return l.transition(eventID, billing.RecordStatusRejected, func(r *billing.EventRecord) {
		r.Status = billing.RecordStatusReceived
		r.RejectReason = ""
		r.ProcessedAt = nil
		r.Attempts++
	})
}

func (l *memLedger) status(eventID string) billing.RecordStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[eventID]; ok {
		return r.Status
	}
	return ""
}

// memNamespace is the committed state of one tenant namespace
type memNamespace struct {
	descriptor   *identity.TenantDescriptor
	subscription *billing.Subscription
	grants       []identity.RoleGrant
	invoices     []billing.InvoiceLine
}

func (n *memNamespace) clone() *memNamespace {
	c := &memNamespace{
		descriptor: n.descriptor,
		grants:     slices.Clone(n.grants),
		invoices:   slices.Clone(n.invoices),
	}
	if n.subscription != nil {
		c.subscription = cloneSubscription(n.subscription)
	}
	return c
}

func (n *memNamespace) roles(principalID uuid.UUID) []string {
	var out []string
	for _, g := range n.grants {
		if g.PrincipalID == principalID {
			out = append(out, g.Role.String())
		}
	}
	sort.Strings(out)
	return out
}

func cloneSubscription(s *billing.Subscription) *billing.Subscription {
	c := *s
	if s.CurrentPeriodEnd != nil {
		end := *s.CurrentPeriodEnd
		c.CurrentPeriodEnd = &end
	}
	return &c
}

// memBinder commits a namespace copy only when the body succeeds.
// A single mutex stands in for the per-tenant advisory lock.
type memBinder struct {
	mu         sync.Mutex
	ledger     *memLedger
	namespaces map[uuid.UUID]*memNamespace
	grantErr   error
	acquired   int
}

func newMemBinder(ledger *memLedger) *memBinder {
	return &memBinder{ledger: ledger, namespaces: make(map[uuid.UUID]*memNamespace)}
}

func (b *memBinder) addTenant(tenantID, ownerID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.namespaces[tenantID] = &memNamespace{
		descriptor: &identity.TenantDescriptor{TenantID: tenantID, OwnerID: ownerID, Slug: "acme"},
	}
}

func (b *memBinder) namespace(tenantID uuid.UUID) *memNamespace {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.namespaces[tenantID].clone()
}

func (b *memBinder) ScopedAcquire(ctx context.Context, binding identity.Binding, body func(ctx context.Context, repos tenancy.TenantRepositories) error) error {
	if binding.IsZero() {
		return errors.New("unbound")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquired++

	committed, ok := b.namespaces[binding.TenantID()]
	if !ok {
		return errors.New("namespace does not exist")
	}
	tx := &memTx{binder: b, state: committed.clone()}
	if err := body(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.namespaces[binding.TenantID()] = tx.state
	for _, id := range tx.processed {
		_ = b.ledger.transition(id, billing.RecordStatusReceived, func(r *billing.EventRecord) {
			r.Status = billing.RecordStatusApplied
			now := time.Now().UTC()
			r.ProcessedAt = &now
		})
	}
	return nil
}

// memTx is one open tenant transaction
type memTx struct {
	binder    *memBinder
	state     *memNamespace
	processed []string
	locked    bool
}

func (t *memTx) Descriptor() identity.DescriptorRepository     { return memDescriptors{t} }
func (t *memTx) RoleGrants() identity.RoleGrantRepository      { return memGrants{t} }
func (t *memTx) Subscriptions() billing.SubscriptionRepository { return memSubscriptions{t} }
func (t *memTx) InvoiceLines() billing.InvoiceLineRepository   { return memInvoices{t} }
func (t *memTx) Ledger() billing.ScopedLedger                  { return memScopedLedger{t} }

func (t *memTx) LockTenant(context.Context) error {
	t.locked = true
	return nil
}

type memDescriptors struct{ tx *memTx }

func (r memDescriptors) Get(context.Context) (*identity.TenantDescriptor, error) {
	if r.tx.state.descriptor == nil {
		return nil, shared.ErrNotFound
	}
	d := *r.tx.state.descriptor
	return &d, nil
}

func (r memDescriptors) Put(_ context.Context, d identity.TenantDescriptor) error {
	r.tx.state.descriptor = &d
	return nil
}

type memGrants struct{ tx *memTx }

func (r memGrants) Grant(_ context.Context, grant identity.RoleGrant) error {
	if r.tx.binder.grantErr != nil {
		return r.tx.binder.grantErr
	}
	for _, g := range r.tx.state.grants {
		if g.PrincipalID == grant.PrincipalID && g.Role == grant.Role {
			return nil
		}
	}
	r.tx.state.grants = append(r.tx.state.grants, grant)
	return nil
}

func (r memGrants) Revoke(_ context.Context, principalID uuid.UUID, role identity.Role) error {
	r.tx.state.grants = slices.DeleteFunc(r.tx.state.grants, func(g identity.RoleGrant) bool {
		return g.PrincipalID == principalID && g.Role == role
	})
	return nil
}

func (r memGrants) FindByPrincipal(_ context.Context, principalID uuid.UUID) ([]identity.RoleGrant, error) {
	var out []identity.RoleGrant
	for _, g := range r.tx.state.grants {
		if g.PrincipalID == principalID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r memGrants) FindAll(context.Context) ([]identity.RoleGrant, error) {
	return slices.Clone(r.tx.state.grants), nil
}

type memSubscriptions struct{ tx *memTx }

func (r memSubscriptions) Get(context.Context) (*billing.Subscription, error) {
	if r.tx.state.subscription == nil {
		return nil, shared.ErrNotFound
	}
	return cloneSubscription(r.tx.state.subscription), nil
}

func (r memSubscriptions) GetForUpdate(ctx context.Context) (*billing.Subscription, error) {
	return r.Get(ctx)
}

func (r memSubscriptions) Save(_ context.Context, s *billing.Subscription) error {
	r.tx.state.subscription = cloneSubscription(s)
	return nil
}

type memInvoices struct{ tx *memTx }

func (r memInvoices) Append(_ context.Context, line *billing.InvoiceLine) (bool, error) {
	for _, l := range r.tx.state.invoices {
		if l.InvoiceID == line.InvoiceID {
			return false, nil
		}
	}
	r.tx.state.invoices = append(r.tx.state.invoices, *line)
	return true, nil
}

func (r memInvoices) FindAll(context.Context, shared.Filter) ([]billing.InvoiceLine, error) {
	out := slices.Clone(r.tx.state.invoices)
	slices.Reverse(out)
	return out, nil
}

type memScopedLedger struct{ tx *memTx }

func (r memScopedLedger) Claim(ctx context.Context, eventID string) (*billing.EventRecord, error) {
	return r.tx.binder.ledger.Find(ctx, eventID)
}

func (r memScopedLedger) MarkProcessed(_ context.Context, eventID string) error {
	r.tx.processed = append(r.tx.processed, eventID)
	return nil
}

// memLookup serves tenant snapshots by id
type memLookup struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]identity.TenantSnapshot
	err       error
}

func newMemLookup() *memLookup {
	return &memLookup{snapshots: make(map[uuid.UUID]identity.TenantSnapshot)}
}

func (l *memLookup) add(tenantID, ownerID uuid.UUID, status identity.TenantStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots[tenantID] = identity.TenantSnapshot{
		ID:        tenantID,
		Slug:      "acme",
		Namespace: identity.NamespaceFor(tenantID),
		Status:    status,
		OwnerID:   ownerID,
	}
}

func (l *memLookup) Lookup(_ context.Context, tenantID uuid.UUID) (*identity.TenantSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	s, ok := l.snapshots[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

// countingMetrics records billing outcomes
type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	applies  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{outcomes: make(map[string]int)}
}

func (m *countingMetrics) RecordBillingEvent(_ context.Context, _ string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *countingMetrics) RecordApplyDuration(context.Context, string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applies++
}

func (m *countingMetrics) count(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[outcome]
}
