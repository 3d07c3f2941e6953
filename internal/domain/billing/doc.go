// Package billing provides domain models for keeping tenant subscriptions in sync with an external
// payment processor.
//
// This package implements the billing bounded context, which is responsible for:
//   - Recording every inbound billing event exactly once (the ledger)
//   - Applying subscription transitions inside the tenant's namespace
//   - Mapping plan transitions to role grants and revocations
//
// Key Aggregates:
//   - EventRecord: Append-only ledger entry keyed by the processor's event id
//   - Subscription: The single subscription of a tenant
//
// Value Objects:
//   - Payload: Normalized webhook body
//   - RoleChanges: Grants and revokes produced by the PlanRoleMapper
//   - InvoiceLine: Paid invoice, keyed by invoice id
//
// The billing domain integrates with:
//   - Identity domain: For tenant lookup and role grants
package billing
