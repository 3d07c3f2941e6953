// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Two groups of tables exist:
//   - catalog.go and billing_event.go: shared tables in the public schema
//   - tenant_schema.go: tables created inside every tenant namespace. Their names are
//     never schema-qualified; the bound search_path decides which tenant they hit.
package models
