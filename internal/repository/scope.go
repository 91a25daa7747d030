package repository

import (
	"context"

	"go-retail-ledger/pkg/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// scoped binds tenantID on the statement context. The tenant guard turns the binding
// into the tenant predicate, so every tenant-scoped method goes through here.
func scoped(db *gorm.DB, ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return db.WithContext(tenant.WithTenant(ctx, tenantID))
}

// forUpdate takes an exclusive row lock for the rest of the transaction
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
