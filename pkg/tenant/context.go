package tenant

import (
	"context"

	"go-retail-ledger/pkg/apperror"

	"github.com/google/uuid"
)

type contextKey struct{}

var (
	ErrTenantNotResolved = apperror.New(apperror.KindTenantNotResolved, "TENANT_NOT_RESOLVED", "tenant not resolved")
	ErrTenantMismatch    = apperror.Forbidden("TENANT_MISMATCH", "record belongs to another tenant")
)

// WithTenant binds tenantID to ctx. Binding the tenant that is already bound returns ctx as is.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	if current, ok := ctx.Value(contextKey{}).(uuid.UUID); ok && current == tenantID {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// Run executes fn with tenantID bound for the whole call chain
func Run(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	if tenantID == uuid.Nil {
		return ErrTenantNotResolved
	}
	return fn(WithTenant(ctx, tenantID))
}

// FromContext returns the bound tenant or ErrTenantNotResolved
func FromContext(ctx context.Context) (uuid.UUID, error) {
	if ctx == nil {
		return uuid.Nil, ErrTenantNotResolved
	}
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrTenantNotResolved
	}
	return id, nil
}
