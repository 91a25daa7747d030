package service

import (
	"context"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/pkg/apperror"
	"go-retail-ledger/pkg/tenant"

	"github.com/google/uuid"
)

// Actor is the identity of the caller as supplied by the identity collaborator
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     model.Role
	Name     string
}

type actorKey struct{}

var ErrUnauthenticated = apperror.Forbidden("UNAUTHENTICATED", "no authenticated user on this operation")

// WithActor attaches the caller and binds its tenant for the rest of the call chain
func WithActor(ctx context.Context, actor Actor) context.Context {
	ctx = tenant.WithTenant(ctx, actor.TenantID)
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller. The tenant comes from the scope carrier so a
// missing binding surfaces as tenant-not-resolved.
func ActorFromContext(ctx context.Context) (Actor, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return Actor{}, err
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.UserID == uuid.Nil {
		return Actor{}, ErrUnauthenticated
	}
	if actor.TenantID != tenantID {
		return Actor{}, tenant.ErrTenantMismatch
	}
	return actor, nil
}
