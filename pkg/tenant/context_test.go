package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Unbound(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrTenantNotResolved)

	//nolint:staticcheck // nil context is a supported input
	_, err = FromContext(nil)
	assert.ErrorIs(t, err, ErrTenantNotResolved)
}

func TestWithTenant_Binds(t *testing.T) {
	id := uuid.New()
	ctx := WithTenant(context.Background(), id)

	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	// rebinding the same tenant keeps the context
	assert.Equal(t, ctx, WithTenant(ctx, id))
}

func TestWithTenant_InnerBindingShadowsOuter(t *testing.T) {
	outer, inner := uuid.New(), uuid.New()
	outerCtx := WithTenant(context.Background(), outer)
	innerCtx := WithTenant(outerCtx, inner)

	got, err := FromContext(innerCtx)
	require.NoError(t, err)
	assert.Equal(t, inner, got)

	got, err = FromContext(outerCtx)
	require.NoError(t, err)
	assert.Equal(t, outer, got)
}

func TestRun(t *testing.T) {
	id := uuid.New()

	var seen uuid.UUID
	err := Run(context.Background(), id, func(ctx context.Context) error {
		var err error
		seen, err = FromContext(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, id, seen)

	called := false
	err = Run(context.Background(), uuid.Nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrTenantNotResolved)
	assert.False(t, called)
}
