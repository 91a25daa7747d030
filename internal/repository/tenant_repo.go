package repository

import (
	"context"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TenantRepository interface {
	WithTx(tx *gorm.DB) TenantRepository
	Create(ctx context.Context, t *model.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	// FindByIDForUpdate locks the tenant row, serializing session opens per tenant
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type tenantRepo struct {
	db *gorm.DB
}

func NewTenantRepo(db *gorm.DB) TenantRepository {
	return &tenantRepo{db}
}

func (r *tenantRepo) WithTx(tx *gorm.DB) TenantRepository {
	return &tenantRepo{tx}
}

func (r *tenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *tenantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tenantRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	if err := forUpdate(r.db.WithContext(ctx)).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tenantRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).Model(&model.Tenant{}).Where("id = ?", id).Update("is_active", active).Error
}
