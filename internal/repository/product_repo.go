package repository

import (
	"context"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, tenantID uuid.UUID, product *model.Product) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*model.Product, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]model.Product, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{tx}
}

func (r *productRepo) Create(ctx context.Context, tenantID uuid.UUID, product *model.Product) error {
	return scoped(r.db, ctx, tenantID).Create(product).Error
}

func (r *productRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := scoped(r.db, ctx, tenantID).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*model.Product, error) {
	var product model.Product
	if err := scoped(r.db, ctx, tenantID).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindAll(ctx context.Context, tenantID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if err := scoped(r.db, ctx, tenantID).Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
