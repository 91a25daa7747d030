package repository

import (
	"context"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LocationRepository interface {
	WithTx(tx *gorm.DB) LocationRepository
	Create(ctx context.Context, tenantID uuid.UUID, location *model.StockLocation) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.StockLocation, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]model.StockLocation, error)
}

type locationRepo struct {
	db *gorm.DB
}

func NewLocationRepo(db *gorm.DB) LocationRepository {
	return &locationRepo{db}
}

func (r *locationRepo) WithTx(tx *gorm.DB) LocationRepository {
	return &locationRepo{tx}
}

func (r *locationRepo) Create(ctx context.Context, tenantID uuid.UUID, location *model.StockLocation) error {
	return scoped(r.db, ctx, tenantID).Create(location).Error
}

func (r *locationRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.StockLocation, error) {
	var location model.StockLocation
	if err := scoped(r.db, ctx, tenantID).First(&location, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *locationRepo) FindAll(ctx context.Context, tenantID uuid.UUID) ([]model.StockLocation, error) {
	var locations []model.StockLocation
	if err := scoped(r.db, ctx, tenantID).Order("name ASC").Find(&locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}
