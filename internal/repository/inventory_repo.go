package repository

import (
	"context"
	"time"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	WithTx(tx *gorm.DB) InventoryRepository

	// LockRow creates the (product, location) row when missing and returns it holding
	// an exclusive lock until the surrounding transaction ends.
	LockRow(ctx context.Context, tenantID, productID, locationID uuid.UUID) (*model.Inventory, error)
	SetQuantity(ctx context.Context, tenantID uuid.UUID, row *model.Inventory, quantity decimal.Decimal) error
	AppendMovement(ctx context.Context, tenantID uuid.UUID, movement *model.StockMovement) error

	FindRow(ctx context.Context, tenantID, productID, locationID uuid.UUID) (*model.Inventory, error)
	FindSaleCandidate(ctx context.Context, tenantID, productID uuid.UUID, preferredLocationID *uuid.UUID) (*model.Inventory, error)

	FindMovements(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]model.StockMovement, error)
	FindMovementsByReference(ctx context.Context, tenantID uuid.UUID, reference string, movementType model.MovementType) ([]model.StockMovement, error)
}

// MovementFilter narrows a movement listing. Zero values are ignored. With a Limit the
// newest movements come first, otherwise the listing is oldest first.
type MovementFilter struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Type       model.MovementType
	From       time.Time
	To         time.Time
	Limit      int
}

type inventoryRepo struct {
	db *gorm.DB
}

func NewInventoryRepo(db *gorm.DB) InventoryRepository {
	return &inventoryRepo{db}
}

func (r *inventoryRepo) WithTx(tx *gorm.DB) InventoryRepository {
	return &inventoryRepo{tx}
}

func (r *inventoryRepo) LockRow(ctx context.Context, tenantID, productID, locationID uuid.UUID) (*model.Inventory, error) {
	db := scoped(r.db, ctx, tenantID)

	seed := model.Inventory{
		TenantID:   tenantID,
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   decimal.Zero,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var row model.Inventory
	err := forUpdate(db).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *inventoryRepo) SetQuantity(ctx context.Context, tenantID uuid.UUID, row *model.Inventory, quantity decimal.Decimal) error {
	return scoped(r.db, ctx, tenantID).Model(row).Update("quantity", quantity).Error
}

func (r *inventoryRepo) AppendMovement(ctx context.Context, tenantID uuid.UUID, movement *model.StockMovement) error {
	return scoped(r.db, ctx, tenantID).Create(movement).Error
}

func (r *inventoryRepo) FindRow(ctx context.Context, tenantID, productID, locationID uuid.UUID) (*model.Inventory, error) {
	var row model.Inventory
	err := scoped(r.db, ctx, tenantID).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindSaleCandidate walks the sale-source preference list and returns the first row found:
// sale sources with stock (largest first), any sale source (freshest first), the preferred
// location, any location with stock (largest first), then any location at all.
func (r *inventoryRepo) FindSaleCandidate(ctx context.Context, tenantID, productID uuid.UUID, preferredLocationID *uuid.UUID) (*model.Inventory, error) {
	db := scoped(r.db, ctx, tenantID)

	saleSources := func() *gorm.DB {
		return db.Model(&model.Inventory{}).
			Select("inventories.*").
			Joins("JOIN stock_locations ON stock_locations.id = inventories.location_id AND stock_locations.tenant_id = inventories.tenant_id").
			Where("inventories.product_id = ? AND stock_locations.is_sale_source = ?", productID, true)
	}
	anyLocation := func() *gorm.DB {
		return db.Model(&model.Inventory{}).Where("product_id = ?", productID)
	}

	steps := []func() *gorm.DB{
		func() *gorm.DB {
			return saleSources().Where("inventories.quantity > 0").Order("inventories.quantity DESC")
		},
		func() *gorm.DB {
			return saleSources().Order("inventories.updated_at DESC")
		},
	}
	if preferredLocationID != nil && *preferredLocationID != uuid.Nil {
		locationID := *preferredLocationID
		steps = append(steps, func() *gorm.DB {
			return anyLocation().Where("location_id = ?", locationID)
		})
	}
	steps = append(steps,
		func() *gorm.DB {
			return anyLocation().Where("quantity > 0").Order("quantity DESC")
		},
		func() *gorm.DB {
			return anyLocation().Order("updated_at DESC")
		},
	)

	for _, step := range steps {
		var rows []model.Inventory
		if err := step().Limit(1).Find(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return &rows[0], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *inventoryRepo) FindMovements(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]model.StockMovement, error) {
	q := scoped(r.db, ctx, tenantID).Model(&model.StockMovement{})
	if filter.ProductID != uuid.Nil {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.LocationID != uuid.Nil {
		q = q.Where("location_id = ?", filter.LocationID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at <= ?", filter.To)
	}
	// a limited listing keeps the most recent movements
	if filter.Limit > 0 {
		q = q.Order("created_at DESC").Limit(filter.Limit)
	} else {
		q = q.Order("created_at ASC")
	}

	var movements []model.StockMovement
	if err := q.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *inventoryRepo) FindMovementsByReference(ctx context.Context, tenantID uuid.UUID, reference string, movementType model.MovementType) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := scoped(r.db, ctx, tenantID).
		Where("reference = ? AND type = ?", reference, movementType).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
