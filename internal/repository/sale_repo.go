package repository

import (
	"context"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleRepository interface {
	WithTx(tx *gorm.DB) SaleRepository

	// NextNumber increments the tenant counter under a row lock. Call it inside a transaction.
	NextNumber(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Create(ctx context.Context, tenantID uuid.UUID, sale *model.Sale) error
	UpdateFiscal(ctx context.Context, tenantID uuid.UUID, sale *model.Sale) error
	MarkCanceled(ctx context.Context, tenantID uuid.UUID, sale *model.Sale) error

	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Sale, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*model.Sale, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*model.Sale, error)
	// FindFinalizedBySession returns the session's finalized sales with payments loaded
	FindFinalizedBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]model.Sale, error)

	// ClaimProcessedSale inserts a PENDING marker. It returns the existing marker and
	// claimed=false when the external id was already seen.
	ClaimProcessedSale(ctx context.Context, tenantID uuid.UUID, externalID string) (marker *model.ProcessedSale, claimed bool, err error)
	SetProcessedSaleStatus(ctx context.Context, tenantID uuid.UUID, marker *model.ProcessedSale, status model.ProcessedSaleStatus, errMsg string) error
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) WithTx(tx *gorm.DB) SaleRepository {
	return &saleRepo{tx}
}

func (r *saleRepo) NextNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	db := scoped(r.db, ctx, tenantID)

	seed := model.SaleCounter{TenantID: tenantID, NextNumber: 1}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	var counter model.SaleCounter
	if err := forUpdate(db).First(&counter).Error; err != nil {
		return 0, err
	}
	number := counter.NextNumber
	if err := db.Model(&counter).Update("next_number", number+1).Error; err != nil {
		return 0, err
	}
	return number, nil
}

func (r *saleRepo) Create(ctx context.Context, tenantID uuid.UUID, sale *model.Sale) error {
	return scoped(r.db, ctx, tenantID).Create(sale).Error
}

func (r *saleRepo) UpdateFiscal(ctx context.Context, tenantID uuid.UUID, sale *model.Sale) error {
	return scoped(r.db, ctx, tenantID).Model(sale).Updates(map[string]interface{}{
		"fiscal_status": sale.FiscalStatus,
		"fiscal_key":    sale.FiscalKey,
		"fiscal_error":  sale.FiscalError,
	}).Error
}

func (r *saleRepo) MarkCanceled(ctx context.Context, tenantID uuid.UUID, sale *model.Sale) error {
	return scoped(r.db, ctx, tenantID).Model(sale).Updates(map[string]interface{}{
		"status":         sale.Status,
		"canceled_at":    sale.CanceledAt,
		"cancel_reason":  sale.CancelReason,
		"canceled_by_id": sale.CanceledByID,
		"approved_by_id": sale.ApprovedByID,
	}).Error
}

func (r *saleRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := scoped(r.db, ctx, tenantID).
		Preload("Items").
		Preload("Payments").
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := forUpdate(scoped(r.db, ctx, tenantID)).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepo) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*model.Sale, error) {
	var sale model.Sale
	err := scoped(r.db, ctx, tenantID).
		Preload("Items").
		Preload("Payments").
		Where("idempotency_key = ?", key).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepo) FindFinalizedBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]model.Sale, error) {
	var sales []model.Sale
	err := scoped(r.db, ctx, tenantID).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("cash_session_id = ? AND status = ?", sessionID, model.SaleFinalized).
		Order("number ASC").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *saleRepo) ClaimProcessedSale(ctx context.Context, tenantID uuid.UUID, externalID string) (*model.ProcessedSale, bool, error) {
	db := scoped(r.db, ctx, tenantID)

	marker := model.ProcessedSale{
		TenantID:       tenantID,
		ExternalSaleID: externalID,
		Status:         model.ProcessedPending,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &marker, true, nil
	}

	var existing model.ProcessedSale
	if err := db.Where("external_sale_id = ?", externalID).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *saleRepo) SetProcessedSaleStatus(ctx context.Context, tenantID uuid.UUID, marker *model.ProcessedSale, status model.ProcessedSaleStatus, errMsg string) error {
	marker.Status = status
	marker.Error = errMsg
	return scoped(r.db, ctx, tenantID).Model(marker).Updates(map[string]interface{}{
		"status": status,
		"error":  errMsg,
	}).Error
}
