package service

import (
	"context"
	"fmt"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/logger"
	"go-retail-ledger/pkg/validator"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type OfflineSaleRequest struct {
	ExternalSaleID string      `json:"externalSaleId" validate:"required,max=128"`
	Items          []DebitLine `json:"items" validate:"required,min=1,dive"`
}

type OfflineSaleResult struct {
	Duplicate bool                      `json:"duplicate"`
	Status    model.ProcessedSaleStatus `json:"status"`
	Movements []MovementResult          `json:"movements,omitempty"`
}

type SyncService interface {
	ApplyOfflineSale(ctx context.Context, req *OfflineSaleRequest) (*OfflineSaleResult, error)
}

type syncService struct {
	db       *gorm.DB
	saleRepo repository.SaleRepository
	ledger   LedgerService
	retry    database.TxOptions
	log      logger.Logger
}

func NewSyncService(db *gorm.DB, saleRepo repository.SaleRepository, ledger LedgerService, retry database.TxOptions, log logger.Logger) SyncService {
	return &syncService{
		db:       db,
		saleRepo: saleRepo,
		ledger:   ledger,
		retry:    retry,
		log:      log,
	}
}

// ApplyOfflineSale debits a sale recorded while the terminal was offline. The external
// id is claimed first, so a replayed upload is reported as a duplicate and never debits twice.
func (s *syncService) ApplyOfflineSale(ctx context.Context, req *OfflineSaleRequest) (*OfflineSaleResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "sync.apply_offline_sale")
	defer span.End()
	span.SetAttributes(attribute.String("sale.external_id", req.ExternalSaleID))

	marker, claimed, err := s.saleRepo.ClaimProcessedSale(ctx, actor.TenantID, req.ExternalSaleID)
	if err != nil {
		return nil, fmt.Errorf("claim offline sale: %w", err)
	}
	if !claimed {
		return &OfflineSaleResult{Duplicate: true, Status: marker.Status}, nil
	}

	var movements []MovementResult
	err = database.WithRetry(ctx, s.db, s.retry, func(tx *gorm.DB) error {
		var err error
		movements, err = s.ledger.DebitLines(ctx, tx, req.ExternalSaleID, req.Items)
		return err
	})
	if err != nil {
		span.RecordError(err)
		if markErr := s.saleRepo.SetProcessedSaleStatus(ctx, actor.TenantID, marker, model.ProcessedError, err.Error()); markErr != nil {
			s.log.Error("failed to mark offline sale", "external_id", req.ExternalSaleID, "error", markErr)
		}
		return nil, persistenceError("apply offline sale", err)
	}

	if err := s.saleRepo.SetProcessedSaleStatus(ctx, actor.TenantID, marker, model.ProcessedDone, ""); err != nil {
		return nil, fmt.Errorf("mark offline sale done: %w", err)
	}

	for _, m := range movements {
		if m.WentNegative {
			s.log.Warn("offline sale drove inventory negative",
				"external_id", req.ExternalSaleID,
				"product_id", m.Movement.ProductID,
				"location_id", m.Movement.LocationID,
				"after", m.After.String())
		}
	}

	return &OfflineSaleResult{Status: model.ProcessedDone, Movements: movements}, nil
}
