package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("go-retail-ledger/service")

type LedgerService interface {
	Credit(ctx context.Context, req *MovementRequest) (*MovementResult, error)
	Debit(ctx context.Context, req *MovementRequest) (*MovementResult, error)
	Adjust(ctx context.Context, req *AdjustRequest) (*MovementResult, error)
	Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)
	ReverseBySaleReference(ctx context.Context, saleID uuid.UUID) ([]MovementResult, error)

	SelectInventoryForSale(ctx context.Context, productID uuid.UUID, preferredLocationID *uuid.UUID) (*model.Inventory, error)
	DebitForSale(ctx context.Context, saleID, productID uuid.UUID, quantity decimal.Decimal, preferredLocationID *uuid.UUID) (*MovementResult, error)
	// DebitLines debits every line inside tx, locking keys in the given order
	DebitLines(ctx context.Context, tx *gorm.DB, reference string, lines []DebitLine) ([]MovementResult, error)

	Balance(ctx context.Context, productID, locationID uuid.UUID) (decimal.Decimal, error)
	Movements(ctx context.Context, filter repository.MovementFilter) ([]model.StockMovement, error)
	MovementSummary(ctx context.Context, days int) ([]MovementSummaryData, error)
}

type MovementRequest struct {
	ProductID  uuid.UUID       `json:"productId" validate:"uuid_required"`
	LocationID uuid.UUID       `json:"locationId" validate:"uuid_required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
	Reference  string          `json:"reference" validate:"max=64"`
}

type AdjustRequest struct {
	ProductID  uuid.UUID       `json:"productId" validate:"uuid_required"`
	LocationID uuid.UUID       `json:"locationId" validate:"uuid_required"`
	Delta      decimal.Decimal `json:"delta" validate:"ne=0"`
	Reference  string          `json:"reference" validate:"max=64"`
}

type TransferRequest struct {
	ProductID      uuid.UUID       `json:"productId" validate:"uuid_required"`
	FromLocationID uuid.UUID       `json:"fromLocationId" validate:"uuid_required"`
	ToLocationID   uuid.UUID       `json:"toLocationId" validate:"uuid_required"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gt=0"`
	Reference      string          `json:"reference" validate:"max=64"`
}

// DebitLine is one product quantity to take out of stock. A nil LocationID
// falls back to sale-source selection.
type DebitLine struct {
	ProductID  uuid.UUID       `json:"productId" validate:"uuid_required"`
	LocationID *uuid.UUID      `json:"locationId"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type MovementResult struct {
	Movement     *model.StockMovement `json:"movement"`
	Before       decimal.Decimal      `json:"before"`
	After        decimal.Decimal      `json:"after"`
	WentNegative bool                 `json:"wentNegative"`
}

type TransferResult struct {
	Out MovementResult `json:"out"`
	In  MovementResult `json:"in"`
}

// MovementSummaryData is one day of inbound/outbound totals
type MovementSummaryData struct {
	Date     string          `json:"date"`
	Inbound  decimal.Decimal `json:"inbound"`
	Outbound decimal.Decimal `json:"outbound"`
}

type ledgerService struct {
	db           *gorm.DB
	inventory    repository.InventoryRepository
	productRepo  repository.ProductRepository
	locationRepo repository.LocationRepository
}

func NewLedgerService(db *gorm.DB, inventory repository.InventoryRepository, productRepo repository.ProductRepository, locationRepo repository.LocationRepository) LedgerService {
	return &ledgerService{
		db:           db,
		inventory:    inventory,
		productRepo:  productRepo,
		locationRepo: locationRepo,
	}
}

// posting is one signed change to one (product, location) key
type posting struct {
	productID  uuid.UUID
	locationID uuid.UUID
	delta      decimal.Decimal
	kind       model.MovementType
	reference  *string
}

func (s *ledgerService) Credit(ctx context.Context, req *MovementRequest) (*MovementResult, error) {
	return s.single(ctx, req, model.MovementIn, req.Quantity)
}

func (s *ledgerService) Debit(ctx context.Context, req *MovementRequest) (*MovementResult, error) {
	return s.single(ctx, req, model.MovementOut, req.Quantity.Neg())
}

func (s *ledgerService) Adjust(ctx context.Context, req *AdjustRequest) (*MovementResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkKey(ctx, nil, actor.TenantID, req.ProductID, req.LocationID); err != nil {
		return nil, err
	}

	var result *MovementResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.post(ctx, s.inventory.WithTx(tx), actor, posting{
			productID:  req.ProductID,
			locationID: req.LocationID,
			delta:      req.Delta,
			kind:       model.MovementAdjust,
			reference:  optional(req.Reference),
		})
		return err
	})
	if err != nil {
		return nil, persistenceError("adjust inventory", err)
	}
	return result, nil
}

func (s *ledgerService) single(ctx context.Context, req *MovementRequest, kind model.MovementType, delta decimal.Decimal) (*MovementResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkKey(ctx, nil, actor.TenantID, req.ProductID, req.LocationID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ledger."+string(kind))
	defer span.End()

	var result *MovementResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.post(ctx, s.inventory.WithTx(tx), actor, posting{
			productID:  req.ProductID,
			locationID: req.LocationID,
			delta:      delta,
			kind:       kind,
			reference:  optional(req.Reference),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, persistenceError("record movement", err)
	}
	span.SetAttributes(attribute.Bool("ledger.went_negative", result.WentNegative))
	return result, nil
}

// Transfer debits the source and credits the destination in one transaction,
// locking source first.
func (s *ledgerService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	if req.FromLocationID == req.ToLocationID {
		return nil, invalid("SAME_LOCATION", "transfer source and destination must differ")
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkKey(ctx, nil, actor.TenantID, req.ProductID, req.FromLocationID); err != nil {
		return nil, err
	}
	if _, err := s.findLocation(ctx, s.locationRepo, actor.TenantID, req.ToLocationID); err != nil {
		return nil, err
	}

	ref := optional(req.Reference)
	var result TransferResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.inventory.WithTx(tx)
		out, err := s.post(ctx, repo, actor, posting{req.ProductID, req.FromLocationID, req.Quantity.Neg(), model.MovementOut, ref})
		if err != nil {
			return err
		}
		in, err := s.post(ctx, repo, actor, posting{req.ProductID, req.ToLocationID, req.Quantity, model.MovementIn, ref})
		if err != nil {
			return err
		}
		result = TransferResult{Out: *out, In: *in}
		return nil
	})
	if err != nil {
		return nil, persistenceError("transfer inventory", err)
	}
	return &result, nil
}

// ReverseBySaleReference re-credits every OUT movement tied to the sale as CANCEL
// movements. Running it again for the same sale changes nothing.
func (s *ledgerService) ReverseBySaleReference(ctx context.Context, saleID uuid.UUID) ([]MovementResult, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ref := saleID.String()

	ctx, span := tracer.Start(ctx, "ledger.reverse")
	defer span.End()

	var results []MovementResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.inventory.WithTx(tx)
		reversed, err := repo.FindMovementsByReference(ctx, actor.TenantID, ref, model.MovementCancel)
		if err != nil {
			return err
		}
		if len(reversed) > 0 {
			return nil
		}
		outs, err := repo.FindMovementsByReference(ctx, actor.TenantID, ref, model.MovementOut)
		if err != nil {
			return err
		}
		for _, out := range outs {
			res, err := s.post(ctx, repo, actor, posting{out.ProductID, out.LocationID, out.Quantity.Abs(), model.MovementCancel, &ref})
			if err != nil {
				return err
			}
			results = append(results, *res)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, persistenceError("reverse sale movements", err)
	}
	return results, nil
}

func (s *ledgerService) SelectInventoryForSale(ctx context.Context, productID uuid.UUID, preferredLocationID *uuid.UUID) (*model.Inventory, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row, err := s.inventory.FindSaleCandidate(ctx, actor.TenantID, productID, preferredLocationID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNoInventoryForProduct.WithDetails(map[string]interface{}{"productId": productID})
		}
		return nil, err
	}
	return row, nil
}

// DebitForSale picks the location for one sale line and debits it with the sale id as reference
func (s *ledgerService) DebitForSale(ctx context.Context, saleID, productID uuid.UUID, quantity decimal.Decimal, preferredLocationID *uuid.UUID) (*MovementResult, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row, err := s.SelectInventoryForSale(ctx, productID, preferredLocationID)
	if err != nil {
		return nil, err
	}

	ref := saleID.String()
	var result *MovementResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.post(ctx, s.inventory.WithTx(tx), actor, posting{productID, row.LocationID, quantity.Neg(), model.MovementOut, &ref})
		return err
	})
	if err != nil {
		return nil, persistenceError("debit sale line", err)
	}
	return result, nil
}

func (s *ledgerService) DebitLines(ctx context.Context, tx *gorm.DB, reference string, lines []DebitLine) ([]MovementResult, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	repo := s.inventory.WithTx(tx)
	ref := optional(reference)

	results := make([]MovementResult, 0, len(lines))
	for _, line := range lines {
		locationID := uuid.Nil
		if line.LocationID != nil {
			locationID = *line.LocationID
		} else {
			row, err := repo.FindSaleCandidate(ctx, actor.TenantID, line.ProductID, nil)
			if err != nil {
				if database.IsNotFound(err) {
					return nil, ErrNoInventoryForProduct.WithDetails(map[string]interface{}{"productId": line.ProductID})
				}
				return nil, err
			}
			locationID = row.LocationID
		}
		if err := s.checkKey(ctx, tx, actor.TenantID, line.ProductID, locationID); err != nil {
			return nil, err
		}

		res, err := s.post(ctx, repo, actor, posting{line.ProductID, locationID, line.Quantity.Neg(), model.MovementOut, ref})
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// post is the single-key locked read-modify-write plus the movement append
func (s *ledgerService) post(ctx context.Context, repo repository.InventoryRepository, actor Actor, p posting) (*MovementResult, error) {
	row, err := repo.LockRow(ctx, actor.TenantID, p.productID, p.locationID)
	if err != nil {
		return nil, err
	}
	before := row.Quantity
	after := before.Add(p.delta)
	if err := repo.SetQuantity(ctx, actor.TenantID, row, after); err != nil {
		return nil, err
	}

	movement := &model.StockMovement{
		TenantID:    actor.TenantID,
		ProductID:   p.productID,
		LocationID:  p.locationID,
		Type:        p.kind,
		Quantity:    p.delta,
		Reference:   p.reference,
		CreatedByID: actor.UserID,
	}
	if err := repo.AppendMovement(ctx, actor.TenantID, movement); err != nil {
		return nil, err
	}

	return &MovementResult{
		Movement:     movement,
		Before:       before,
		After:        after,
		WentNegative: after.IsNegative(),
	}, nil
}

func (s *ledgerService) Balance(ctx context.Context, productID, locationID uuid.UUID) (decimal.Decimal, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	row, err := s.inventory.FindRow(ctx, actor.TenantID, productID, locationID)
	if err != nil {
		if database.IsNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return row.Quantity, nil
}

func (s *ledgerService) Movements(ctx context.Context, filter repository.MovementFilter) ([]model.StockMovement, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.inventory.FindMovements(ctx, actor.TenantID, filter)
}

// MovementSummary aggregates IN and OUT quantities per day over the last days
func (s *ledgerService) MovementSummary(ctx context.Context, days int) ([]MovementSummaryData, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)

	movements, err := s.inventory.FindMovements(ctx, actor.TenantID, repository.MovementFilter{From: startDate, To: endDate})
	if err != nil {
		return nil, err
	}

	byDay := map[string]*MovementSummaryData{}
	for _, m := range movements {
		day := m.CreatedAt.UTC().Format("2006-01-02")
		data, ok := byDay[day]
		if !ok {
			data = &MovementSummaryData{Date: day, Inbound: decimal.Zero, Outbound: decimal.Zero}
			byDay[day] = data
		}
		switch m.Type {
		case model.MovementIn:
			data.Inbound = data.Inbound.Add(m.Quantity)
		case model.MovementOut:
			data.Outbound = data.Outbound.Add(m.Quantity.Abs())
		}
	}

	results := make([]MovementSummaryData, 0, len(byDay))
	for _, data := range byDay {
		results = append(results, *data)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date < results[j].Date })
	return results, nil
}

// checkKey confirms product and location belong to the tenant. A non-nil tx reads
// through the open transaction.
func (s *ledgerService) checkKey(ctx context.Context, tx *gorm.DB, tenantID, productID, locationID uuid.UUID) error {
	products, locations := s.productRepo, s.locationRepo
	if tx != nil {
		products, locations = products.WithTx(tx), locations.WithTx(tx)
	}
	if _, err := products.FindByID(ctx, tenantID, productID); err != nil {
		if database.IsNotFound(err) {
			return ErrProductNotFound.WithDetails(map[string]interface{}{"productId": productID})
		}
		return err
	}
	_, err := s.findLocation(ctx, locations, tenantID, locationID)
	return err
}

func (s *ledgerService) findLocation(ctx context.Context, locations repository.LocationRepository, tenantID, locationID uuid.UUID) (*model.StockLocation, error) {
	location, err := locations.FindByID(ctx, tenantID, locationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLocationNotFound.WithDetails(map[string]interface{}{"locationId": locationID})
		}
		return nil, err
	}
	return location, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
