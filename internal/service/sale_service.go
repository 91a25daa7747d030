package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-retail-ledger/internal/fiscal"
	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/internal/ws"
	"go-retail-ledger/pkg/apperror"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/logger"
	"go-retail-ledger/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// PrintQueue accepts receipt jobs for the tenant's print agents
type PrintQueue interface {
	Enqueue(ctx context.Context, job ws.PrintJob) (string, error)
}

type SaleService interface {
	CreateSale(ctx context.Context, req *CreateSaleRequest) (*CreateSaleResult, error)
	CancelSale(ctx context.Context, saleID uuid.UUID, req *CancelSaleRequest) (*CancelSaleResult, error)
	GetSale(ctx context.Context, saleID uuid.UUID) (*model.Sale, error)
}

type DiscountRequest struct {
	Mode model.DiscountMode `json:"mode" validate:"omitempty,oneof=NONE VALUE PERCENT"`
	// Value is cents for VALUE and a percentage for PERCENT
	Value decimal.Decimal `json:"value"`
}

type SaleItemRequest struct {
	ProductID      uuid.UUID        `json:"productId" validate:"uuid_required"`
	Quantity       decimal.Decimal  `json:"quantity" validate:"gt=0"`
	UnitPriceCents int64            `json:"unitPriceCents" validate:"gte=0"`
	Discount       *DiscountRequest `json:"discount" validate:"omitempty"`
}

type PaymentRequest struct {
	Method      model.PaymentMethod `json:"method" validate:"required"`
	AmountCents int64               `json:"amountCents"`
	ProviderRef string              `json:"providerRef" validate:"max=128"`
}

type CreateSaleRequest struct {
	CashSessionID        uuid.UUID         `json:"cashSessionId" validate:"uuid_required"`
	LocationID           uuid.UUID         `json:"locationId" validate:"uuid_required"`
	Items                []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Payments             []PaymentRequest  `json:"payments" validate:"required,min=1,dive"`
	Discount             *DiscountRequest  `json:"discount" validate:"omitempty"`
	FiscalMode           model.FiscalMode  `json:"fiscalMode" validate:"omitempty,oneof=none nfce"`
	IdempotencyKey       string            `json:"idempotencyKey" validate:"max=128"`
	SupervisorCredential string            `json:"supervisorCredential"`
}

// LineIssue reports a post-commit problem with one sale line
type LineIssue struct {
	Line      int             `json:"line"`
	ProductID uuid.UUID       `json:"productId"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Balance   decimal.Decimal `json:"balance,omitempty"`
}

type CreateSaleResult struct {
	Sale        *model.Sale `json:"sale"`
	Duplicate   bool        `json:"duplicate"`
	ApprovedBy  *Approval   `json:"approvedBy,omitempty"`
	Warnings    []LineIssue `json:"warnings,omitempty"`
	StockErrors []LineIssue `json:"stockErrors,omitempty"`
	PrintJobID  string      `json:"printJobId,omitempty"`
}

type CancelSaleRequest struct {
	Reason               string `json:"reason" validate:"required,max=255"`
	SupervisorCredential string `json:"supervisorCredential"`
}

type CancelSaleResult struct {
	Sale            *model.Sale `json:"sale"`
	AlreadyCanceled bool        `json:"alreadyCanceled"`
	ApprovedBy      *Approval   `json:"approvedBy,omitempty"`
	Warnings        []string    `json:"warnings,omitempty"`
}

type saleService struct {
	db           *gorm.DB
	saleRepo     repository.SaleRepository
	sessionRepo  repository.CashSessionRepository
	productRepo  repository.ProductRepository
	locationRepo repository.LocationRepository
	auditRepo    repository.AuditRepository
	approval     ApprovalService
	ledger       LedgerService
	fiscal       fiscal.Adapter
	printer      PrintQueue
	log          logger.Logger
}

func NewSaleService(
	db *gorm.DB,
	saleRepo repository.SaleRepository,
	sessionRepo repository.CashSessionRepository,
	productRepo repository.ProductRepository,
	locationRepo repository.LocationRepository,
	auditRepo repository.AuditRepository,
	approval ApprovalService,
	ledger LedgerService,
	fiscalAdapter fiscal.Adapter,
	printer PrintQueue,
	log logger.Logger,
) SaleService {
	return &saleService{
		db:           db,
		saleRepo:     saleRepo,
		sessionRepo:  sessionRepo,
		productRepo:  productRepo,
		locationRepo: locationRepo,
		auditRepo:    auditRepo,
		approval:     approval,
		ledger:       ledger,
		fiscal:       fiscalAdapter,
		printer:      printer,
		log:          log,
	}
}

func (s *saleService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*CreateSaleResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "sale.create")
	defer span.End()

	// 1. Location and products belong to the tenant
	if _, err := s.locationRepo.FindByID(ctx, actor.TenantID, req.LocationID); err != nil {
		if database.IsNotFound(err) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("load location: %w", err)
	}
	for _, item := range req.Items {
		if _, err := s.productRepo.FindByID(ctx, actor.TenantID, item.ProductID); err != nil {
			if database.IsNotFound(err) {
				return nil, ErrProductNotFound.WithDetails(map[string]interface{}{"productId": item.ProductID})
			}
			return nil, fmt.Errorf("load product: %w", err)
		}
	}

	// 2-4. Pricing and payments
	sale, discounted, err := priceSale(req)
	if err != nil {
		return nil, err
	}

	// 5. Operators need a supervisor to discount
	var approval *Approval
	if discounted && !actor.Role.IsPrivileged() {
		approval, err = s.approval.Approve(ctx, actor.TenantID, req.SupervisorCredential, ActionSaleDiscount)
		if err != nil {
			return nil, err
		}
		sale.ApprovedByID = &approval.UserID
	}

	// 6. Replayed key
	key := optional(req.IdempotencyKey)
	if key != nil {
		existing, err := s.findByIdempotencyKey(ctx, actor.TenantID, *key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &CreateSaleResult{Sale: existing, Duplicate: true}, nil
		}
	}

	sale.TenantID = actor.TenantID
	sale.CashSessionID = req.CashSessionID
	sale.LocationID = req.LocationID
	sale.CreatedByID = actor.UserID
	sale.IdempotencyKey = key

	// 7. Atomic persistence
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sales := s.saleRepo.WithTx(tx)

		// locked so a concurrent close cannot snapshot the session without this sale
		session, err := s.sessionRepo.WithTx(tx).FindByIDForUpdate(ctx, actor.TenantID, req.CashSessionID)
		if err != nil {
			if database.IsNotFound(err) {
				return ErrCashSessionNotFound
			}
			return err
		}
		if !session.IsOpen() {
			return ErrCashSessionClosed
		}
		if session.OpenedByID != actor.UserID {
			return ErrCashSessionNotOwned
		}

		number, err := sales.NextNumber(ctx, actor.TenantID)
		if err != nil {
			return err
		}
		sale.Number = number
		if err := sales.Create(ctx, actor.TenantID, sale); err != nil {
			return err
		}

		if sale.FiscalMode == model.FiscalNone {
			return nil
		}
		fiscalKey, emitErr := s.fiscal.Emit(ctx, sale)
		if emitErr != nil {
			s.log.Warn("fiscal emission failed", "sale_id", sale.ID, "error", emitErr)
			sale.FiscalStatus = model.FiscalFailed
			sale.FiscalError = emitErr.Error()
		} else if fiscalKey == "" {
			// the adapter did not emit anything
			sale.FiscalStatus = model.FiscalSkipped
		} else {
			sale.FiscalStatus = model.FiscalEmitted
			sale.FiscalKey = optional(fiscalKey)
		}
		return sales.UpdateFiscal(ctx, actor.TenantID, sale)
	})
	if err != nil {
		if key != nil && database.IsUniqueViolation(err) {
			// a concurrent request with the same key committed first
			existing, findErr := s.saleRepo.FindByIdempotencyKey(ctx, actor.TenantID, *key)
			if findErr == nil {
				return &CreateSaleResult{Sale: existing, Duplicate: true}, nil
			}
		}
		span.RecordError(err)
		return nil, persistenceError("create sale", err)
	}
	span.SetAttributes(attribute.Int64("sale.number", sale.Number), attribute.Int64("sale.total_cents", sale.TotalCents))

	result := &CreateSaleResult{Sale: sale, ApprovedBy: approval}

	// 8. Inventory, outside the sale transaction
	for i, item := range sale.Items {
		moved, err := s.ledger.DebitForSale(ctx, sale.ID, item.ProductID, item.Quantity, &sale.LocationID)
		if err != nil {
			code := "STOCK_DEBIT_FAILED"
			if appErr, ok := apperror.As(err); ok {
				code = appErr.Code
			}
			s.log.Error("inventory debit failed", "sale_id", sale.ID, "product_id", item.ProductID, "error", err)
			result.StockErrors = append(result.StockErrors, LineIssue{
				Line:      i,
				ProductID: item.ProductID,
				Code:      code,
				Message:   err.Error(),
			})
			continue
		}
		if moved.WentNegative {
			result.Warnings = append(result.Warnings, LineIssue{
				Line:      i,
				ProductID: item.ProductID,
				Code:      "NEGATIVE_STOCK",
				Message:   fmt.Sprintf("stock at location %s went negative", moved.Movement.LocationID),
				Balance:   moved.After,
			})
		}
	}

	// 9. Dedup marker and receipt
	if key != nil {
		s.recordAudit(ctx, actor, key, model.ActionSaleCreate, sale.ID, fmt.Sprintf("Sale #%d", sale.Number))
	}
	result.PrintJobID = s.enqueueReceipt(ctx, sale)

	return result, nil
}

// priceSale resolves line and sale discounts, validates payments and builds the
// unsaved sale. discounted reports whether any discount applies.
func priceSale(req *CreateSaleRequest) (sale *model.Sale, discounted bool, err error) {
	sale = &model.Sale{
		Status:       model.SaleFinalized,
		FiscalMode:   req.FiscalMode,
		FiscalStatus: model.FiscalSkipped,
	}
	if sale.FiscalMode == "" {
		sale.FiscalMode = model.FiscalNone
	}

	for i, line := range req.Items {
		base := decimal.NewFromInt(line.UnitPriceCents).Mul(line.Quantity).Round(0).IntPart()
		if base <= 0 {
			return nil, false, invalid("INVALID_LINE_TOTAL", "line %d total must be greater than zero", i)
		}
		mode, amount, err := resolveDiscount(base, line.Discount)
		if err != nil {
			return nil, false, err
		}
		if amount > 0 {
			discounted = true
		}
		sale.Items = append(sale.Items, model.SaleItem{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			BaseCents:      base,
			DiscountMode:   mode,
			DiscountCents:  amount,
			TotalCents:     base - amount,
		})
		sale.SubtotalCents += base - amount
	}

	mode, amount, err := resolveDiscount(sale.SubtotalCents, req.Discount)
	if err != nil {
		return nil, false, err
	}
	if amount > 0 {
		discounted = true
	}
	sale.DiscountMode = mode
	sale.DiscountCents = amount
	sale.TotalCents = sale.SubtotalCents - amount
	if sale.TotalCents <= 0 {
		return nil, false, invalid("INVALID_TOTAL", "sale total must be greater than zero")
	}

	outstanding := sale.TotalCents
	for i, p := range req.Payments {
		if !p.Method.IsValid() {
			return nil, false, invalid("INVALID_PAYMENT", "payment %d has unknown method %q", i, p.Method)
		}
		if p.AmountCents <= 0 {
			return nil, false, invalid("INVALID_PAYMENT", "payment %d amount must be greater than zero", i)
		}
		if p.Method != model.PaymentCash && p.AmountCents > max(outstanding, 0) {
			return nil, false, invalid("NON_CASH_OVERPAYMENT", "payment %d (%s) exceeds the outstanding balance of %d", i, p.Method, max(outstanding, 0))
		}
		outstanding -= p.AmountCents
		sale.PaidCents += p.AmountCents
		sale.Payments = append(sale.Payments, model.Payment{
			Method:      p.Method,
			AmountCents: p.AmountCents,
			ProviderRef: optional(p.ProviderRef),
		})
	}
	if sale.PaidCents < sale.TotalCents {
		return nil, false, invalid("INSUFFICIENT_PAYMENT", "paid %d is less than total %d", sale.PaidCents, sale.TotalCents)
	}
	sale.ChangeCents = max(sale.PaidCents-sale.TotalCents, 0)

	return sale, discounted, nil
}

// resolveDiscount returns the discount in cents against base. The result is always
// strictly between zero and base, or zero when no discount was requested.
func resolveDiscount(base int64, d *DiscountRequest) (model.DiscountMode, int64, error) {
	if d == nil || d.Mode == "" || d.Mode == model.DiscountNone {
		return model.DiscountNone, 0, nil
	}

	var amount int64
	switch d.Mode {
	case model.DiscountValue:
		amount = d.Value.Round(0).IntPart()
	case model.DiscountPercent:
		if !d.Value.IsPositive() || d.Value.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			return "", 0, invalid("INVALID_DISCOUNT", "discount percent must be greater than 0 and less than 100")
		}
		amount = decimal.NewFromInt(base).Mul(d.Value).Div(decimal.NewFromInt(100)).Round(0).IntPart()
	default:
		return "", 0, invalid("INVALID_DISCOUNT", "unknown discount mode %q", d.Mode)
	}

	if amount <= 0 || amount >= base {
		return "", 0, apperror.Validation("INVALID_DISCOUNT", "discount must be greater than 0 and less than the amount it applies to").
			WithDetails(map[string]interface{}{"baseCents": base, "discountCents": amount})
	}
	return d.Mode, amount, nil
}

func (s *saleService) findByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*model.Sale, error) {
	marker, err := s.auditRepo.FindByKey(ctx, tenantID, key, model.ActionSaleCreate)
	if err != nil && !database.IsNotFound(err) {
		return nil, fmt.Errorf("load idempotency marker: %w", err)
	}
	if marker != nil && marker.EntityID != nil {
		sale, err := s.saleRepo.FindByID(ctx, tenantID, *marker.EntityID)
		if err == nil {
			return sale, nil
		}
		if !database.IsNotFound(err) {
			return nil, fmt.Errorf("load sale: %w", err)
		}
	}

	sale, err := s.saleRepo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load sale by key: %w", err)
	}
	return sale, nil
}

func (s *saleService) CancelSale(ctx context.Context, saleID uuid.UUID, req *CancelSaleRequest) (*CancelSaleResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	approval, err := s.approval.Approve(ctx, actor.TenantID, req.SupervisorCredential, ActionSaleCancel)
	if err != nil {
		return nil, err
	}

	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.IsCanceled() {
		return &CancelSaleResult{Sale: sale, AlreadyCanceled: true}, nil
	}

	ctx, span := tracer.Start(ctx, "sale.cancel")
	defer span.End()

	alreadyCanceled := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sales := s.saleRepo.WithTx(tx)
		locked, err := sales.FindByIDForUpdate(ctx, actor.TenantID, saleID)
		if err != nil {
			return err
		}
		if locked.IsCanceled() {
			alreadyCanceled = true
			return nil
		}

		now := time.Now()
		sale.Status = model.SaleCanceled
		sale.CanceledAt = &now
		sale.CancelReason = req.Reason
		sale.CanceledByID = &actor.UserID
		sale.ApprovedByID = &approval.UserID
		return sales.MarkCanceled(ctx, actor.TenantID, sale)
	})
	if err != nil {
		span.RecordError(err)
		return nil, persistenceError("cancel sale", err)
	}
	if alreadyCanceled {
		current, err := s.GetSale(ctx, saleID)
		if err != nil {
			return nil, err
		}
		return &CancelSaleResult{Sale: current, AlreadyCanceled: true}, nil
	}

	result := &CancelSaleResult{Sale: sale, ApprovedBy: approval}

	if sale.FiscalKey != nil {
		if err := s.fiscal.Cancel(ctx, *sale.FiscalKey, req.Reason); err != nil {
			s.log.Warn("fiscal cancel failed", "sale_id", sale.ID, "error", err)
			result.Warnings = append(result.Warnings, "fiscal cancel failed: "+err.Error())
		}
	}
	if _, err := s.ledger.ReverseBySaleReference(ctx, sale.ID); err != nil {
		s.log.Warn("inventory reversal failed", "sale_id", sale.ID, "error", err)
		result.Warnings = append(result.Warnings, "inventory reversal failed: "+err.Error())
	}

	cancelKey := "cancel:" + sale.ID.String()
	s.recordAudit(ctx, actor, &cancelKey, model.ActionSaleCancel, sale.ID, req.Reason)

	return result, nil
}

func (s *saleService) GetSale(ctx context.Context, saleID uuid.UUID) (*model.Sale, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sale, err := s.saleRepo.FindByID(ctx, actor.TenantID, saleID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("load sale: %w", err)
	}
	return sale, nil
}

// recordAudit appends an audit entry. A duplicate marker means someone else already
// recorded it, which is the outcome we wanted.
func (s *saleService) recordAudit(ctx context.Context, actor Actor, key *string, action string, entityID uuid.UUID, detail string) {
	entry := &model.AuditLog{
		TenantID:       actor.TenantID,
		IdempotencyKey: key,
		Action:         action,
		EntityID:       &entityID,
		UserID:         actor.UserID,
		Detail:         detail,
	}
	if err := s.auditRepo.Record(ctx, actor.TenantID, entry); err != nil && !database.IsUniqueViolation(err) {
		s.log.Error("failed to record audit entry", "action", action, "entity_id", entityID, "error", err)
	}
}

func (s *saleService) enqueueReceipt(ctx context.Context, sale *model.Sale) string {
	if s.printer == nil {
		return ""
	}
	payload, err := json.Marshal(sale)
	if err != nil {
		s.log.Error("failed to encode receipt", "sale_id", sale.ID, "error", err)
		return ""
	}
	jobID, err := s.printer.Enqueue(ctx, ws.PrintJob{
		TenantID:  sale.TenantID,
		Kind:      "receipt",
		Reference: fmt.Sprintf("Sale #%d", sale.Number),
		Payload:   payload,
	})
	if err != nil {
		s.log.Warn("receipt print not queued", "sale_id", sale.ID, "error", err)
		return ""
	}
	return jobID
}
