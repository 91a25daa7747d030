package service

import (
	"context"
	"strings"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/pkg/apperror"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/validator"
)

var ErrSKUExists = apperror.Conflict("SKU_EXISTS", "SKU already exists")

// CatalogService manages the products and stock locations the ledger keys on
type CatalogService interface {
	CreateProduct(ctx context.Context, req *model.Product) error
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	CreateLocation(ctx context.Context, req *model.StockLocation) error
	GetAllLocations(ctx context.Context) ([]model.StockLocation, error)
}

type catalogService struct {
	productRepo  repository.ProductRepository
	locationRepo repository.LocationRepository
}

func NewCatalogService(productRepo repository.ProductRepository, locationRepo repository.LocationRepository) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		locationRepo: locationRepo,
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, req *model.Product) error {
	// 1. Validate
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return err
	}

	// 2. SKU is unique per tenant
	req.SKU = strings.TrimSpace(req.SKU)
	existing, _ := s.productRepo.FindBySKU(ctx, actor.TenantID, req.SKU)
	if existing != nil {
		return ErrSKUExists
	}

	// 3. Save
	req.TenantID = actor.TenantID
	req.IsActive = true
	if err := s.productRepo.Create(ctx, actor.TenantID, req); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrSKUExists
		}
		return err
	}
	return nil
}

func (s *catalogService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.productRepo.FindAll(ctx, actor.TenantID)
}

func (s *catalogService) CreateLocation(ctx context.Context, req *model.StockLocation) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return err
	}
	req.TenantID = actor.TenantID
	return s.locationRepo.Create(ctx, actor.TenantID, req)
}

func (s *catalogService) GetAllLocations(ctx context.Context) ([]model.StockLocation, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.locationRepo.FindAll(ctx, actor.TenantID)
}
