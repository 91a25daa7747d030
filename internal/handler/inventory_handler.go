package handler

import (
	"strconv"
	"time"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/internal/service"
	"go-retail-ledger/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type InventoryHandler struct {
	ledger  service.LedgerService
	catalog service.CatalogService
}

func NewInventoryHandler(ledger service.LedgerService, catalog service.CatalogService) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, catalog: catalog}
}

func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var product model.Product
	if err := c.BodyParser(&product); err != nil {
		return invalidJSON(c)
	}
	if err := h.catalog.CreateProduct(c.UserContext(), &product); err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.catalog.GetAllProducts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

func (h *InventoryHandler) CreateLocation(c *fiber.Ctx) error {
	var location model.StockLocation
	if err := c.BodyParser(&location); err != nil {
		return invalidJSON(c)
	}
	if err := h.catalog.CreateLocation(c.UserContext(), &location); err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Location created", "data": location})
}

func (h *InventoryHandler) GetLocations(c *fiber.Ctx) error {
	locations, err := h.catalog.GetAllLocations(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(locations)
}

// POST /api/v1/inventory/credit
func (h *InventoryHandler) Credit(c *fiber.Ctx) error {
	var req service.MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	result, err := h.ledger.Credit(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(result)
}

// POST /api/v1/inventory/debit
func (h *InventoryHandler) Debit(c *fiber.Ctx) error {
	var req service.MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	result, err := h.ledger.Debit(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(result)
}

// POST /api/v1/inventory/adjust
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var req service.AdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	result, err := h.ledger.Adjust(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(result)
}

// POST /api/v1/inventory/transfer
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var req service.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	result, err := h.ledger.Transfer(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(result)
}

// GetMovements lists the movement log
// Query params: productId, locationId, type, from, to (RFC3339), limit
func (h *InventoryHandler) GetMovements(c *fiber.Ctx) error {
	var filter repository.MovementFilter
	var err error

	if v := c.Query("productId"); v != "" {
		if filter.ProductID, err = uuid.Parse(v); err != nil {
			return respondError(c, apperror.Validation("INVALID_ID", "Invalid productId"))
		}
	}
	if v := c.Query("locationId"); v != "" {
		if filter.LocationID, err = uuid.Parse(v); err != nil {
			return respondError(c, apperror.Validation("INVALID_ID", "Invalid locationId"))
		}
	}
	filter.Type = model.MovementType(c.Query("type"))
	if v := c.Query("from"); v != "" {
		if filter.From, err = time.Parse(time.RFC3339, v); err != nil {
			return respondError(c, apperror.Validation("INVALID_DATE", "from must be RFC3339"))
		}
	}
	if v := c.Query("to"); v != "" {
		if filter.To, err = time.Parse(time.RFC3339, v); err != nil {
			return respondError(c, apperror.Validation("INVALID_DATE", "to must be RFC3339"))
		}
	}
	filter.Limit = c.QueryInt("limit", 200)

	movements, err := h.ledger.Movements(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(movements)
}

// GetMovementSummary returns stock movement data for charts
// Query params: days (default 7)
func (h *InventoryHandler) GetMovementSummary(c *fiber.Ctx) error {
	daysStr := c.Query("days", "7")
	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 {
		days = 7
	}

	data, err := h.ledger.MovementSummary(c.UserContext(), days)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"period": days,
		"data":   data,
	})
}
