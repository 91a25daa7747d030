package handler

import (
	"go-retail-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SaleHandler struct {
	sales service.SaleService
	sync  service.SyncService
}

func NewSaleHandler(sales service.SaleService, sync service.SyncService) *SaleHandler {
	return &SaleHandler{sales: sales, sync: sync}
}

// CreateSale records a sale. A replayed idempotency key answers 200 with duplicate=true.
// POST /api/v1/sales
func (h *SaleHandler) CreateSale(c *fiber.Ctx) error {
	var req service.CreateSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get("Idempotency-Key")
	}

	result, err := h.sales.CreateSale(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if result.Duplicate {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(result)
}

// GET /api/v1/sales/:id
func (h *SaleHandler) GetSale(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	sale, err := h.sales.GetSale(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sale)
}

// POST /api/v1/sales/:id/cancel
func (h *SaleHandler) CancelSale(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.CancelSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.sales.CancelSale(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// OfflineSync applies the inventory effect of a sale captured offline
// POST /api/v1/sales/offline-sync
func (h *SaleHandler) OfflineSync(c *fiber.Ctx) error {
	var req service.OfflineSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.sync.ApplyOfflineSale(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
