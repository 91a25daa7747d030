package handler

import (
	"go-retail-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type CashSessionHandler struct {
	sessions service.CashSessionService
}

func NewCashSessionHandler(sessions service.CashSessionService) *CashSessionHandler {
	return &CashSessionHandler{sessions: sessions}
}

// POST /api/v1/cash-sessions
func (h *CashSessionHandler) Open(c *fiber.Ctx) error {
	var req service.OpenCashSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	session, err := h.sessions.Open(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// GET /api/v1/cash-sessions
func (h *CashSessionHandler) ListOpen(c *fiber.Ctx) error {
	sessions, err := h.sessions.ListOpen(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sessions)
}

// GET /api/v1/cash-sessions/:id
func (h *CashSessionHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	session, err := h.sessions.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// GET /api/v1/cash-sessions/:id/report
func (h *CashSessionHandler) Report(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	report, err := h.sessions.Report(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// POST /api/v1/cash-sessions/:id/withdrawals
func (h *CashSessionHandler) Withdraw(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	result, err := h.sessions.Withdraw(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// POST /api/v1/cash-sessions/:id/close
func (h *CashSessionHandler) Close(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.CloseCashSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	session, err := h.sessions.Close(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}
