package handler

import (
	"errors"
	"log"

	"go-retail-ledger/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// statusOf maps a domain error kind to its HTTP status
func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	case apperror.KindTenantNotResolved:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {error, code, details}. Unknown errors are logged and hidden.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
			"code":  "INTERNAL",
		})
	}

	body := fiber.Map{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	return c.Status(statusOf(appErr.Kind)).JSON(body)
}

func invalidJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON", "code": "INVALID_JSON"})
}

// paramID parses a uuid path parameter
func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("INVALID_ID", "Invalid "+name)
	}
	return id, nil
}
