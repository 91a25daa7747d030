package middleware

import (
	"strings"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/internal/service"
	"go-retail-ledger/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// RequireAuth validates the JWT, checks the user is still active in the token's tenant
// and binds the caller to the request context for downstream handlers.
func RequireAuth(tokens *jwt.Manager, userRepo repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token", "code": "UNAUTHENTICATED"})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>", "code": "UNAUTHENTICATED"})
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token", "code": "UNAUTHENTICATED"})
		}

		user, err := userRepo.FindByID(c.UserContext(), claims.TenantID, claims.UserID)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "User not found", "code": "UNAUTHENTICATED"})
		}
		if !user.IsActive {
			return c.Status(401).JSON(fiber.Map{"error": "User is inactive", "code": "UNAUTHENTICATED"})
		}

		actor := service.Actor{
			TenantID: user.TenantID,
			UserID:   user.ID,
			Role:     user.Role,
			Name:     user.FullName,
		}
		c.SetUserContext(service.WithActor(c.UserContext(), actor))
		c.Locals("user_id", user.ID.String())
		c.Locals("tenant_id", user.TenantID.String())
		c.Locals("user_role", string(user.Role))

		return c.Next()
	}
}

// RequireRole lets the request through only for the listed roles
func RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := service.ActorFromContext(c.UserContext())
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Unauthorized", "code": "UNAUTHENTICATED"})
		}

		for _, r := range roles {
			if actor.Role == r {
				return c.Next()
			}
		}

		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires one of " + strings.Join(names, ", "),
			"code":  service.ErrRoleForbidden.Code,
		})
	}
}
