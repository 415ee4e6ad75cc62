package middleware

import (
	"github.com/gofiber/fiber/v2"

	"photox_backend/pkg/entitlement"
	"photox_backend/pkg/utils/jwt"
)

// CheckGenerationQuota rejects requests from users with no generations
// left. Point-in-time pre-check only; the handler still claims the unit
// atomically via TryConsume before calling the provider.
func CheckGenerationQuota(store *entitlement.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		rec, err := store.EnsureRecord(c.Context(), claims.UserID, claims.Email)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not load subscription",
			})
		}

		if !store.CanConsume(rec) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":         "You have reached your monthly generation limit. Please upgrade your plan.",
				"current_usage": rec.UsageCount,
				"monthly_limit": store.PlanFor(rec).MonthlyLimit,
			})
		}

		return c.Next()
	}
}
