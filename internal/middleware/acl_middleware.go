package middleware

import (
	"github.com/gofiber/fiber/v2"

	"photox_backend/internal/model"
	"photox_backend/pkg/database"
	"photox_backend/pkg/utils/jwt"
)

// CheckImageOwnership görselin sahibi olup olmadığını kontrol eder
func CheckImageOwnership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)
		imageID := c.Params("id")

		var img model.GeneratedImage
		if err := database.GetDB().First(&img, "id = ?", imageID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Image not found",
			})
		}

		if img.UserID != claims.UserID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You don't have permission to access this image",
			})
		}

		c.Locals("image", &img)
		return c.Next()
	}
}
