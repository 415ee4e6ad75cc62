package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"photox_backend/internal/model"
	"photox_backend/pkg/database"
	"photox_backend/pkg/utils/jwt"
)

// DashboardStats genel dashboard istatistikleri
type DashboardStats struct {
	TotalImages     int64       `json:"total_images"`
	GeneratedImages int64       `json:"generated_images"`
	EditedImages    int64       `json:"edited_images"`
	UsageThisCycle  int         `json:"usage_this_cycle"`
	MonthlyLimit    int         `json:"monthly_limit"`
	Remaining       int         `json:"remaining"`
	PlanName        string      `json:"plan_name"`
	DailyStats      []DailyStat `json:"daily_stats"`
}

type DailyStat struct {
	Date      string `json:"date"`
	Generated int64  `json:"generated"`
}

// GetDashboardStats dashboard istatistiklerini getirir
func GetDashboardStats(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	db := database.GetDB()

	var stats DashboardStats

	db.Model(&model.GeneratedImage{}).
		Where("user_id = ?", claims.UserID).
		Count(&stats.TotalImages)

	db.Model(&model.GeneratedImage{}).
		Where("user_id = ? AND image_type = ?", claims.UserID, model.ImageTypeGenerated).
		Count(&stats.GeneratedImages)

	db.Model(&model.GeneratedImage{}).
		Where("user_id = ? AND image_type = ?", claims.UserID, model.ImageTypeEdited).
		Count(&stats.EditedImages)

	rec, err := imageStore.EnsureRecord(c.Context(), claims.UserID, claims.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch usage",
		})
	}
	plan := imageStore.PlanFor(rec)
	stats.UsageThisCycle = rec.UsageCount
	stats.MonthlyLimit = plan.MonthlyLimit
	stats.Remaining = imageStore.Remaining(rec)
	stats.PlanName = plan.Name

	// Son 7 günün istatistikleri
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		var stat DailyStat
		stat.Date = date.Format("2006-01-02")

		db.Model(&model.GeneratedImage{}).
			Where("user_id = ? AND DATE(created_at) = ?", claims.UserID, stat.Date).
			Count(&stat.Generated)

		stats.DailyStats = append(stats.DailyStats, stat)
	}

	return c.JSON(stats)
}
