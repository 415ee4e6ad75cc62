package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"photox_backend/internal/model"
	"photox_backend/pkg/database"
	"photox_backend/pkg/email"
	"photox_backend/pkg/entitlement"
)

var rolloverStore *entitlement.Store

// InitCycleRolloverCron schedules the only callers of ResetCycle: the
// daily rollover for paid cycles that have ended, the monthly refresh for
// free-tier counters, and the cycle-end warning mail.
func InitCycleRolloverCron(store *entitlement.Store) {
	rolloverStore = store

	c := cron.New()

	if _, err := c.AddFunc("5 0 * * *", rollPaidCycles); err != nil {
		log.Printf("Could not schedule paid cycle rollover: %v", err)
		return
	}
	if _, err := c.AddFunc("0 0 1 * *", resetFreeCycles); err != nil {
		log.Printf("Could not schedule free cycle reset: %v", err)
		return
	}
	if _, err := c.AddFunc("0 9 * * *", sendCycleEndWarnings); err != nil {
		log.Printf("Could not schedule cycle end warnings: %v", err)
		return
	}

	c.Start()
}

// rollPaidCycles resets usage for subscriptions whose billing period has
// ended and advances the local cycle end by a month. Webhook or pull
// reconciliation overwrites the estimate with Stripe's exact period end.
func rollPaidCycles() {
	log.Println("Rolling over ended billing cycles...")

	var subs []model.UserSubscription
	err := database.DB.
		Where("cycle_end IS NOT NULL AND cycle_end < ? AND status IN ?", time.Now(), []string{"active", "past_due"}).
		Find(&subs).Error
	if err != nil {
		log.Printf("Error fetching ended cycles: %v", err)
		return
	}

	for _, sub := range subs {
		if err := rolloverStore.ResetCycle(context.Background(), sub.UserID); err != nil {
			log.Printf("Error resetting cycle for %s: %v", sub.UserID, err)
			continue
		}
		next := sub.CycleEnd.AddDate(0, 1, 0)
		if err := database.DB.Model(&model.UserSubscription{}).
			Where("user_id = ?", sub.UserID).
			Update("cycle_end", next).Error; err != nil {
			log.Printf("Error advancing cycle end for %s: %v", sub.UserID, err)
		}
	}

	if len(subs) > 0 {
		log.Printf("Rolled over %d billing cycles", len(subs))
	}
}

// resetFreeCycles refreshes free-tier counters on the first of the month.
func resetFreeCycles() {
	log.Println("Resetting free tier usage counters...")

	var subs []model.UserSubscription
	err := database.DB.
		Where("status IN ? AND usage_count > 0", []string{"free", "cancelled"}).
		Find(&subs).Error
	if err != nil {
		log.Printf("Error fetching free subscriptions: %v", err)
		return
	}

	for _, sub := range subs {
		if err := rolloverStore.ResetCycle(context.Background(), sub.UserID); err != nil {
			log.Printf("Error resetting usage for %s: %v", sub.UserID, err)
		}
	}

	log.Printf("Reset usage for %d free tier users", len(subs))
}

func sendCycleEndWarnings() {
	if email.GlobalEmailService == nil {
		return
	}

	const warningDays = 3
	targetDate := time.Now().AddDate(0, 0, warningDays).Format("2006-01-02")

	var subs []model.UserSubscription
	err := database.DB.
		Where("DATE(cycle_end) = ? AND status = ?", targetDate, "active").
		Find(&subs).Error
	if err != nil {
		log.Printf("Error fetching subscriptions nearing cycle end: %v", err)
		return
	}

	for _, sub := range subs {
		plan := rolloverStore.Catalog().PlanFor(sub.PlanID)

		var user model.User
		name := sub.Email
		if err := database.DB.Where("email = ?", sub.Email).First(&user).Error; err == nil && user.GetFullName() != "" {
			name = user.GetFullName()
		}

		if err := email.GlobalEmailService.SendCycleEndWarning(sub.Email, name, plan.Name, *sub.CycleEnd, warningDays); err != nil {
			log.Printf("Error sending cycle end warning to %s: %v", sub.Email, err)
		}
	}
}
