package model

import (
	"time"

	"gorm.io/gorm"
)

// UserSubscription is the one-row-per-user entitlement state. UserID is the
// identity-provider subject; Email is the secondary key Stripe webhooks
// resolve records through.
type UserSubscription struct {
	gorm.Model
	UserID               string     `json:"user_id" gorm:"index;not null"`
	Email                string     `json:"email" gorm:"uniqueIndex;not null"`
	PlanID               string     `json:"plan_id" gorm:"not null;default:'free'"`
	Status               string     `json:"status" gorm:"not null;default:'free'"`
	UsageCount           int        `json:"usage_count" gorm:"not null;default:0"`
	CycleEnd             *time.Time `json:"cycle_end"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
}
