package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"photox_backend/internal/model"
	"photox_backend/pkg/entitlement"
)

// SubscriptionRepository is the GORM-backed persistence layer for
// entitlement records. Rows are canonically keyed by email (the only key
// Stripe webhooks carry) with a secondary index on the user subject.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*entitlement.Record, error) {
	var row model.UserSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrRecordNotFound
		}
		return nil, err
	}
	return toRecord(&row), nil
}

func (r *SubscriptionRepository) GetByEmail(ctx context.Context, email string) (*entitlement.Record, error) {
	var row model.UserSubscription
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrRecordNotFound
		}
		return nil, err
	}
	return toRecord(&row), nil
}

// Upsert writes plan, status, cycle and subscription reference keyed by
// email. usage_count is deliberately excluded from the conflict update:
// reconciliation never resets usage.
func (r *SubscriptionRepository) Upsert(ctx context.Context, rec *entitlement.Record) (*entitlement.Record, error) {
	row := model.UserSubscription{
		UserID:               rec.UserID,
		Email:                rec.Email,
		PlanID:               rec.PlanID,
		Status:               string(rec.Status),
		UsageCount:           rec.UsageCount,
		CycleEnd:             rec.CycleEnd,
		StripeSubscriptionID: rec.StripeSubscriptionID,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "plan_id", "status", "cycle_end", "stripe_subscription_id", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.GetByEmail(ctx, rec.Email)
}

func (r *SubscriptionRepository) IncrementUsage(ctx context.Context, userID string) (*entitlement.Record, error) {
	res := r.db.WithContext(ctx).Model(&model.UserSubscription{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, entitlement.ErrRecordNotFound
	}
	return r.GetByUserID(ctx, userID)
}

// IncrementUsageBelow is the atomic conditional increment that closes the
// check-then-act window between CanConsume and RecordUsage.
func (r *SubscriptionRepository) IncrementUsageBelow(ctx context.Context, userID string, limit int) (bool, *entitlement.Record, error) {
	res := r.db.WithContext(ctx).Model(&model.UserSubscription{}).
		Where("user_id = ? AND usage_count < ?", userID, limit).
		UpdateColumns(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil, nil
	}
	rec, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return true, nil, err
	}
	return true, rec, nil
}

func (r *SubscriptionRepository) DecrementUsage(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&model.UserSubscription{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"usage_count": gorm.Expr("GREATEST(usage_count - 1, 0)"),
			"updated_at":  time.Now(),
		}).Error
}

func (r *SubscriptionRepository) ResetUsage(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Model(&model.UserSubscription{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"usage_count": 0,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entitlement.ErrRecordNotFound
	}
	return nil
}

func toRecord(row *model.UserSubscription) *entitlement.Record {
	return &entitlement.Record{
		UserID:               row.UserID,
		Email:                row.Email,
		PlanID:               row.PlanID,
		Status:               entitlement.Status(row.Status),
		UsageCount:           row.UsageCount,
		CycleEnd:             row.CycleEnd,
		StripeSubscriptionID: row.StripeSubscriptionID,
		UpdatedAt:            row.UpdatedAt,
	}
}
