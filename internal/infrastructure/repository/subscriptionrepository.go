package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/infrastructure/persistence/mappers"
	"github.com/rackgrid/rackgrid/internal/infrastructure/persistence/models"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
	"github.com/rackgrid/rackgrid/internal/shared/db"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SubscriptionMapper
	logger logger.Interface
}

func NewSubscriptionRepository(gdb *gorm.DB, logger logger.Interface) subscription.Repository {
	return &SubscriptionRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewSubscriptionMapper(),
		logger: logger,
	}
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, sub *subscription.Subscription) error {
	model := r.mapper.ToModel(sub)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create subscription", "facility_id", sub.FacilityID(), "error", err)
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	if err := sub.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set subscription ID: %w", err)
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) CreateIfAbsent(ctx context.Context, sub *subscription.Subscription) (bool, error) {
	model := r.mapper.ToModel(sub)
	result := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "facility_id"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		r.logger.Errorw("failed to create subscription", "facility_id", sub.FacilityID(), "error", result.Error)
		return false, fmt.Errorf("failed to create subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if err := sub.SetID(model.ID); err != nil {
		return false, fmt.Errorf("failed to set subscription ID: %w", err)
	}
	return true, nil
}

func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, sub *subscription.Subscription) error {
	model := r.mapper.ToModel(sub)
	result := db.GetTxFromContext(ctx, r.db).Model(&models.SubscriptionModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"plan":                   model.Plan,
			"start_date":             model.StartDate,
			"end_date":               model.EndDate,
			"is_active":              model.IsActive,
			"auto_renew":             model.AutoRenew,
			"renewal_period":         model.RenewalPeriod,
			"payment_method_ref":     model.PaymentMethodRef,
			"last_payment_id":        model.LastPaymentID,
			"is_disputed":            model.IsDisputed,
			"original_plan":          model.OriginalPlan,
			"original_plan_end_date": model.OriginalPlanEndDate,
			"version":                model.Version,
			"updated_at":             model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update subscription", "id", model.ID, "facility_id", model.FacilityID, "error", result.Error)
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) GetByFacilityID(ctx context.Context, facilityID string) (*subscription.Subscription, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("facility_id = ?", facilityID), "facility_id", facilityID)
}

// GetByFacilityIDForUpdate locks the facility's row until the surrounding
// transaction ends.
func (r *SubscriptionRepositoryImpl) GetByFacilityIDForUpdate(ctx context.Context, facilityID string) (*subscription.Subscription, error) {
	q := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("facility_id = ?", facilityID)
	return r.first(q, "facility_id", facilityID)
}

func (r *SubscriptionRepositoryImpl) GetByLastPaymentIDForUpdate(ctx context.Context, paymentID string) (*subscription.Subscription, error) {
	if paymentID == "" {
		return nil, nil
	}
	q := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("last_payment_id = ?", paymentID)
	return r.first(q, "payment_id", paymentID)
}

func (r *SubscriptionRepositoryImpl) first(q *gorm.DB, key, value string) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get subscription", key, value, "error", err)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SubscriptionRepositoryImpl) ListTiers(ctx context.Context, subscriptionID uint) ([]subscription.Tier, error) {
	var rows []models.SubscriptionTierModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("subscription_id = ?", subscriptionID).
		Order("tier_order ASC").
		Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to list tiers", "subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	return r.mapper.ToTiers(rows), nil
}

// ReplaceTiers deletes every tier of the subscription and inserts tiers.
func (r *SubscriptionRepositoryImpl) ReplaceTiers(ctx context.Context, subscriptionID uint, tiers []subscription.Tier) error {
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Where("subscription_id = ?", subscriptionID).Delete(&models.SubscriptionTierModel{}).Error; err != nil {
		r.logger.Errorw("failed to delete tiers", "subscription_id", subscriptionID, "error", err)
		return fmt.Errorf("failed to delete tiers: %w", err)
	}
	if len(tiers) == 0 {
		return nil
	}
	rows := r.mapper.ToTierModels(subscriptionID, tiers)
	if err := tx.Create(&rows).Error; err != nil {
		r.logger.Errorw("failed to insert tiers", "subscription_id", subscriptionID, "count", len(rows), "error", err)
		return fmt.Errorf("failed to insert tiers: %w", err)
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) ListDueForRenewal(ctx context.Context, horizon time.Time, limit int) ([]string, error) {
	var ids []string
	err := db.GetTxFromContext(ctx, r.db).Model(&models.SubscriptionModel{}).
		Where("is_active = ? AND auto_renew = ?", true, true).
		Where("payment_method_ref IS NOT NULL AND payment_method_ref <> ''").
		Where("end_date <= ?", biztime.Normalize(horizon)).
		Order("end_date ASC").
		Limit(limit).
		Pluck("facility_id", &ids).Error
	if err != nil {
		r.logger.Errorw("failed to list subscriptions due for renewal", "horizon", horizon, "error", err)
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	return ids, nil
}

func (r *SubscriptionRepositoryImpl) ListLapsed(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := db.GetTxFromContext(ctx, r.db).Model(&models.SubscriptionModel{}).
		Where("is_active = ? AND end_date <= ?", true, biztime.Normalize(now)).
		Order("end_date ASC").
		Limit(limit).
		Pluck("facility_id", &ids).Error
	if err != nil {
		r.logger.Errorw("failed to list lapsed subscriptions", "error", err)
		return nil, fmt.Errorf("failed to list lapsed subscriptions: %w", err)
	}
	return ids, nil
}
