package models

import (
	"time"

	"github.com/rackgrid/rackgrid/internal/shared/constants"
)

// SubscriptionTierModel is one queued interval. (subscription_id, tier_order)
// is unique; rows are replaced wholesale on every engine run.
type SubscriptionTierModel struct {
	ID             uint      `gorm:"primarykey"`
	SubscriptionID uint      `gorm:"not null;uniqueIndex:idx_tier_subscription_order,priority:1"`
	Plan           string    `gorm:"not null;size:20"`
	StartDate      time.Time `gorm:"not null"`
	EndDate        time.Time `gorm:"not null"`
	TierOrder      int       `gorm:"not null;uniqueIndex:idx_tier_subscription_order,priority:2"`
	CreatedAt      time.Time
}

func (SubscriptionTierModel) TableName() string {
	return constants.TableSubscriptionTiers
}
