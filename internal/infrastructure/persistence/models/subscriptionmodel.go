package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/rackgrid/rackgrid/internal/shared/constants"
)

// SubscriptionModel is the persisted form of a facility subscription.
// The composite renewal index serves the scheduler's due query.
type SubscriptionModel struct {
	ID                  uint      `gorm:"primarykey"`
	FacilityID          string    `gorm:"uniqueIndex;not null;size:64"`
	Plan                string    `gorm:"not null;size:20"`
	StartDate           time.Time `gorm:"not null"`
	EndDate             time.Time `gorm:"not null;index:idx_subscription_renewal,priority:3"`
	IsActive            bool      `gorm:"not null;default:false;index:idx_subscription_renewal,priority:1"`
	AutoRenew           bool      `gorm:"not null;default:false;index:idx_subscription_renewal,priority:2"`
	RenewalPeriod       string    `gorm:"not null;size:16"`
	PaymentMethodRef    *string   `gorm:"size:255"`
	LastPaymentID       *string   `gorm:"size:255;index:idx_subscription_last_payment"`
	IsDisputed          bool      `gorm:"not null;default:false"`
	OriginalPlan        *string   `gorm:"size:20"`
	OriginalPlanEndDate *time.Time
	Version             int `gorm:"not null;default:1"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Tiers []SubscriptionTierModel `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
}

func (SubscriptionModel) TableName() string {
	return constants.TableSubscriptions
}

func (s *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
