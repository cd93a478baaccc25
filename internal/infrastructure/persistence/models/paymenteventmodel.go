package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/rackgrid/rackgrid/internal/shared/constants"
)

// PaymentEventModel records a gateway event that has been applied.
type PaymentEventModel struct {
	ID          uint   `gorm:"primarykey"`
	EventID     string `gorm:"uniqueIndex;not null;size:255"`
	EventType   string `gorm:"not null;size:64"`
	PaymentID   string `gorm:"size:255;index"`
	FacilityID  string `gorm:"size:64;index"`
	Outcome     string `gorm:"not null;size:32"`
	Payload     datatypes.JSON
	ProcessedAt time.Time `gorm:"not null"`
}

func (PaymentEventModel) TableName() string {
	return constants.TablePaymentEvents
}

// All lists every model managed by automigration.
func All() []any {
	return []any{
		&SubscriptionModel{},
		&SubscriptionTierModel{},
		&PaymentEventModel{},
	}
}
