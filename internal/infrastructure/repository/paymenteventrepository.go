package repository

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/infrastructure/persistence/models"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
	"github.com/rackgrid/rackgrid/internal/shared/db"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type PaymentEventRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewPaymentEventRepository(gdb *gorm.DB, logger logger.Interface) subscription.ProcessedEventRepository {
	return &PaymentEventRepositoryImpl{db: gdb, logger: logger}
}

func (r *PaymentEventRepositoryImpl) Record(ctx context.Context, event *subscription.ProcessedEvent) (bool, error) {
	processedAt := event.ProcessedAt
	if processedAt.IsZero() {
		processedAt = biztime.NowUTC()
	}
	model := &models.PaymentEventModel{
		EventID:     event.EventID,
		EventType:   event.EventType,
		PaymentID:   event.PaymentID,
		FacilityID:  event.FacilityID,
		Outcome:     event.Outcome,
		Payload:     datatypes.JSON(event.Payload),
		ProcessedAt: biztime.Normalize(processedAt),
	}
	if len(model.Payload) == 0 {
		model.Payload = datatypes.JSON("{}")
	}

	result := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		r.logger.Errorw("failed to record payment event", "event_id", event.EventID, "error", result.Error)
		return false, fmt.Errorf("failed to record payment event: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *PaymentEventRepositoryImpl) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).Model(&models.PaymentEventModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up payment event: %w", err)
	}
	return count > 0, nil
}
