package usecases

import (
	"context"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type AdminOverrideCommand struct {
	FacilityID string
	Plan       string
	Days       int
	AdminID    string
}

// AdminOverrideUseCase grants days of a plan without a payment, through the
// same engine path as a purchase.
type AdminOverrideUseCase struct {
	txManager TransactionRunner
	tiering   *TieringService
	logger    logger.Interface
}

func NewAdminOverrideUseCase(txManager TransactionRunner, tiering *TieringService, logger logger.Interface) *AdminOverrideUseCase {
	return &AdminOverrideUseCase{
		txManager: txManager,
		tiering:   tiering,
		logger:    logger,
	}
}

func (uc *AdminOverrideUseCase) Execute(ctx context.Context, cmd AdminOverrideCommand) (*dto.StatusDTO, error) {
	if cmd.FacilityID == "" {
		return nil, errors.NewValidationError("facility id is required")
	}
	plan, err := vo.ParsePlanID(cmd.Plan)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if cmd.Days <= 0 {
		return nil, errors.NewValidationError("days must be positive")
	}

	var (
		cs     *changeSet
		status *dto.StatusDTO
	)
	err = uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cs = newChangeSet(cmd.FacilityID)
		sub, err := uc.tiering.lockOrCreate(ctx, cmd.FacilityID)
		if err != nil {
			return err
		}
		tiers, err := uc.tiering.apply(ctx, sub, plan, cmd.Days, TriggerAdminOverride, cs)
		if err != nil {
			return err
		}
		cs.notify(CategoryPurchased, purchasedMessage(sub, plan, cmd.Days), "")
		now := uc.tiering.Now()
		status = dto.ToStatusDTO(sub, subscription.CurrentView(sub, tiers, now), now)
		return nil
	})
	if err != nil {
		uc.logger.Errorw("admin override failed", "facility_id", cmd.FacilityID, "plan", plan, "days", cmd.Days, "error", err)
		return nil, translateError(err, "failed to apply override")
	}
	uc.tiering.publish(ctx, cs)

	uc.logger.Infow("admin override applied",
		"facility_id", cmd.FacilityID,
		"admin_id", cmd.AdminID,
		"plan", plan,
		"days", cmd.Days,
	)
	return status, nil
}
