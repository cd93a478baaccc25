package usecases

import (
	"context"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type ToggleAutoRenewCommand struct {
	FacilityID string
	Enabled    bool
}

type ToggleAutoRenewUseCase struct {
	txManager TransactionRunner
	repo      subscription.Repository
	tiering   *TieringService
	logger    logger.Interface
}

func NewToggleAutoRenewUseCase(
	txManager TransactionRunner,
	repo subscription.Repository,
	tiering *TieringService,
	logger logger.Interface,
) *ToggleAutoRenewUseCase {
	return &ToggleAutoRenewUseCase{
		txManager: txManager,
		repo:      repo,
		tiering:   tiering,
		logger:    logger,
	}
}

func (uc *ToggleAutoRenewUseCase) Execute(ctx context.Context, cmd ToggleAutoRenewCommand) error {
	if cmd.FacilityID == "" {
		return errors.NewValidationError("facility id is required")
	}

	err := uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sub, err := uc.repo.GetByFacilityIDForUpdate(ctx, cmd.FacilityID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscription.ErrSubscriptionNotFound
		}
		if cmd.Enabled && sub.PaymentMethodRef() == "" {
			return errors.NewValidationError("no payment method on file to renew with")
		}
		if sub.AutoRenew() == cmd.Enabled {
			return nil
		}
		sub.SetAutoRenew(cmd.Enabled)
		return uc.repo.Update(ctx, sub)
	})
	if err != nil {
		uc.logger.Warnw("failed to toggle auto renew", "facility_id", cmd.FacilityID, "enabled", cmd.Enabled, "error", err)
		return translateError(err, "failed to update auto renew")
	}
	uc.tiering.invalidate(ctx, cmd.FacilityID)

	uc.logger.Infow("auto renew updated", "facility_id", cmd.FacilityID, "enabled", cmd.Enabled)
	return nil
}
