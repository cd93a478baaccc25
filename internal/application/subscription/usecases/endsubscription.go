package usecases

import (
	"context"
	"fmt"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type EndSubscriptionCommand struct {
	FacilityID string
	AdminID    string
}

type EndSubscriptionUseCase struct {
	txManager TransactionRunner
	repo      subscription.Repository
	tiering   *TieringService
	logger    logger.Interface
}

func NewEndSubscriptionUseCase(
	txManager TransactionRunner,
	repo subscription.Repository,
	tiering *TieringService,
	logger logger.Interface,
) *EndSubscriptionUseCase {
	return &EndSubscriptionUseCase{
		txManager: txManager,
		repo:      repo,
		tiering:   tiering,
		logger:    logger,
	}
}

// Execute deactivates the subscription now and clears its queue and
// original-plan bookkeeping.
func (uc *EndSubscriptionUseCase) Execute(ctx context.Context, cmd EndSubscriptionCommand) error {
	if cmd.FacilityID == "" {
		return errors.NewValidationError("facility id is required")
	}

	var cs *changeSet
	err := uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cs = newChangeSet(cmd.FacilityID)
		sub, err := uc.repo.GetByFacilityIDForUpdate(ctx, cmd.FacilityID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscription.ErrSubscriptionNotFound
		}
		tiers, err := uc.repo.ListTiers(ctx, sub.ID())
		if err != nil {
			return err
		}
		if !sub.IsActive() && len(tiers) == 0 && sub.OriginalPlan() == "" {
			return subscription.ErrSubscriptionAlreadyEnded
		}

		sub.End(uc.tiering.Now())
		if err := uc.repo.Update(ctx, sub); err != nil {
			return err
		}
		if err := uc.repo.ReplaceTiers(ctx, sub.ID(), nil); err != nil {
			return err
		}
		cs.notify(CategoryEnded, fmt.Sprintf("The %s subscription has been ended.", sub.Plan()), "")
		return nil
	})
	if err != nil {
		uc.logger.Warnw("failed to end subscription", "facility_id", cmd.FacilityID, "error", err)
		return translateError(err, "failed to end subscription")
	}
	uc.tiering.publish(ctx, cs)

	uc.logger.Infow("subscription ended", "facility_id", cmd.FacilityID, "admin_id", cmd.AdminID)
	return nil
}
