package usecases

import (
	"context"
	"fmt"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

// StartTrialUseCase gives a newly registered facility its trial interval.
// A facility that already has a record keeps it unchanged.
type StartTrialUseCase struct {
	txManager TransactionRunner
	repo      subscription.Repository
	tiering   *TieringService
	logger    logger.Interface
}

func NewStartTrialUseCase(
	txManager TransactionRunner,
	repo subscription.Repository,
	tiering *TieringService,
	logger logger.Interface,
) *StartTrialUseCase {
	return &StartTrialUseCase{
		txManager: txManager,
		repo:      repo,
		tiering:   tiering,
		logger:    logger,
	}
}

func (uc *StartTrialUseCase) Execute(ctx context.Context, facilityID string) (*dto.StatusDTO, error) {
	if facilityID == "" {
		return nil, errors.NewValidationError("facility id is required")
	}

	var (
		status  *dto.StatusDTO
		created bool
	)
	err := uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		created = false
		now := uc.tiering.Now()
		sub, err := uc.repo.GetByFacilityIDForUpdate(ctx, facilityID)
		if err != nil {
			return err
		}
		if sub == nil {
			trial, err := subscription.NewTrialSubscription(facilityID, now)
			if err != nil {
				return err
			}
			if created, err = uc.repo.CreateIfAbsent(ctx, trial); err != nil {
				return err
			}
			if created {
				status = dto.ToStatusDTO(trial, nil, now)
				return nil
			}
			// A concurrent call created the record first.
			if sub, err = uc.repo.GetByFacilityIDForUpdate(ctx, facilityID); err != nil {
				return err
			}
			if sub == nil {
				return fmt.Errorf("subscription of facility %s conflicted on insert but was not found", facilityID)
			}
		}

		tiers, err := uc.repo.ListTiers(ctx, sub.ID())
		if err != nil {
			return err
		}
		status = dto.ToStatusDTO(sub, subscription.CurrentView(sub, tiers, now), now)
		return nil
	})
	if err != nil {
		uc.logger.Errorw("failed to start trial", "facility_id", facilityID, "error", err)
		return nil, translateError(err, "failed to start trial")
	}

	if created {
		uc.tiering.invalidate(ctx, facilityID)
		uc.logger.Infow("trial started", "facility_id", facilityID, "days", subscription.TrialDays)
	}
	return status, nil
}
