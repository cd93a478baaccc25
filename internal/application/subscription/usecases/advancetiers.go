package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

const advanceBatchSize = 500

// AdvanceTiersUseCase moves subscriptions whose interval has lapsed onto
// their next queued tier, or marks them inactive when nothing is queued.
type AdvanceTiersUseCase struct {
	txManager TransactionRunner
	repo      subscription.Repository
	tiering   *TieringService
	logger    logger.Interface
}

func NewAdvanceTiersUseCase(
	txManager TransactionRunner,
	repo subscription.Repository,
	tiering *TieringService,
	logger logger.Interface,
) *AdvanceTiersUseCase {
	return &AdvanceTiersUseCase{
		txManager: txManager,
		repo:      repo,
		tiering:   tiering,
		logger:    logger,
	}
}

// Execute returns the number of subscriptions it changed.
func (uc *AdvanceTiersUseCase) Execute(ctx context.Context, now time.Time) (int, error) {
	facilityIDs, err := uc.repo.ListLapsed(ctx, now, advanceBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list lapsed subscriptions: %w", err)
	}

	changed := 0
	for _, facilityID := range facilityIDs {
		if ctx.Err() != nil {
			break
		}
		ok, err := uc.advanceOne(ctx, facilityID, now)
		if err != nil {
			uc.logger.Errorw("failed to advance subscription", "facility_id", facilityID, "error", err)
			continue
		}
		if ok {
			changed++
		}
	}
	if changed > 0 {
		uc.logger.Infow("advanced lapsed subscriptions", "changed", changed, "lapsed", len(facilityIDs))
	}
	return changed, nil
}

func (uc *AdvanceTiersUseCase) advanceOne(ctx context.Context, facilityID string, now time.Time) (bool, error) {
	var (
		cs     *changeSet
		result subscription.AdvanceResult
	)
	err := uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cs = newChangeSet(facilityID)
		result = subscription.AdvanceResult{}
		sub, err := uc.repo.GetByFacilityIDForUpdate(ctx, facilityID)
		if err != nil || sub == nil {
			return err
		}
		tiers, err := uc.repo.ListTiers(ctx, sub.ID())
		if err != nil {
			return err
		}

		result = subscription.Advance(sub, tiers, now)
		if !result.Changed() {
			return nil
		}
		if err := uc.repo.Update(ctx, sub); err != nil {
			return err
		}
		if err := uc.repo.ReplaceTiers(ctx, sub.ID(), result.Tiers); err != nil {
			return err
		}

		if result.Repaired() {
			uc.logger.Errorw("discarded corrupt tier queue",
				"facility_id", facilityID,
				"discarded", describeTiers(result.Discarded),
				"error", result.Anomaly,
			)
			cs.repairs++
			cs.notify(CategoryTierQueueRepair,
				fmt.Sprintf("The tier queue of facility %s was corrupt and was discarded when its %s plan lapsed. Discarded tiers: %s. Restore paid time with an admin override if needed.",
					facilityID, sub.Plan(), describeTiers(result.Discarded)),
				facilityID)
		}
		if result.Expired {
			cs.notify(CategoryEnded,
				fmt.Sprintf("Your %s plan expired on %s.", sub.Plan(), sub.EndDate().Format(dateLayout)), "")
		}
		uc.logger.Infow("subscription advanced",
			"facility_id", facilityID,
			"promoted", result.Promoted,
			"expired", result.Expired,
			"plan", sub.Plan(),
			"end_date", sub.EndDate(),
		)
		return nil
	})
	if err != nil {
		return false, err
	}
	uc.tiering.publish(ctx, cs)
	return result.Changed(), nil
}
