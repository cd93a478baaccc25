package usecases

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type GetStatusUseCase struct {
	repo    subscription.Repository
	cache   StatusCache
	tiering *TieringService
	group   singleflight.Group
	logger  logger.Interface
}

func NewGetStatusUseCase(
	repo subscription.Repository,
	cache StatusCache,
	tiering *TieringService,
	logger logger.Interface,
) *GetStatusUseCase {
	return &GetStatusUseCase{
		repo:    repo,
		cache:   cache,
		tiering: tiering,
		logger:  logger,
	}
}

// Execute returns the facility's status. Concurrent misses for the same
// facility share one database read.
func (uc *GetStatusUseCase) Execute(ctx context.Context, facilityID string) (*dto.StatusDTO, error) {
	if facilityID == "" {
		return nil, errors.NewValidationError("facility id is required")
	}

	cached, version, err := uc.cache.Get(ctx, facilityID)
	if err != nil {
		uc.logger.Warnw("status cache read failed", "facility_id", facilityID, "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	v, err, _ := uc.group.Do(facilityID, func() (any, error) {
		return uc.load(ctx, facilityID, version)
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.StatusDTO), nil
}

// load reads the status from the database and caches it unless the facility
// was invalidated after version was read.
func (uc *GetStatusUseCase) load(ctx context.Context, facilityID string, version int64) (*dto.StatusDTO, error) {
	sub, err := uc.repo.GetByFacilityID(ctx, facilityID)
	if err != nil {
		uc.logger.Errorw("failed to load subscription", "facility_id", facilityID, "error", err)
		return nil, errors.NewInternalError("failed to load subscription")
	}
	if sub == nil {
		return dto.EmptyStatus(facilityID), nil
	}

	tiers, err := uc.repo.ListTiers(ctx, sub.ID())
	if err != nil {
		uc.logger.Errorw("failed to load tier queue", "facility_id", facilityID, "error", err)
		return nil, errors.NewInternalError("failed to load subscription")
	}

	now := uc.tiering.Now()
	if len(tiers) > 0 && subscription.ValidateQueue(tiers) != nil {
		uc.logger.Warnw("tier queue is corrupt, reporting it empty", "facility_id", facilityID, "tiers", describeTiers(tiers))
	}
	status := dto.ToStatusDTO(sub, subscription.CurrentView(sub, tiers, now), now)

	stored, err := uc.cache.Set(ctx, facilityID, version, status)
	if err != nil {
		uc.logger.Warnw("status cache write failed", "facility_id", facilityID, "error", err)
	} else if !stored {
		uc.logger.Debugw("status changed while loading, not cached", "facility_id", facilityID)
	}
	return status, nil
}
