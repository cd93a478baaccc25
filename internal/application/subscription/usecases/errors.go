package usecases

import (
	stderrors "errors"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
)

// translateError maps domain and gateway failures onto the application
// error taxonomy. Anything unrecognised becomes an internal error carrying
// fallback.
func translateError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	if errors.GetAppError(err) != nil {
		return err
	}

	switch {
	case stderrors.Is(err, subscription.ErrMissingFacility),
		stderrors.Is(err, subscription.ErrNonPositiveDays),
		stderrors.Is(err, vo.ErrInvalidPlan),
		stderrors.Is(err, vo.ErrInvalidBillingPeriod):
		return errors.NewValidationError(err.Error())
	case stderrors.Is(err, subscription.ErrTierQueueCorrupt):
		return errors.NewConsistencyError("tier queue is inconsistent", err.Error())
	case stderrors.Is(err, subscription.ErrSubscriptionNotFound):
		return errors.NewNotFoundError("subscription not found")
	case stderrors.Is(err, subscription.ErrSubscriptionAlreadyEnded):
		return errors.NewConflictError("subscription already ended")
	}

	if ce, ok := paymentgateway.AsChargeError(err); ok {
		if ce.Kind == paymentgateway.ChargeErrorDeclined {
			return errors.NewGatewayError("payment declined", ce.Code)
		}
		return errors.NewGatewayError("payment gateway unavailable", string(ce.Kind))
	}
	return errors.NewInternalError(fallback, err.Error())
}
