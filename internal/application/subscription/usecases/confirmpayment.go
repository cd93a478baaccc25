package usecases

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type ConfirmPaymentCommand struct {
	FacilityID string
	PaymentID  string
}

type ConfirmPaymentUseCase struct {
	txManager TransactionRunner
	tiering   *TieringService
	gateway   paymentgateway.Gateway
	logger    logger.Interface
}

func NewConfirmPaymentUseCase(
	txManager TransactionRunner,
	tiering *TieringService,
	gateway paymentgateway.Gateway,
	logger logger.Interface,
) *ConfirmPaymentUseCase {
	return &ConfirmPaymentUseCase{
		txManager: txManager,
		tiering:   tiering,
		gateway:   gateway,
		logger:    logger,
	}
}

// Execute finishes a purchase that returned payment_pending. It goes
// through the same once-only grant as the payment webhook, so whichever
// arrives second is a no-op.
func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, cmd ConfirmPaymentCommand) (*dto.PurchaseResultDTO, error) {
	if cmd.FacilityID == "" || cmd.PaymentID == "" {
		return nil, errors.NewValidationError("facility id and payment id are required")
	}

	charge, err := uc.gateway.GetCharge(ctx, cmd.PaymentID)
	if err != nil {
		if stderrors.Is(err, paymentgateway.ErrChargeNotFound) {
			return nil, errors.NewNotFoundError("payment not found")
		}
		uc.logger.Warnw("failed to retrieve payment", "facility_id", cmd.FacilityID, "payment_id", cmd.PaymentID, "error", err)
		return nil, translateError(err, "failed to retrieve payment")
	}

	p, err := paymentFromMetadata(charge.Metadata)
	if err != nil || p.FacilityID != cmd.FacilityID {
		uc.logger.Warnw("payment does not belong to facility",
			"facility_id", cmd.FacilityID, "payment_id", cmd.PaymentID, "error", err)
		return nil, errors.NewNotFoundError("payment not found")
	}

	result := &dto.PurchaseResultDTO{
		PaymentID: charge.ID,
		Amount:    charge.Amount,
		Currency:  charge.Currency,
	}
	switch charge.Status {
	case paymentgateway.ChargeSucceeded:
	case paymentgateway.ChargeRequiresAction, paymentgateway.ChargeProcessing:
		result.Status = dto.PurchasePaymentPending
		result.ClientSecret = charge.ClientSecret
		return result, nil
	default:
		return nil, errors.NewGatewayError("payment was not completed", string(charge.Status))
	}

	p.PaymentID = charge.ID
	if p.PaymentMethodRef == "" {
		p.PaymentMethodRef = charge.PaymentMethodRef
	}
	p.Trigger = TriggerConfirm
	status, err := grantPayment(ctx, uc.txManager, uc.tiering, p)
	if err != nil {
		uc.logger.Errorw("failed to apply confirmed payment", "facility_id", cmd.FacilityID, "payment_id", charge.ID, "error", err)
		return nil, translateError(err, "failed to apply payment")
	}

	result.Status = dto.PurchaseApplied
	result.Subscription = status
	return result, nil
}

// paymentFromMetadata recovers what a charge paid for from the metadata
// stamped on it at creation. Days falls back to the period's length.
func paymentFromMetadata(md map[string]string) (paymentApplication, error) {
	p := paymentApplication{FacilityID: md[paymentgateway.MetaFacilityID]}
	if p.FacilityID == "" {
		return p, fmt.Errorf("metadata has no %s", paymentgateway.MetaFacilityID)
	}

	plan, err := vo.ParsePlanID(md[paymentgateway.MetaPlan])
	if err != nil {
		return p, err
	}
	p.Plan = plan

	if raw, ok := md[paymentgateway.MetaPeriod]; ok && raw != "" {
		period, err := vo.ParseBillingPeriod(raw)
		if err != nil {
			return p, err
		}
		p.Period = period
	}

	switch raw := md[paymentgateway.MetaDays]; {
	case raw != "":
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return p, fmt.Errorf("invalid %s %q", paymentgateway.MetaDays, raw)
		}
		p.Days = days
	case p.Period != "":
		p.Days = p.Period.Days()
	default:
		return p, fmt.Errorf("metadata has neither %s nor %s", paymentgateway.MetaDays, paymentgateway.MetaPeriod)
	}

	if raw, ok := md[paymentgateway.MetaAutoRenew]; ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			p.AutoRenew = &v
		}
	}
	return p, nil
}
