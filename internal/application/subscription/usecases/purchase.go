package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type PurchaseCommand struct {
	FacilityID       string
	UserID           string
	Plan             string
	Period           string
	PaymentMethodRef string
	AutoRenew        bool
	// IdempotencyKey is forwarded to the gateway so a retried request does
	// not charge twice.
	IdempotencyKey string
}

type PurchaseUseCase struct {
	txManager TransactionRunner
	tiering   *TieringService
	gateway   paymentgateway.Gateway
	currency  string
	logger    logger.Interface
}

func NewPurchaseUseCase(
	txManager TransactionRunner,
	tiering *TieringService,
	gateway paymentgateway.Gateway,
	currency string,
	logger logger.Interface,
) *PurchaseUseCase {
	return &PurchaseUseCase{
		txManager: txManager,
		tiering:   tiering,
		gateway:   gateway,
		currency:  strings.ToLower(currency),
		logger:    logger,
	}
}

// Execute charges the stored payment method for plan over period and, once
// the charge succeeds, runs the tiering engine. A charge that still needs
// customer action changes nothing and comes back as payment_pending.
func (uc *PurchaseUseCase) Execute(ctx context.Context, cmd PurchaseCommand) (*dto.PurchaseResultDTO, error) {
	plan, period, err := uc.validate(cmd)
	if err != nil {
		uc.logger.Warnw("invalid purchase command", "facility_id", cmd.FacilityID, "error", err)
		return nil, err
	}

	amount := vo.ChargeAmount(plan, period)
	charge, err := uc.gateway.CreateCharge(ctx, paymentgateway.ChargeRequest{
		PaymentMethodRef: cmd.PaymentMethodRef,
		Amount:           amount,
		Currency:         uc.currency,
		Metadata:         chargeMetadata(cmd.FacilityID, cmd.UserID, plan, period, cmd.AutoRenew),
		IdempotencyKey:   cmd.IdempotencyKey,
	})
	if err != nil {
		uc.logger.Warnw("purchase charge failed", "facility_id", cmd.FacilityID, "plan", plan, "error", err)
		return nil, translateError(err, "failed to charge payment method")
	}

	result := &dto.PurchaseResultDTO{
		PaymentID: charge.ID,
		Amount:    amount,
		Currency:  uc.currency,
	}
	switch charge.Status {
	case paymentgateway.ChargeSucceeded:
	case paymentgateway.ChargeRequiresAction, paymentgateway.ChargeProcessing:
		uc.logger.Infow("purchase awaiting payment completion",
			"facility_id", cmd.FacilityID, "payment_id", charge.ID, "status", charge.Status)
		result.Status = dto.PurchasePaymentPending
		result.ClientSecret = charge.ClientSecret
		return result, nil
	default:
		uc.logger.Warnw("purchase charge not completed", "facility_id", cmd.FacilityID, "payment_id", charge.ID, "status", charge.Status)
		return nil, errors.NewGatewayError("payment was not completed", string(charge.Status))
	}

	autoRenew := cmd.AutoRenew
	status, err := grantPayment(ctx, uc.txManager, uc.tiering, paymentApplication{
		FacilityID:       cmd.FacilityID,
		PaymentID:        charge.ID,
		Plan:             plan,
		Days:             period.Days(),
		Period:           period,
		PaymentMethodRef: cmd.PaymentMethodRef,
		AutoRenew:        &autoRenew,
		Trigger:          TriggerPurchase,
	})
	if err != nil {
		// The charge is captured; the webhook for it retries the grant.
		uc.logger.Errorw("failed to apply paid purchase",
			"facility_id", cmd.FacilityID, "payment_id", charge.ID, "plan", plan, "error", err)
		return nil, translateError(err, "failed to apply purchase")
	}

	result.Status = dto.PurchaseApplied
	result.Subscription = status
	return result, nil
}

func (uc *PurchaseUseCase) validate(cmd PurchaseCommand) (vo.PlanID, vo.BillingPeriod, error) {
	if cmd.FacilityID == "" {
		return "", "", errors.NewValidationError("facility id is required")
	}
	plan, err := vo.ParsePlanID(cmd.Plan)
	if err != nil {
		return "", "", errors.NewValidationError(err.Error())
	}
	if plan == vo.PlanTrial {
		return "", "", errors.NewValidationError("trial plan cannot be purchased")
	}
	period, err := vo.ParseBillingPeriod(cmd.Period)
	if err != nil {
		return "", "", errors.NewValidationError(err.Error())
	}
	if cmd.PaymentMethodRef == "" {
		return "", "", errors.NewValidationError("payment method is required")
	}
	return plan, period, nil
}

// grantPayment applies a captured payment in its own transaction and returns
// the resulting status.
func grantPayment(ctx context.Context, txManager TransactionRunner, tiering *TieringService, p paymentApplication) (*dto.StatusDTO, error) {
	var (
		cs     *changeSet
		status *dto.StatusDTO
	)
	err := txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cs = newChangeSet(p.FacilityID)
		sub, tiers, applied, err := tiering.applyPayment(ctx, p, cs)
		if err != nil {
			return err
		}
		if applied {
			cs.notify(CategoryPurchased, purchasedMessage(sub, p.Plan, p.Days), p.PaymentID)
		}
		now := tiering.Now()
		status = dto.ToStatusDTO(sub, subscription.CurrentView(sub, tiers, now), now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	tiering.publish(ctx, cs)
	return status, nil
}

func chargeMetadata(facilityID, userID string, plan vo.PlanID, period vo.BillingPeriod, autoRenew bool) map[string]string {
	md := map[string]string{
		paymentgateway.MetaFacilityID: facilityID,
		paymentgateway.MetaPlan:       plan.String(),
		paymentgateway.MetaDays:       strconv.Itoa(period.Days()),
		paymentgateway.MetaPeriod:     period.String(),
		paymentgateway.MetaAutoRenew:  strconv.FormatBool(autoRenew),
	}
	if userID != "" {
		md[paymentgateway.MetaUserID] = userID
	}
	return md
}

func purchasedMessage(sub *subscription.Subscription, plan vo.PlanID, days int) string {
	return fmt.Sprintf("Your purchase of %d days of the %s plan has been applied. Active plan: %s until %s.",
		days, plan, sub.Plan(), sub.EndDate().Format(dateLayout))
}
