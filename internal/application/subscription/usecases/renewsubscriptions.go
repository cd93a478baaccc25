package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

const (
	DefaultRenewalLookahead = 24 * time.Hour
	renewalBatchSize        = 500
)

// RenewSubscriptionsUseCase is one tick of the renewal scheduler. Each
// facility is an independent unit of work: one failing never rolls back or
// stops another.
type RenewSubscriptionsUseCase struct {
	txManager TransactionRunner
	repo      subscription.Repository
	tiering   *TieringService
	gateway   paymentgateway.Gateway
	metrics   MetricsRecorder
	currency  string
	lookahead time.Duration
	logger    logger.Interface
}

func NewRenewSubscriptionsUseCase(
	txManager TransactionRunner,
	repo subscription.Repository,
	tiering *TieringService,
	gateway paymentgateway.Gateway,
	metrics MetricsRecorder,
	currency string,
	lookahead time.Duration,
	logger logger.Interface,
) *RenewSubscriptionsUseCase {
	if lookahead <= 0 {
		lookahead = DefaultRenewalLookahead
	}
	return &RenewSubscriptionsUseCase{
		txManager: txManager,
		repo:      repo,
		tiering:   tiering,
		gateway:   gateway,
		metrics:   metrics,
		currency:  strings.ToLower(currency),
		lookahead: lookahead,
		logger:    logger,
	}
}

// Execute renews every subscription due within the lookahead window of now
// and returns how many were renewed.
func (uc *RenewSubscriptionsUseCase) Execute(ctx context.Context, now time.Time) (int, error) {
	horizon := biztime.Horizon(now, uc.lookahead)
	facilityIDs, err := uc.repo.ListDueForRenewal(ctx, horizon, renewalBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscriptions due for renewal: %w", err)
	}
	if len(facilityIDs) == 0 {
		return 0, nil
	}
	uc.logger.Infow("renewing subscriptions", "count", len(facilityIDs), "horizon", horizon)

	renewed := 0
	for _, facilityID := range facilityIDs {
		if err := ctx.Err(); err != nil {
			uc.logger.Warnw("renewal run interrupted", "renewed", renewed, "error", err)
			return renewed, nil
		}
		outcome, err := uc.renewOne(ctx, facilityID, horizon)
		if err != nil {
			uc.logger.Errorw("renewal failed", "facility_id", facilityID, "outcome", outcome, "error", err)
		}
		uc.metrics.RenewalAttempt(outcome)
		if outcome == OutcomeRenewed {
			renewed++
		}
	}
	return renewed, nil
}

func (uc *RenewSubscriptionsUseCase) renewOne(ctx context.Context, facilityID string, horizon time.Time) (string, error) {
	sub, err := uc.repo.GetByFacilityID(ctx, facilityID)
	if err != nil {
		return OutcomeError, err
	}
	if sub == nil || !sub.DueForRenewal(horizon) {
		return OutcomeSkipped, nil
	}

	plan := sub.Plan()
	period := sub.RenewalPeriod()
	days := period.Days()
	amount := vo.ChargeAmount(plan, period)
	if amount <= 0 {
		// Free plans are never charged; they run out and are ended by the
		// tier advance.
		uc.logger.Warnw("auto renew turned off for unpriced plan", "facility_id", facilityID, "plan", plan)
		if err := uc.disableAutoRenew(ctx, facilityID, plan, nil); err != nil {
			return OutcomeError, err
		}
		return OutcomeSkipped, nil
	}

	windowEnd := sub.EndDate()
	charge, err := uc.gateway.CreateCharge(ctx, paymentgateway.ChargeRequest{
		PaymentMethodRef: sub.PaymentMethodRef(),
		Amount:           amount,
		Currency:         uc.currency,
		Metadata: map[string]string{
			paymentgateway.MetaFacilityID:  facilityID,
			paymentgateway.MetaPlan:        plan.String(),
			paymentgateway.MetaDays:        strconv.Itoa(days),
			paymentgateway.MetaPeriod:      period.String(),
			paymentgateway.MetaAutoRenewal: "true",
		},
		OffSession:     true,
		IdempotencyKey: renewalIdempotencyKey(facilityID, windowEnd),
	})
	if err == nil && charge.Status != paymentgateway.ChargeSucceeded {
		err = fmt.Errorf("off-session charge %s ended in status %s", charge.ID, charge.Status)
	}
	if err != nil {
		if disableErr := uc.disableAutoRenew(ctx, facilityID, plan, err); disableErr != nil {
			return OutcomeError, fmt.Errorf("charge failed (%v) and auto renew could not be disabled: %w", err, disableErr)
		}
		return OutcomeFailed, err
	}

	autoRenew := true
	outcome, err := uc.grant(ctx, paymentApplication{
		FacilityID: facilityID,
		PaymentID:  charge.ID,
		Plan:       plan,
		Days:       days,
		Period:     period,
		AutoRenew:  &autoRenew,
		Trigger:    TriggerRenewal,
	}, renewalWindow{end: windowEnd, horizon: horizon})
	if err != nil {
		// The charge is captured; its webhook retries the grant.
		return OutcomeError, fmt.Errorf("charge %s captured but not applied: %w", charge.ID, err)
	}
	if outcome == OutcomeOverlap {
		return outcome, nil
	}

	uc.logger.Infow("subscription renewed", "facility_id", facilityID, "plan", plan, "days", days, "payment_id", charge.ID)
	return OutcomeRenewed, nil
}

// renewalWindow is the interval a renewal charge was made for.
type renewalWindow struct {
	end     time.Time
	horizon time.Time
}

// movedSince reports whether sub changed under the charge: another payment
// extended the interval, or renewal was turned off.
func (w renewalWindow) movedSince(sub *subscription.Subscription) bool {
	return !sub.DueForRenewal(w.horizon) || !sub.EndDate().Equal(w.end)
}

// grant applies a renewal charge under the facility's row lock. The snapshot
// the charge was made from is checked again first: a charge whose window was
// covered in the meantime is withheld for operators to refund.
func (uc *RenewSubscriptionsUseCase) grant(ctx context.Context, p paymentApplication, window renewalWindow) (string, error) {
	var (
		cs      *changeSet
		outcome string
	)
	err := uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cs = newChangeSet(p.FacilityID)
		outcome = OutcomeRenewed

		current, err := uc.repo.GetByFacilityIDForUpdate(ctx, p.FacilityID)
		if err != nil {
			return err
		}
		if current != nil && !current.HasPayment(p.PaymentID) && window.movedSince(current) {
			fresh, err := uc.tiering.withholdPayment(ctx, p, OutcomeOverlap)
			if err != nil || !fresh {
				return err
			}
			outcome = OutcomeOverlap
			uc.logger.Warnw("renewal charge overlaps a newer interval, not applied",
				"facility_id", p.FacilityID,
				"payment_id", p.PaymentID,
				"charged_for", window.end,
				"end_date", current.EndDate(),
				"auto_renew", current.AutoRenew(),
			)
			cs.notify(CategoryRenewalOverlap,
				fmt.Sprintf("Renewal charge %s of facility %s was captured after its %s interval ending %s had already changed. It was not applied and should be refunded.",
					p.PaymentID, p.FacilityID, p.Plan, window.end.Format(dateLayout)),
				p.PaymentID)
			return nil
		}

		sub, _, ok, err := uc.tiering.applyPayment(ctx, p, cs)
		if err != nil {
			return err
		}
		if ok {
			cs.notify(CategoryRenewed,
				fmt.Sprintf("Your %s plan was renewed for %d days. Active plan: %s until %s.",
					p.Plan, p.Days, sub.Plan(), sub.EndDate().Format(dateLayout)),
				p.PaymentID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	uc.tiering.publish(ctx, cs)
	return outcome, nil
}

// disableAutoRenew turns renewal off after a failed charge so the next tick
// does not try the same card again. The interval is left untouched. A nil
// cause turns renewal off without telling the facility.
func (uc *RenewSubscriptionsUseCase) disableAutoRenew(ctx context.Context, facilityID string, plan vo.PlanID, cause error) error {
	var cs *changeSet
	err := uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cs = newChangeSet(facilityID)
		sub, err := uc.repo.GetByFacilityIDForUpdate(ctx, facilityID)
		if err != nil {
			return err
		}
		if sub == nil || !sub.AutoRenew() {
			return nil
		}
		sub.SetAutoRenew(false)
		if err := uc.repo.Update(ctx, sub); err != nil {
			return err
		}
		if cause != nil {
			cs.notify(CategoryRenewalFailed,
				fmt.Sprintf("Automatic renewal of your %s plan failed and has been turned off: %s. The plan stays active until %s.",
					plan, failureReason(cause), sub.EndDate().Format(dateLayout)),
				"")
		}
		return nil
	})
	if err != nil {
		return err
	}
	uc.tiering.publish(ctx, cs)
	return nil
}

// renewalIdempotencyKey is stable for one renewal window, so a tick retried
// after a crash gets the original charge back instead of a second one.
func renewalIdempotencyKey(facilityID string, endDate time.Time) string {
	return fmt.Sprintf("renewal-%s-%d", facilityID, endDate.Unix())
}

func failureReason(err error) string {
	if ce, ok := paymentgateway.AsChargeError(err); ok {
		if ce.Kind == paymentgateway.ChargeErrorDeclined {
			return "the card was declined"
		}
		return "the payment provider could not process the charge"
	}
	return "the payment was not completed"
}
