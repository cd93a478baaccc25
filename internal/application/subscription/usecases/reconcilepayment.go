package usecases

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

var errDuplicateEvent = stderrors.New("gateway event already processed")

// ReconcilePaymentUseCase applies asynchronous gateway events. Deliveries are
// at least once; every handler is a no-op on a repeat.
type ReconcilePaymentUseCase struct {
	txManager TransactionRunner
	repo      subscription.Repository
	events    subscription.ProcessedEventRepository
	tiering   *TieringService
	gateway   paymentgateway.Gateway
	dedup     EventDeduplicator
	metrics   MetricsRecorder
	logger    logger.Interface
}

func NewReconcilePaymentUseCase(
	txManager TransactionRunner,
	repo subscription.Repository,
	events subscription.ProcessedEventRepository,
	tiering *TieringService,
	gateway paymentgateway.Gateway,
	dedup EventDeduplicator,
	metrics MetricsRecorder,
	logger logger.Interface,
) *ReconcilePaymentUseCase {
	return &ReconcilePaymentUseCase{
		txManager: txManager,
		repo:      repo,
		events:    events,
		tiering:   tiering,
		gateway:   gateway,
		dedup:     dedup,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleWebhook verifies a raw delivery and applies it. Event types the
// engine does not consume are acknowledged.
func (uc *ReconcilePaymentUseCase) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := uc.gateway.ParseEvent(payload, signature)
	if err != nil {
		switch {
		case stderrors.Is(err, paymentgateway.ErrUnsupportedEvent):
			uc.logger.Debugw("ignoring unsupported gateway event", "error", err)
			uc.metrics.GatewayEvent("unsupported", OutcomeIgnored)
			return nil
		case stderrors.Is(err, paymentgateway.ErrInvalidSignature):
			uc.metrics.GatewayEvent("unverified", OutcomeRejected)
			return errors.NewUnauthorizedError("invalid webhook signature")
		default:
			uc.logger.Warnw("malformed gateway event", "error", err)
			uc.metrics.GatewayEvent("malformed", OutcomeRejected)
			return errors.NewBadRequestError("malformed webhook payload")
		}
	}
	return uc.Execute(ctx, ev)
}

// Execute applies one verified event. The ledger insert, the row lock and
// the mutation share one transaction, so racing duplicates serialize and
// only the first one mutates.
func (uc *ReconcilePaymentUseCase) Execute(ctx context.Context, ev *paymentgateway.Event) error {
	if ev == nil || ev.ID == "" || ev.PaymentID == "" {
		return errors.NewValidationError("event id and payment id are required")
	}
	log := uc.logger.With("event_id", ev.ID, "event_type", ev.Type, "payment_id", ev.PaymentID)

	seen, err := uc.dedup.Seen(ctx, ev.ID)
	if err != nil {
		log.Warnw("event dedup lookup failed", "error", err)
	}
	if seen {
		uc.metrics.GatewayEvent(string(ev.Type), OutcomeDuplicate)
		return nil
	}

	var (
		cs      *changeSet
		outcome string
	)
	err = uc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cs = newChangeSet("")
		exists, err := uc.events.Exists(ctx, ev.ID)
		if err != nil {
			return err
		}
		if exists {
			return errDuplicateEvent
		}

		outcome, err = uc.handle(ctx, ev, cs, log)
		if err != nil {
			return err
		}

		fresh, err := uc.events.Record(ctx, &subscription.ProcessedEvent{
			EventID:    ev.ID,
			EventType:  string(ev.Type),
			PaymentID:  ev.PaymentID,
			FacilityID: cs.facilityID,
			Outcome:    outcome,
			Payload:    ev.Payload,
		})
		if err != nil {
			return err
		}
		if !fresh {
			return errDuplicateEvent
		}
		return nil
	})

	switch {
	case stderrors.Is(err, errDuplicateEvent):
		log.Infow("gateway event already processed")
		outcome = OutcomeDuplicate
	case err != nil:
		log.Errorw("failed to apply gateway event", "error", err)
		uc.metrics.GatewayEvent(string(ev.Type), OutcomeError)
		return translateError(err, "failed to apply gateway event")
	default:
		uc.tiering.publish(ctx, cs)
	}

	if err := uc.dedup.MarkSeen(ctx, ev.ID); err != nil {
		log.Warnw("failed to remember processed event", "error", err)
	}
	uc.metrics.GatewayEvent(string(ev.Type), outcome)
	return nil
}

func (uc *ReconcilePaymentUseCase) handle(ctx context.Context, ev *paymentgateway.Event, cs *changeSet, log logger.Interface) (string, error) {
	switch ev.Type {
	case paymentgateway.EventPaymentSucceeded:
		return uc.onSucceeded(ctx, ev, cs, log)
	case paymentgateway.EventPaymentFailed:
		return uc.onFailed(ctx, ev, cs, log)
	case paymentgateway.EventRefunded:
		return uc.onRefunded(ctx, ev, cs, log)
	case paymentgateway.EventDisputed:
		return uc.onDisputed(ctx, ev, cs, log)
	}
	log.Warnw("unhandled gateway event type")
	return OutcomeIgnored, nil
}

func (uc *ReconcilePaymentUseCase) onSucceeded(ctx context.Context, ev *paymentgateway.Event, cs *changeSet, log logger.Interface) (string, error) {
	sub, err := uc.repo.GetByLastPaymentIDForUpdate(ctx, ev.PaymentID)
	if err != nil {
		return "", err
	}
	if sub != nil {
		cs.facilityID = sub.FacilityID()
		return OutcomeDuplicate, nil
	}

	p, err := paymentFromMetadata(ev.Metadata)
	if err != nil {
		// Redelivery cannot fix bad metadata; record it and acknowledge.
		log.Errorw("payment event cannot be routed", "error", err)
		return OutcomeRejected, nil
	}
	cs.facilityID = p.FacilityID
	p.PaymentID = ev.PaymentID
	p.PaymentMethodRef = ev.PaymentMethodRef
	p.Trigger = TriggerWebhook

	sub, _, applied, err := uc.tiering.applyPayment(ctx, p, cs)
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeDuplicate, nil
	}
	cs.notify(CategoryPurchased, purchasedMessage(sub, p.Plan, p.Days), ev.PaymentID)
	return OutcomeApplied, nil
}

// onFailed deactivates only a subscription that this very payment produced.
// A failure never creates a record.
func (uc *ReconcilePaymentUseCase) onFailed(ctx context.Context, ev *paymentgateway.Event, cs *changeSet, log logger.Interface) (string, error) {
	sub, err := uc.repo.GetByLastPaymentIDForUpdate(ctx, ev.PaymentID)
	if err != nil {
		return "", err
	}
	if sub == nil || !sub.IsActive() {
		return OutcomeIgnored, nil
	}
	cs.facilityID = sub.FacilityID()
	sub.Deactivate()
	if err := uc.repo.Update(ctx, sub); err != nil {
		return "", err
	}
	log.Warnw("subscription deactivated after payment failure", "facility_id", sub.FacilityID())
	return OutcomeApplied, nil
}

// onRefunded deactivates on a full refund. Partial refunds do not touch the
// interval; operators decide on any adjustment.
func (uc *ReconcilePaymentUseCase) onRefunded(ctx context.Context, ev *paymentgateway.Event, cs *changeSet, log logger.Interface) (string, error) {
	sub, err := uc.repo.GetByLastPaymentIDForUpdate(ctx, ev.PaymentID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		log.Infow("refund does not match the current payment of any subscription")
		return OutcomeIgnored, nil
	}
	cs.facilityID = sub.FacilityID()

	if !ev.FullRefund {
		log.Warnw("partial refund left the interval unchanged",
			"facility_id", sub.FacilityID(), "amount", ev.Amount, "amount_refunded", ev.AmountRefunded)
		cs.notify(CategoryPartialRefund,
			fmt.Sprintf("Payment %s of facility %s was partially refunded (%d of %d). The %s interval was not changed.",
				ev.PaymentID, sub.FacilityID(), ev.AmountRefunded, ev.Amount, sub.Plan()),
			ev.PaymentID)
		return OutcomeIgnored, nil
	}

	sub.Deactivate()
	if err := uc.repo.Update(ctx, sub); err != nil {
		return "", err
	}
	cs.notify(CategoryRefunded,
		fmt.Sprintf("Payment %s of facility %s was fully refunded. The %s subscription has been deactivated.",
			ev.PaymentID, sub.FacilityID(), sub.Plan()),
		ev.PaymentID)
	return OutcomeApplied, nil
}

// onDisputed flags the subscription without deactivating it.
func (uc *ReconcilePaymentUseCase) onDisputed(ctx context.Context, ev *paymentgateway.Event, cs *changeSet, log logger.Interface) (string, error) {
	sub, err := uc.repo.GetByLastPaymentIDForUpdate(ctx, ev.PaymentID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		log.Infow("dispute does not match the current payment of any subscription")
		return OutcomeIgnored, nil
	}
	cs.facilityID = sub.FacilityID()
	if sub.IsDisputed() {
		return OutcomeDuplicate, nil
	}

	sub.MarkDisputed()
	if err := uc.repo.Update(ctx, sub); err != nil {
		return "", err
	}
	cs.notify(CategoryDisputed,
		fmt.Sprintf("A dispute (%s, reason: %s) was opened on payment %s of facility %s.",
			ev.DisputeID, ev.DisputeReason, ev.PaymentID, sub.FacilityID()),
		ev.PaymentID)
	return OutcomeApplied, nil
}
