package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

const dateLayout = "2006-01-02"

// appliedPaymentEventType marks ledger rows written when a payment was
// granted, whichever path granted it.
const appliedPaymentEventType = "payment_applied"

func appliedPaymentKey(paymentID string) string {
	return "applied:" + paymentID
}

// changeSet collects what a transaction announces once it has committed.
// It is rebuilt on every attempt so a retried transaction does not announce
// twice.
type changeSet struct {
	facilityID string
	triggers   []string
	repairs    int
	notes      []Notification
}

func newChangeSet(facilityID string) *changeSet {
	return &changeSet{facilityID: facilityID}
}

func (c *changeSet) notify(category NotificationCategory, message, referenceID string) {
	c.notes = append(c.notes, Notification{
		FacilityID:  c.facilityID,
		Category:    category,
		Message:     message,
		ReferenceID: referenceID,
	})
}

// paymentApplication is a captured payment to grant. Period, payment method
// and AutoRenew update the renewal terms when set.
type paymentApplication struct {
	FacilityID       string
	PaymentID        string
	Plan             vo.PlanID
	Days             int
	Period           vo.BillingPeriod
	PaymentMethodRef string
	AutoRenew        *bool
	Trigger          string
}

// TieringService runs the tiering engine against persisted state. Every
// method expects to run inside a transaction holding the facility's row.
type TieringService struct {
	repo     subscription.Repository
	events   subscription.ProcessedEventRepository
	cache    StatusCache
	notifier Notifier
	metrics  MetricsRecorder
	clock    func() time.Time
	logger   logger.Interface
}

func NewTieringService(
	repo subscription.Repository,
	events subscription.ProcessedEventRepository,
	cache StatusCache,
	notifier Notifier,
	metrics MetricsRecorder,
	logger logger.Interface,
) *TieringService {
	return &TieringService{
		repo:     repo,
		events:   events,
		cache:    cache,
		notifier: notifier,
		metrics:  metrics,
		clock:    biztime.NowUTC,
		logger:   logger,
	}
}

// SetClock replaces the time source.
func (s *TieringService) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *TieringService) Now() time.Time {
	return biztime.Normalize(s.clock())
}

// lockOrCreate returns the facility's subscription under a row lock,
// inserting an inactive record first when the facility has none. Two first
// purchases may both miss the lookup; the one whose insert loses waits on
// the winner's row instead of failing.
func (s *TieringService) lockOrCreate(ctx context.Context, facilityID string) (*subscription.Subscription, error) {
	sub, err := s.repo.GetByFacilityIDForUpdate(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	sub, err = subscription.NewSubscription(facilityID, s.Now())
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreateIfAbsent(ctx, sub)
	if err != nil {
		return nil, err
	}
	if created {
		return sub, nil
	}

	s.logger.Infow("subscription created concurrently, locking it", "facility_id", facilityID)
	sub, err = s.repo.GetByFacilityIDForUpdate(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription of facility %s conflicted on insert but was not found", facilityID)
	}
	return sub, nil
}

// apply folds (plan, days) into sub and its queue and writes both back.
func (s *TieringService) apply(ctx context.Context, sub *subscription.Subscription, plan vo.PlanID, days int, trigger string, cs *changeSet) ([]subscription.Tier, error) {
	existing, err := s.repo.ListTiers(ctx, sub.ID())
	if err != nil {
		return nil, err
	}

	result, err := subscription.ApplyPurchase(sub, existing, plan, days, s.Now())
	if err != nil {
		return nil, err
	}
	if result.Repaired() {
		s.logger.Errorw("discarded corrupt tier queue",
			"facility_id", sub.FacilityID(),
			"discarded", describeTiers(result.Discarded),
			"error", result.Anomaly,
		)
		cs.repairs++
		cs.notify(CategoryTierQueueRepair,
			fmt.Sprintf("The tier queue of facility %s was corrupt and has been rebuilt. Discarded tiers: %s. Restore paid time with an admin override if needed.",
				sub.FacilityID(), describeTiers(result.Discarded)),
			sub.FacilityID())
	}

	tiers := subscription.ConsolidateQueue(result.Tiers, sub.EndDate())
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceTiers(ctx, sub.ID(), tiers); err != nil {
		return nil, err
	}
	cs.triggers = append(cs.triggers, trigger)

	s.logger.Infow("tiering applied",
		"facility_id", sub.FacilityID(),
		"trigger", trigger,
		"plan", plan,
		"days", days,
		"active_plan", sub.Plan(),
		"end_date", sub.EndDate(),
		"tiers", len(tiers),
	)
	return tiers, nil
}

// applyPayment grants a captured payment exactly once across the purchase,
// confirmation, renewal and webhook paths. It reports false when the payment
// had already been granted.
func (s *TieringService) applyPayment(ctx context.Context, p paymentApplication, cs *changeSet) (*subscription.Subscription, []subscription.Tier, bool, error) {
	sub, err := s.lockOrCreate(ctx, p.FacilityID)
	if err != nil {
		return nil, nil, false, err
	}

	if sub.HasPayment(p.PaymentID) {
		tiers, err := s.repo.ListTiers(ctx, sub.ID())
		return sub, tiers, false, err
	}
	fresh, err := s.events.Record(ctx, &subscription.ProcessedEvent{
		EventID:    appliedPaymentKey(p.PaymentID),
		EventType:  appliedPaymentEventType,
		PaymentID:  p.PaymentID,
		FacilityID: p.FacilityID,
		Outcome:    p.Trigger,
	})
	if err != nil {
		return nil, nil, false, err
	}
	if !fresh {
		s.logger.Infow("payment already applied", "facility_id", p.FacilityID, "payment_id", p.PaymentID)
		tiers, err := s.repo.ListTiers(ctx, sub.ID())
		return sub, tiers, false, err
	}

	sub.SetRenewalTerms(p.Period, p.PaymentMethodRef)
	if p.AutoRenew != nil {
		sub.SetAutoRenew(*p.AutoRenew)
	}
	sub.RecordPayment(p.PaymentID)

	tiers, err := s.apply(ctx, sub, p.Plan, p.Days, p.Trigger, cs)
	if err != nil {
		return nil, nil, false, err
	}
	return sub, tiers, true, nil
}

// withholdPayment records a captured payment in the ledger without granting
// it, so no later path grants it either. It reports false when the payment
// had already been granted or withheld.
func (s *TieringService) withholdPayment(ctx context.Context, p paymentApplication, reason string) (bool, error) {
	return s.events.Record(ctx, &subscription.ProcessedEvent{
		EventID:    appliedPaymentKey(p.PaymentID),
		EventType:  appliedPaymentEventType,
		PaymentID:  p.PaymentID,
		FacilityID: p.FacilityID,
		Outcome:    reason,
	})
}

// publish announces a committed change set.
func (s *TieringService) publish(ctx context.Context, cs *changeSet) {
	if cs == nil {
		return
	}
	if cs.facilityID != "" {
		s.invalidate(ctx, cs.facilityID)
	}
	for _, trigger := range cs.triggers {
		s.metrics.TieringRun(trigger)
	}
	for i := 0; i < cs.repairs; i++ {
		s.metrics.TierQueueRepaired()
	}
	for _, n := range cs.notes {
		s.notifier.Notify(ctx, n)
	}
}

func (s *TieringService) invalidate(ctx context.Context, facilityID string) {
	if err := s.cache.Invalidate(ctx, facilityID); err != nil {
		s.logger.Warnw("failed to invalidate status cache", "facility_id", facilityID, "error", err)
	}
}

func describeTiers(tiers []subscription.Tier) string {
	if len(tiers) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		parts = append(parts, fmt.Sprintf("%s %s..%s", t.Plan, t.StartDate.Format(dateLayout), t.EndDate.Format(dateLayout)))
	}
	return strings.Join(parts, ", ")
}
