package subscription

import (
	"fmt"
	"time"

	"github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

// TrialDays is the length of the interval granted at registration.
const TrialDays = 30

// Subscription is the per-facility aggregate root: the billing interval in
// effect now plus the renewal settings. Queued intervals live in the Tier
// Queue owned by the same facility.
type Subscription struct {
	id               uint
	facilityID       string
	plan             valueobjects.PlanID
	startDate        time.Time
	endDate          time.Time
	isActive         bool
	autoRenew        bool
	renewalPeriod    valueobjects.BillingPeriod
	paymentMethodRef string
	lastPaymentID    string
	disputed         bool
	originalPlan     valueobjects.PlanID
	originalPlanEnd  *time.Time
	version          int
	createdAt        time.Time
	updatedAt        time.Time
}

// NewSubscription creates an inactive record for a facility that has never
// held a plan. The Tiering Engine activates it.
func NewSubscription(facilityID string, now time.Time) (*Subscription, error) {
	if facilityID == "" {
		return nil, ErrMissingFacility
	}
	now = biztime.Normalize(now)
	return &Subscription{
		facilityID:    facilityID,
		renewalPeriod: valueobjects.BillingPeriodOneMonth,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// NewTrialSubscription creates the record a facility receives at
// registration: an active TRIAL interval starting now.
func NewTrialSubscription(facilityID string, now time.Time) (*Subscription, error) {
	s, err := NewSubscription(facilityID, now)
	if err != nil {
		return nil, err
	}
	start := biztime.Normalize(now)
	s.activate(valueobjects.PlanTrial, start, biztime.EndForDays(start, TrialDays))
	return s, nil
}

// ReconstructSubscription rebuilds an aggregate from persistence.
func ReconstructSubscription(
	id uint,
	facilityID string,
	plan valueobjects.PlanID,
	startDate, endDate time.Time,
	isActive, autoRenew bool,
	renewalPeriod valueobjects.BillingPeriod,
	paymentMethodRef, lastPaymentID string,
	disputed bool,
	originalPlan valueobjects.PlanID,
	originalPlanEnd *time.Time,
	version int,
	createdAt, updatedAt time.Time,
) (*Subscription, error) {
	if id == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if facilityID == "" {
		return nil, ErrMissingFacility
	}
	if originalPlanEnd != nil {
		t := biztime.Normalize(*originalPlanEnd)
		originalPlanEnd = &t
	}
	return &Subscription{
		id:               id,
		facilityID:       facilityID,
		plan:             plan,
		startDate:        biztime.Normalize(startDate),
		endDate:          biztime.Normalize(endDate),
		isActive:         isActive,
		autoRenew:        autoRenew,
		renewalPeriod:    renewalPeriod,
		paymentMethodRef: paymentMethodRef,
		lastPaymentID:    lastPaymentID,
		disputed:         disputed,
		originalPlan:     originalPlan,
		originalPlanEnd:  originalPlanEnd,
		version:          version,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}, nil
}

func (s *Subscription) ID() uint                                  { return s.id }
func (s *Subscription) FacilityID() string                        { return s.facilityID }
func (s *Subscription) Plan() valueobjects.PlanID                 { return s.plan }
func (s *Subscription) StartDate() time.Time                      { return s.startDate }
func (s *Subscription) EndDate() time.Time                        { return s.endDate }
func (s *Subscription) IsActive() bool                            { return s.isActive }
func (s *Subscription) AutoRenew() bool                           { return s.autoRenew }
func (s *Subscription) RenewalPeriod() valueobjects.BillingPeriod { return s.renewalPeriod }
func (s *Subscription) PaymentMethodRef() string                  { return s.paymentMethodRef }
func (s *Subscription) LastPaymentID() string                     { return s.lastPaymentID }
func (s *Subscription) IsDisputed() bool                          { return s.disputed }
func (s *Subscription) OriginalPlan() valueobjects.PlanID         { return s.originalPlan }
func (s *Subscription) OriginalPlanEnd() *time.Time               { return s.originalPlanEnd }
func (s *Subscription) Version() int                              { return s.version }
func (s *Subscription) CreatedAt() time.Time                      { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time                      { return s.updatedAt }

// SetID is called by the repository after insert.
func (s *Subscription) SetID(id uint) error {
	if s.id != 0 {
		return fmt.Errorf("subscription ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("subscription ID cannot be zero")
	}
	s.id = id
	return nil
}

// IsValid reports whether the facility is entitled to service at now.
func (s *Subscription) IsValid(now time.Time) bool {
	return s.isActive && !biztime.Expired(s.endDate, now)
}

// DaysRemaining counts the days left in the active interval, inclusive of
// today. It is 0 when the subscription is not valid.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.IsValid(now) {
		return 0
	}
	return biztime.DaysBetween(now, s.endDate)
}

// Limits resolves the resource ceilings of the plan in effect. A record
// that is not valid grants nothing.
func (s *Subscription) Limits(now time.Time) valueobjects.Limits {
	if !s.IsValid(now) {
		return valueobjects.Limits{}
	}
	return s.plan.Limits()
}

// DueForRenewal reports whether the renewal scheduler should charge this
// subscription when looking ahead to horizon.
func (s *Subscription) DueForRenewal(horizon time.Time) bool {
	return s.isActive && s.autoRenew && s.paymentMethodRef != "" && !s.endDate.After(biztime.Normalize(horizon))
}

// running reports whether the active interval can still contribute days.
func (s *Subscription) running(now time.Time) bool {
	return s.isActive && !s.endDate.Before(s.startDate) && s.endDate.After(now)
}

func (s *Subscription) activate(plan valueobjects.PlanID, start, end time.Time) {
	s.plan = plan
	s.startDate = biztime.Normalize(start)
	s.endDate = biztime.Normalize(end)
	s.isActive = true
	s.touch()
}

func (s *Subscription) rememberOriginal(plan valueobjects.PlanID, end time.Time) {
	end = biztime.Normalize(end)
	s.originalPlan = plan
	s.originalPlanEnd = &end
}

func (s *Subscription) SetAutoRenew(enabled bool) {
	if s.autoRenew == enabled {
		return
	}
	s.autoRenew = enabled
	s.touch()
}

// SetRenewalTerms stores the period and payment method used by the next
// renewal. An empty ref leaves the stored one in place.
func (s *Subscription) SetRenewalTerms(period valueobjects.BillingPeriod, paymentMethodRef string) {
	if period.IsValid() {
		s.renewalPeriod = period
	}
	if paymentMethodRef != "" {
		s.paymentMethodRef = paymentMethodRef
	}
	s.touch()
}

// RecordPayment stores the gateway payment that produced the current state.
func (s *Subscription) RecordPayment(paymentID string) {
	s.lastPaymentID = paymentID
	s.touch()
}

// HasPayment reports whether paymentID has already been applied.
func (s *Subscription) HasPayment(paymentID string) bool {
	return paymentID != "" && s.lastPaymentID == paymentID
}

// Deactivate clears the active flag without touching the interval.
func (s *Subscription) Deactivate() {
	if !s.isActive {
		return
	}
	s.isActive = false
	s.touch()
}

func (s *Subscription) MarkDisputed() {
	if s.disputed {
		return
	}
	s.disputed = true
	s.touch()
}

// End deactivates the subscription, collapses its end date to now and
// forgets the original plan. The caller clears the Tier Queue.
func (s *Subscription) End(now time.Time) {
	now = biztime.Normalize(now)
	s.isActive = false
	s.endDate = now
	if s.startDate.After(now) {
		s.startDate = now
	}
	s.originalPlan = ""
	s.originalPlanEnd = nil
	s.touch()
}

func (s *Subscription) touch() {
	s.version++
	s.updatedAt = biztime.NowUTC()
}
