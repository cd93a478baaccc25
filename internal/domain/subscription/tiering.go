package subscription

import (
	"fmt"
	"sort"
	"time"

	"github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

// source ranks candidates of equal priority: the interval already running
// keeps running, queued tiers come next, the new purchase last.
type source int

const (
	sourceCurrent source = iota
	sourceTier
	sourcePurchase
)

type candidate struct {
	plan   valueobjects.PlanID
	days   int
	source source
	merged bool
}

// TieringResult is the outcome of one engine run. The subscription passed
// in has already been updated; Tiers replaces the whole persisted queue.
type TieringResult struct {
	Tiers []Tier
	// Discarded holds the persisted queue when it failed validation and was
	// dropped instead of built upon.
	Discarded []Tier
	Anomaly   error
}

// Repaired reports whether the persisted queue had to be discarded.
func (r *TieringResult) Repaired() bool {
	return r.Anomaly != nil
}

// ApplyPurchase folds a newly bought (plan, days) into the facility's state.
// The highest-priority live entitlement becomes the active interval and the
// rest are queued back to back behind it, one tier per plan.
func ApplyPurchase(sub *Subscription, existing []Tier, plan valueobjects.PlanID, days int, now time.Time) (*TieringResult, error) {
	if sub == nil || sub.facilityID == "" {
		return nil, ErrMissingFacility
	}
	if !plan.IsValid() {
		return nil, fmt.Errorf("%w: %q", valueobjects.ErrInvalidPlan, plan)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrNonPositiveDays, days)
	}
	now = biztime.Normalize(now)

	result := &TieringResult{}
	if err := ValidateQueue(existing); err != nil {
		result.Anomaly = err
		result.Discarded = sortByOrder(existing)
		existing = nil
	}

	cands := make([]candidate, 0, len(existing)+2)
	currentRunning := sub.running(now)
	if currentRunning {
		cands = append(cands, candidate{plan: sub.plan, days: biztime.DaysBetween(now, sub.endDate), source: sourceCurrent})
	}
	for _, t := range sortByOrder(existing) {
		if t.EndDate.After(now) {
			cands = append(cands, candidate{plan: t.Plan, days: t.Days(), source: sourceTier})
		}
	}
	cands = append(cands, candidate{plan: plan, days: days, source: sourcePurchase})

	cands = mergeSamePlan(cands)
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].plan.Priority() > cands[j].plan.Priority()
	})

	winner := cands[0]
	prevPlan, prevEnd := sub.plan, sub.endDate
	switch {
	case winner.source == sourceCurrent && !winner.merged:
		sub.activate(sub.plan, sub.startDate, sub.endDate)
	case winner.source == sourceCurrent:
		sub.activate(winner.plan, sub.startDate, biztime.EndForDays(now, winner.days))
	default:
		sub.activate(winner.plan, now, biztime.EndForDays(now, winner.days))
	}
	if currentRunning && winner.plan != prevPlan {
		sub.rememberOriginal(prevPlan, prevEnd)
	}

	tiers := make([]Tier, 0, len(cands)-1)
	cursor := sub.endDate
	for i, c := range cands[1:] {
		end := biztime.EndForDays(cursor, c.days)
		tiers = append(tiers, Tier{Plan: c.plan, StartDate: cursor, EndDate: end, Order: i})
		cursor = end
	}
	if err := checkLayout(sub, tiers); err != nil {
		return nil, err
	}
	result.Tiers = tiers
	return result, nil
}

// mergeSamePlan collapses candidates with the same plan into the position of
// the first one, summing their days so no paid entitlement is lost.
func mergeSamePlan(cands []candidate) []candidate {
	out := make([]candidate, 0, len(cands))
	index := make(map[valueobjects.PlanID]int, len(cands))
	for _, c := range cands {
		if i, ok := index[c.plan]; ok {
			out[i].days += c.days
			out[i].merged = true
			continue
		}
		index[c.plan] = len(out)
		out = append(out, c)
	}
	return out
}

// checkLayout verifies the engine's own output before anything is persisted.
func checkLayout(sub *Subscription, tiers []Tier) error {
	seen := make(map[valueobjects.PlanID]bool, len(tiers))
	top := sub.plan.Priority()
	cursor := sub.endDate
	for i, t := range tiers {
		switch {
		case t.Order != i:
			return fmt.Errorf("%w: order %d at position %d", ErrTierQueueCorrupt, t.Order, i)
		case seen[t.Plan]:
			return fmt.Errorf("%w: plan %s queued twice", ErrTierQueueCorrupt, t.Plan)
		case !t.StartDate.Equal(cursor):
			return fmt.Errorf("%w: tier %d does not start at previous end", ErrTierQueueCorrupt, i)
		case t.Plan.Priority() > top:
			return fmt.Errorf("%w: tier %d outranks the active plan", ErrTierQueueCorrupt, i)
		}
		seen[t.Plan] = true
		cursor = t.EndDate
	}
	return nil
}

// AdvanceResult describes what Advance changed. Discarded and Anomaly are
// set when the persisted queue failed validation and was dropped.
type AdvanceResult struct {
	Tiers     []Tier
	Promoted  bool
	Expired   bool
	Discarded []Tier
	Anomaly   error
}

// Changed reports whether the subscription or its queue must be persisted.
func (r AdvanceResult) Changed() bool {
	return r.Promoted || r.Expired || r.Repaired()
}

// Repaired reports whether the persisted queue had to be discarded.
func (r AdvanceResult) Repaired() bool {
	return r.Anomaly != nil
}

// Advance moves a subscription whose active interval has lapsed onto the
// next live tier, or deactivates it when nothing is queued. Subscriptions
// that are inactive or still running are left alone. A corrupt queue is
// treated as empty and reported in the result.
func Advance(sub *Subscription, tiers []Tier, now time.Time) AdvanceResult {
	now = biztime.Normalize(now)
	if !sub.isActive || sub.endDate.After(now) {
		return AdvanceResult{Tiers: tiers}
	}

	var result AdvanceResult
	if err := ValidateQueue(tiers); err != nil {
		result.Discarded = sortByOrder(tiers)
		result.Anomaly = err
		tiers = nil
	}

	live := CurrentView(sub, tiers, now)
	if len(live) == 0 {
		sub.Deactivate()
		result.Expired = true
		return result
	}

	next := live[0]
	sub.activate(next.Plan, next.StartDate, next.EndDate)
	result.Promoted = true
	if rest := live[1:]; len(rest) > 0 {
		result.Tiers = ConsolidateQueue(rest, sub.endDate)
	}
	return result
}
