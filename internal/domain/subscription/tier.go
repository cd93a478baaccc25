package subscription

import (
	"fmt"
	"sort"
	"time"

	"github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

// Tier is a queued billing interval that takes effect after the active one.
// Ascending Order is further in the future.
type Tier struct {
	Plan      valueobjects.PlanID
	StartDate time.Time
	EndDate   time.Time
	Order     int
}

// Days is the tier's allotment, counted inclusively.
func (t Tier) Days() int {
	return biztime.DaysBetween(t.StartDate, t.EndDate)
}

func sortByOrder(tiers []Tier) []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// ValidateQueue checks the structural invariants of a persisted queue:
// unique orders, no reversed interval, and each tier starting where the
// previous one ends.
func ValidateQueue(tiers []Tier) error {
	sorted := sortByOrder(tiers)
	for i, t := range sorted {
		if t.EndDate.Before(t.StartDate) {
			return fmt.Errorf("%w: tier %d ends before it starts", ErrTierQueueCorrupt, t.Order)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.Order == t.Order {
			return fmt.Errorf("%w: duplicate order %d", ErrTierQueueCorrupt, t.Order)
		}
		if !prev.EndDate.Equal(t.StartDate) {
			return fmt.Errorf("%w: gap between order %d and %d", ErrTierQueueCorrupt, prev.Order, t.Order)
		}
	}
	return nil
}

// ConsolidateQueue merges tiers of the same plan into one tier spanning
// [min start, max end], keeps first-occurrence order, renumbers from 0 and
// re-chains the result from anchor. Running it on its own output is a no-op.
func ConsolidateQueue(tiers []Tier, anchor time.Time) []Tier {
	if len(tiers) == 0 {
		return nil
	}

	type span struct {
		plan       valueobjects.PlanID
		start, end time.Time
	}
	var spans []*span
	byPlan := make(map[valueobjects.PlanID]*span)
	for _, t := range sortByOrder(tiers) {
		if s, ok := byPlan[t.Plan]; ok {
			if t.StartDate.Before(s.start) {
				s.start = t.StartDate
			}
			if t.EndDate.After(s.end) {
				s.end = t.EndDate
			}
			continue
		}
		s := &span{plan: t.Plan, start: t.StartDate, end: t.EndDate}
		byPlan[t.Plan] = s
		spans = append(spans, s)
	}

	out := make([]Tier, 0, len(spans))
	cursor := biztime.Normalize(anchor)
	for i, s := range spans {
		end := biztime.EndForDays(cursor, biztime.DaysBetween(s.start, s.end))
		out = append(out, Tier{Plan: s.plan, StartDate: cursor, EndDate: end, Order: i})
		cursor = end
	}
	return out
}

// CurrentView is the read-side accessor: the queue with expired tiers
// dropped and fragments consolidated. A corrupt queue reads as empty.
func CurrentView(sub *Subscription, tiers []Tier, now time.Time) []Tier {
	if sub == nil || ValidateQueue(tiers) != nil {
		return nil
	}
	now = biztime.Normalize(now)
	live := make([]Tier, 0, len(tiers))
	for _, t := range sortByOrder(tiers) {
		if t.EndDate.After(now) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	return ConsolidateQueue(live, live[0].StartDate)
}
