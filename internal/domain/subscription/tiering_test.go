package subscription

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

func assertChained(t *testing.T, sub *Subscription, tiers []Tier) {
	t.Helper()
	cursor := sub.EndDate()
	for i, tier := range tiers {
		assert.Equal(t, i, tier.Order)
		assert.True(t, tier.StartDate.Equal(cursor), "tier %d starts at %s, want %s", i, tier.StartDate, cursor)
		assert.LessOrEqual(t, tier.Plan.Priority(), sub.Plan().Priority(), "tier %d outranks active plan", i)
		cursor = tier.EndDate
	}
}

func TestApplyPurchase_FreshSubscription(t *testing.T) {
	sub, err := NewSubscription("facility-1", testNow)
	require.NoError(t, err)

	res, err := ApplyPurchase(sub, nil, valueobjects.PlanBasic, 30, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanBasic, sub.Plan())
	assert.True(t, sub.IsActive())
	assert.Equal(t, testNow, sub.StartDate())
	assert.Equal(t, 30, biztime.DaysBetween(testNow, sub.EndDate()))
	assert.Empty(t, res.Tiers)
	assert.False(t, res.Repaired())
}

func TestApplyPurchase_ExpiredSubscriptionStartsFresh(t *testing.T) {
	sub, err := ReconstructSubscription(1, "facility-1", valueobjects.PlanPremium,
		testNow.AddDate(0, 0, -40), testNow.AddDate(0, 0, -10), true, false,
		valueobjects.BillingPeriodOneMonth, "", "", false, "", nil, 1, testNow, testNow)
	require.NoError(t, err)

	res, err := ApplyPurchase(sub, nil, valueobjects.PlanBasic, 30, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanBasic, sub.Plan())
	assert.Equal(t, testNow, sub.StartDate())
	assert.Equal(t, 30, biztime.DaysBetween(testNow, sub.EndDate()))
	assert.Empty(t, res.Tiers)
	assert.Empty(t, sub.OriginalPlan(), "a lapsed plan is not displaced")
}

func TestApplyPurchase_HigherPriorityPreemptsCurrent(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanBasic, 10)
	basicEnd := sub.EndDate()

	res, err := ApplyPurchase(sub, nil, valueobjects.PlanPremium, 30, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanPremium, sub.Plan())
	assert.Equal(t, testNow, sub.StartDate())
	assert.Equal(t, 30, biztime.DaysBetween(testNow, sub.EndDate()))
	require.Len(t, res.Tiers, 1)
	assert.Equal(t, valueobjects.PlanBasic, res.Tiers[0].Plan)
	assert.Equal(t, 10, res.Tiers[0].Days())
	assert.Equal(t, valueobjects.PlanBasic, sub.OriginalPlan())
	assert.Equal(t, basicEnd, *sub.OriginalPlanEnd())
	assertChained(t, sub, res.Tiers)
}

func TestApplyPurchase_LowerPriorityQueuesBehindCurrent(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanPremium, 20)
	start, end := sub.StartDate(), sub.EndDate()

	res, err := ApplyPurchase(sub, nil, valueobjects.PlanBasic, 30, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanPremium, sub.Plan())
	assert.Equal(t, start, sub.StartDate())
	assert.Equal(t, end, sub.EndDate())
	require.Len(t, res.Tiers, 1)
	assert.Equal(t, valueobjects.PlanBasic, res.Tiers[0].Plan)
	assert.Equal(t, end, res.Tiers[0].StartDate)
	assert.Equal(t, 30, res.Tiers[0].Days())
	assert.Empty(t, sub.OriginalPlan())
}

func TestApplyPurchase_SamePlanExtendsCurrent(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanBasic, 10)
	start := sub.StartDate()

	res, err := ApplyPurchase(sub, nil, valueobjects.PlanBasic, 30, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanBasic, sub.Plan())
	assert.Equal(t, start, sub.StartDate())
	assert.Equal(t, 40, biztime.DaysBetween(testNow, sub.EndDate()))
	assert.Empty(t, res.Tiers)
}

func TestApplyPurchase_ReordersExistingQueue(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanStandard, 10)
	existing := chain(sub.EndDate(), tierOf(valueobjects.PlanBasic, 20))

	res, err := ApplyPurchase(sub, existing, valueobjects.PlanUnlimited, 5, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanUnlimited, sub.Plan())
	require.Len(t, res.Tiers, 2)
	assert.Equal(t, valueobjects.PlanStandard, res.Tiers[0].Plan)
	assert.Equal(t, 10, res.Tiers[0].Days())
	assert.Equal(t, valueobjects.PlanBasic, res.Tiers[1].Plan)
	assert.Equal(t, 20, res.Tiers[1].Days())
	assertChained(t, sub, res.Tiers)
}

func TestApplyPurchase_MergesQueuedSamePlan(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanPremium, 5)
	existing := chain(sub.EndDate(), tierOf(valueobjects.PlanBasic, 20))

	res, err := ApplyPurchase(sub, existing, valueobjects.PlanBasic, 30, testNow)
	require.NoError(t, err)

	require.Len(t, res.Tiers, 1)
	assert.Equal(t, valueobjects.PlanBasic, res.Tiers[0].Plan)
	assert.Equal(t, 50, res.Tiers[0].Days())
}

func TestApplyPurchase_DropsExpiredTiers(t *testing.T) {
	sub, err := NewSubscription("facility-1", testNow)
	require.NoError(t, err)
	existing := chain(testNow.AddDate(0, 0, -30), tierOf(valueobjects.PlanPremium, 10))

	res, err := ApplyPurchase(sub, existing, valueobjects.PlanBasic, 30, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanBasic, sub.Plan())
	assert.Empty(t, res.Tiers)
}

func TestApplyPurchase_CorruptQueueTreatedAsEmpty(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanStandard, 10)
	corrupt := []Tier{
		{Plan: valueobjects.PlanBasic, StartDate: sub.EndDate(), EndDate: sub.EndDate().AddDate(0, 0, 5), Order: 0},
		{Plan: valueobjects.PlanTrial, StartDate: sub.EndDate(), EndDate: sub.EndDate().AddDate(0, 0, 5), Order: 0},
	}

	res, err := ApplyPurchase(sub, corrupt, valueobjects.PlanBasic, 30, testNow)
	require.NoError(t, err)

	assert.True(t, res.Repaired())
	assert.ErrorIs(t, res.Anomaly, ErrTierQueueCorrupt)
	assert.Len(t, res.Discarded, 2)
	require.Len(t, res.Tiers, 1)
	assert.Equal(t, valueobjects.PlanBasic, res.Tiers[0].Plan)
	assert.Equal(t, 30, res.Tiers[0].Days())
}

func TestApplyPurchase_Rejects(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanBasic, 10)
	version := sub.Version()

	_, err := ApplyPurchase(sub, nil, valueobjects.PlanBasic, 0, testNow)
	assert.ErrorIs(t, err, ErrNonPositiveDays)

	_, err = ApplyPurchase(sub, nil, valueobjects.PlanID("GOLD"), 30, testNow)
	assert.ErrorIs(t, err, valueobjects.ErrInvalidPlan)

	_, err = ApplyPurchase(nil, nil, valueobjects.PlanBasic, 30, testNow)
	assert.ErrorIs(t, err, ErrMissingFacility)

	assert.Equal(t, version, sub.Version(), "rejected purchase must not mutate")
}

func TestApplyPurchase_InvariantsAcrossPlanCombinations(t *testing.T) {
	plans := []valueobjects.PlanID{
		valueobjects.PlanTrial, valueobjects.PlanBasic, valueobjects.PlanStandard,
		valueobjects.PlanPremium, valueobjects.PlanUnlimited,
	}
	for _, current := range plans {
		for _, queued := range plans {
			for _, bought := range plans {
				name := fmt.Sprintf("%s+%s+%s", current, queued, bought)
				t.Run(name, func(t *testing.T) {
					sub := runningSub(t, current, 7)
					existing := chain(sub.EndDate(), tierOf(queued, 12))

					res, err := ApplyPurchase(sub, existing, bought, 30, testNow)
					require.NoError(t, err)

					assertChained(t, sub, res.Tiers)
					seen := map[valueobjects.PlanID]bool{sub.Plan(): true}
					for _, tier := range res.Tiers {
						assert.False(t, seen[tier.Plan], "plan %s appears twice", tier.Plan)
						seen[tier.Plan] = true
					}
				})
			}
		}
	}
}

func TestConsolidateQueue_Idempotent(t *testing.T) {
	anchor := testNow.AddDate(0, 0, 10)
	fragmented := chain(anchor,
		tierOf(valueobjects.PlanStandard, 10),
		tierOf(valueobjects.PlanBasic, 5),
		tierOf(valueobjects.PlanStandard, 7),
	)

	once := ConsolidateQueue(fragmented, anchor)
	twice := ConsolidateQueue(once, anchor)

	require.Len(t, once, 2)
	assert.Equal(t, valueobjects.PlanStandard, once[0].Plan)
	assert.Equal(t, valueobjects.PlanBasic, once[1].Plan)
	assert.Equal(t, once, twice)
	assert.NoError(t, ValidateQueue(once))
	assert.Nil(t, ConsolidateQueue(nil, anchor))
}

func TestValidateQueue(t *testing.T) {
	start := testNow
	good := chain(start, tierOf(valueobjects.PlanBasic, 10), tierOf(valueobjects.PlanTrial, 5))
	assert.NoError(t, ValidateQueue(good))
	assert.NoError(t, ValidateQueue(nil))

	gap := chain(start, tierOf(valueobjects.PlanBasic, 10), tierOf(valueobjects.PlanTrial, 5))
	gap[1].StartDate = gap[1].StartDate.Add(time.Hour)
	assert.ErrorIs(t, ValidateQueue(gap), ErrTierQueueCorrupt)

	reversed := []Tier{{Plan: valueobjects.PlanBasic, StartDate: start, EndDate: start.Add(-time.Hour)}}
	assert.ErrorIs(t, ValidateQueue(reversed), ErrTierQueueCorrupt)
}

func TestCurrentView(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanPremium, 3)
	tiers := chain(sub.EndDate(), tierOf(valueobjects.PlanBasic, 10), tierOf(valueobjects.PlanTrial, 4))

	view := CurrentView(sub, tiers, testNow)
	assert.Equal(t, tiers, view)

	later := tiers[0].EndDate.Add(time.Hour)
	view = CurrentView(sub, tiers, later)
	require.Len(t, view, 1)
	assert.Equal(t, valueobjects.PlanTrial, view[0].Plan)
	assert.Equal(t, 0, view[0].Order)

	tiers[1].Order = 0
	assert.Nil(t, CurrentView(sub, tiers, testNow))
}

func TestAdvance(t *testing.T) {
	t.Run("running subscription untouched", func(t *testing.T) {
		sub := runningSub(t, valueobjects.PlanBasic, 5)
		tiers := chain(sub.EndDate(), tierOf(valueobjects.PlanTrial, 10))

		res := Advance(sub, tiers, testNow)
		assert.False(t, res.Changed())
		assert.Equal(t, tiers, res.Tiers)
	})

	t.Run("lapsed subscription promotes next tier", func(t *testing.T) {
		sub := runningSub(t, valueobjects.PlanPremium, 2)
		tiers := chain(sub.EndDate(), tierOf(valueobjects.PlanBasic, 10), tierOf(valueobjects.PlanTrial, 4))
		later := sub.EndDate().Add(time.Hour)

		res := Advance(sub, tiers, later)
		assert.True(t, res.Promoted)
		assert.Equal(t, valueobjects.PlanBasic, sub.Plan())
		assert.Equal(t, tiers[0].StartDate, sub.StartDate())
		assert.Equal(t, tiers[0].EndDate, sub.EndDate())
		require.Len(t, res.Tiers, 1)
		assert.Equal(t, valueobjects.PlanTrial, res.Tiers[0].Plan)
		assertChained(t, sub, res.Tiers)
	})

	t.Run("lapsed without queue deactivates", func(t *testing.T) {
		sub := runningSub(t, valueobjects.PlanBasic, 1)
		later := sub.EndDate().Add(time.Minute)
		end := sub.EndDate()

		res := Advance(sub, nil, later)
		assert.True(t, res.Expired)
		assert.False(t, sub.IsActive())
		assert.Equal(t, end, sub.EndDate())
	})

	t.Run("lapsed with corrupt queue reports the discarded tiers", func(t *testing.T) {
		sub := runningSub(t, valueobjects.PlanPremium, 1)
		tiers := chain(sub.EndDate(), tierOf(valueobjects.PlanBasic, 30))
		gapStart := tiers[0].EndDate.Add(time.Second)
		tiers = append(tiers, Tier{
			Plan:      valueobjects.PlanStandard,
			StartDate: gapStart,
			EndDate:   biztime.EndForDays(gapStart, 20),
			Order:     1,
		})
		later := testNow.AddDate(0, 0, 2)

		res := Advance(sub, tiers, later)
		assert.True(t, res.Changed())
		assert.True(t, res.Repaired())
		assert.ErrorIs(t, res.Anomaly, ErrTierQueueCorrupt)
		assert.Equal(t, tiers, res.Discarded)
		assert.True(t, res.Expired)
		assert.False(t, res.Promoted)
		assert.False(t, sub.IsActive())
		assert.Empty(t, res.Tiers)
	})

	t.Run("healthy queue is not reported", func(t *testing.T) {
		sub := runningSub(t, valueobjects.PlanPremium, 2)
		tiers := chain(sub.EndDate(), tierOf(valueobjects.PlanBasic, 10))

		res := Advance(sub, tiers, sub.EndDate().Add(time.Hour))
		assert.False(t, res.Repaired())
		assert.Empty(t, res.Discarded)
	})
}
