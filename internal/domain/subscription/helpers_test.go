package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

// runningSub returns an active subscription with daysLeft days remaining at
// testNow, counted inclusively.
func runningSub(t *testing.T, plan valueobjects.PlanID, daysLeft int) *Subscription {
	t.Helper()
	start := testNow.AddDate(0, 0, -5)
	end := biztime.EndForDays(testNow, daysLeft)
	sub, err := ReconstructSubscription(1, "facility-1", plan, start, end, true, false,
		valueobjects.BillingPeriodOneMonth, "", "", false, "", nil, 3, start, start)
	require.NoError(t, err)
	return sub
}

func chain(start time.Time, specs ...struct {
	plan valueobjects.PlanID
	days int
}) []Tier {
	tiers := make([]Tier, 0, len(specs))
	cursor := start
	for i, s := range specs {
		end := biztime.EndForDays(cursor, s.days)
		tiers = append(tiers, Tier{Plan: s.plan, StartDate: cursor, EndDate: end, Order: i})
		cursor = end
	}
	return tiers
}

func tierOf(plan valueobjects.PlanID, days int) struct {
	plan valueobjects.PlanID
	days int
} {
	return struct {
		plan valueobjects.PlanID
		days int
	}{plan, days}
}
