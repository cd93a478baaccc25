package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

func TestNewSubscription_RequiresFacility(t *testing.T) {
	_, err := NewSubscription("", testNow)
	assert.ErrorIs(t, err, ErrMissingFacility)

	sub, err := NewSubscription("facility-1", testNow)
	require.NoError(t, err)
	assert.False(t, sub.IsActive())
	assert.False(t, sub.IsValid(testNow))
	assert.Equal(t, valueobjects.BillingPeriodOneMonth, sub.RenewalPeriod())
	assert.Equal(t, valueobjects.Limits{}, sub.Limits(testNow))
}

func TestNewTrialSubscription(t *testing.T) {
	sub, err := NewTrialSubscription("facility-1", testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.PlanTrial, sub.Plan())
	assert.True(t, sub.IsValid(testNow))
	assert.Equal(t, TrialDays, biztime.DaysBetween(sub.StartDate(), sub.EndDate()))
	assert.Equal(t, TrialDays, sub.DaysRemaining(testNow))
	assert.Equal(t, valueobjects.Limits{MaxUsers: 2, MaxRacks: 3}, sub.Limits(testNow))
}

func TestSubscription_DueForRenewal(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanBasic, 1)
	horizon := biztime.Horizon(testNow, 24*time.Hour)

	assert.False(t, sub.DueForRenewal(horizon), "auto renew off")

	sub.SetAutoRenew(true)
	assert.False(t, sub.DueForRenewal(horizon), "no payment method")

	sub.SetRenewalTerms(valueobjects.BillingPeriodThreeMonths, "pm_card")
	assert.True(t, sub.DueForRenewal(horizon))
	assert.Equal(t, valueobjects.BillingPeriodThreeMonths, sub.RenewalPeriod())

	far := runningSub(t, valueobjects.PlanBasic, 10)
	far.SetAutoRenew(true)
	far.SetRenewalTerms("", "pm_card")
	assert.False(t, far.DueForRenewal(horizon))
	assert.Equal(t, valueobjects.BillingPeriodOneMonth, far.RenewalPeriod())
}

func TestSubscription_EndClearsBookkeeping(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanBasic, 10)
	_, err := ApplyPurchase(sub, nil, valueobjects.PlanPremium, 30, testNow)
	require.NoError(t, err)
	require.Equal(t, valueobjects.PlanBasic, sub.OriginalPlan())
	require.NotNil(t, sub.OriginalPlanEnd())

	later := testNow.Add(time.Hour)
	sub.End(later)

	assert.False(t, sub.IsActive())
	assert.Equal(t, later, sub.EndDate())
	assert.Empty(t, sub.OriginalPlan())
	assert.Nil(t, sub.OriginalPlanEnd())
	assert.Equal(t, 0, sub.DaysRemaining(later))
}

func TestSubscription_PaymentAndDispute(t *testing.T) {
	sub := runningSub(t, valueobjects.PlanBasic, 10)
	v := sub.Version()

	assert.False(t, sub.HasPayment(""))
	sub.RecordPayment("pi_1")
	assert.True(t, sub.HasPayment("pi_1"))
	assert.False(t, sub.HasPayment("pi_2"))

	sub.MarkDisputed()
	sub.MarkDisputed()
	assert.True(t, sub.IsDisputed())
	assert.True(t, sub.IsActive())
	assert.Equal(t, v+2, sub.Version())

	sub.Deactivate()
	assert.False(t, sub.IsActive())
}

func TestReconstructSubscription_Validates(t *testing.T) {
	_, err := ReconstructSubscription(0, "f", valueobjects.PlanBasic, testNow, testNow, true, false, "", "", "", false, "", nil, 1, testNow, testNow)
	assert.Error(t, err)

	_, err = ReconstructSubscription(1, "", valueobjects.PlanBasic, testNow, testNow, true, false, "", "", "", false, "", nil, 1, testNow, testNow)
	assert.ErrorIs(t, err, ErrMissingFacility)
}
