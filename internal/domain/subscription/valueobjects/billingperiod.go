package valueobjects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidBillingPeriod = errors.New("invalid billing period")

type BillingPeriod string

const (
	BillingPeriodOneMonth    BillingPeriod = "1_month"
	BillingPeriodThreeMonths BillingPeriod = "3_months"
	BillingPeriodSixMonths   BillingPeriod = "6_months"
	BillingPeriodOneYear     BillingPeriod = "1_year"
)

// DefaultPeriodDays applies to period ids outside the catalog.
const DefaultPeriodDays = 30

type periodTerms struct {
	days     int
	discount decimal.Decimal
}

var periods = map[BillingPeriod]periodTerms{
	BillingPeriodOneMonth:    {days: 30, discount: decimal.Zero},
	BillingPeriodThreeMonths: {days: 90, discount: decimal.RequireFromString("0.05")},
	BillingPeriodSixMonths:   {days: 180, discount: decimal.RequireFromString("0.10")},
	BillingPeriodOneYear:     {days: 365, discount: decimal.RequireFromString("0.15")},
}

var orderedPeriods = []BillingPeriod{
	BillingPeriodOneMonth,
	BillingPeriodThreeMonths,
	BillingPeriodSixMonths,
	BillingPeriodOneYear,
}

func ParseBillingPeriod(value string) (BillingPeriod, error) {
	p := BillingPeriod(strings.ToLower(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBillingPeriod, value)
	}
	return p, nil
}

func (p BillingPeriod) IsValid() bool {
	_, ok := periods[p]
	return ok
}

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Days() int {
	if t, ok := periods[p]; ok {
		return t.days
	}
	return DefaultPeriodDays
}

func (p BillingPeriod) Discount() decimal.Decimal {
	if t, ok := periods[p]; ok {
		return t.discount
	}
	return decimal.Zero
}

// BillingPeriods lists the catalog from shortest to longest.
func BillingPeriods() []BillingPeriod {
	out := make([]BillingPeriod, len(orderedPeriods))
	copy(out, orderedPeriods)
	return out
}

var hundred = decimal.NewFromInt(100)

// ChargeAmount is the price in minor currency units for plan over period:
// price_per_day × days × (1 − discount), truncated to whole cents.
func ChargeAmount(plan PlanID, period BillingPeriod) int64 {
	return plan.PricePerDay().
		Mul(decimal.NewFromInt(int64(period.Days()))).
		Mul(decimal.NewFromInt(1).Sub(period.Discount())).
		Mul(hundred).
		Floor().
		IntPart()
}
