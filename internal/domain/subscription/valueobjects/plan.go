package valueobjects

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidPlan = errors.New("invalid plan")

// PlanID identifies a catalog plan. The set is closed; values arriving from
// outside are validated once by ParsePlanID.
type PlanID string

const (
	PlanTrial     PlanID = "TRIAL"
	PlanBasic     PlanID = "BASIC"
	PlanStandard  PlanID = "STANDARD"
	PlanPremium   PlanID = "PREMIUM"
	PlanUnlimited PlanID = "UNLIMITED"
)

// Limits are the resource ceilings a plan grants a facility.
type Limits struct {
	MaxUsers int `json:"max_users"`
	MaxRacks int `json:"max_racks"`
}

// Plan is an immutable catalog entry.
type Plan struct {
	ID          PlanID
	Priority    int
	Limits      Limits
	PricePerDay decimal.Decimal
}

var catalog = map[PlanID]Plan{
	PlanTrial:     {ID: PlanTrial, Priority: 0, Limits: Limits{MaxUsers: 2, MaxRacks: 3}, PricePerDay: decimal.Zero},
	PlanBasic:     {ID: PlanBasic, Priority: 1, Limits: Limits{MaxUsers: 5, MaxRacks: 4}, PricePerDay: decimal.RequireFromString("1.00")},
	PlanStandard:  {ID: PlanStandard, Priority: 2, Limits: Limits{MaxUsers: 10, MaxRacks: 10}, PricePerDay: decimal.RequireFromString("2.50")},
	PlanPremium:   {ID: PlanPremium, Priority: 3, Limits: Limits{MaxUsers: 15, MaxRacks: 20}, PricePerDay: decimal.RequireFromString("5.00")},
	PlanUnlimited: {ID: PlanUnlimited, Priority: 4, Limits: Limits{MaxUsers: 999, MaxRacks: 999}, PricePerDay: decimal.RequireFromString("10.00")},
}

// ParsePlanID accepts a plan id in any letter case.
func ParsePlanID(value string) (PlanID, error) {
	id := PlanID(strings.ToUpper(strings.TrimSpace(value)))
	if !id.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, value)
	}
	return id, nil
}

func (p PlanID) IsValid() bool {
	_, ok := catalog[p]
	return ok
}

func (p PlanID) String() string {
	return string(p)
}

// Priority ranks plans that are live at the same time; higher runs first.
// Unknown ids rank 0 so they never outrank a catalog plan.
func (p PlanID) Priority() int {
	if plan, ok := catalog[p]; ok {
		return plan.Priority
	}
	return 0
}

// Limits fails closed to the BASIC limits for ids outside the catalog.
func (p PlanID) Limits() Limits {
	if plan, ok := catalog[p]; ok {
		return plan.Limits
	}
	return catalog[PlanBasic].Limits
}

// PricePerDay falls back to the BASIC price for unknown ids.
func (p PlanID) PricePerDay() decimal.Decimal {
	if plan, ok := catalog[p]; ok {
		return plan.PricePerDay
	}
	return catalog[PlanBasic].PricePerDay
}

// Plans lists the catalog by ascending priority.
func Plans() []Plan {
	plans := make([]Plan, 0, len(catalog))
	for _, p := range catalog {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Priority < plans[j].Priority })
	return plans
}
