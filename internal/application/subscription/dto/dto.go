package dto

import (
	"time"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
)

type TierDTO struct {
	Plan      string    `json:"plan"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`
}

// StatusDTO is the read model of a facility's entitlement. Plan is nil for a
// facility that never held one.
type StatusDTO struct {
	FacilityID          string     `json:"facility_id"`
	Plan                *string    `json:"plan"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
	IsActive            bool       `json:"is_active"`
	IsValid             bool       `json:"is_valid"`
	DaysRemaining       int        `json:"days_remaining"`
	MaxUsers            int        `json:"max_users"`
	MaxRacks            int        `json:"max_racks"`
	AutoRenew           bool       `json:"auto_renew"`
	RenewalPeriod       string     `json:"renewal_period"`
	PaymentMethodOnFile bool       `json:"payment_method_on_file"`
	Disputed            bool       `json:"disputed"`
	LastPaymentID       string     `json:"last_payment_id,omitempty"`
	OriginalPlan        string     `json:"original_plan,omitempty"`
	OriginalPlanEndDate *time.Time `json:"original_plan_end_date,omitempty"`
	HasMultipleTiers    bool       `json:"has_multiple_tiers"`
	Tiers               []TierDTO  `json:"tiers"`
}

type PurchaseStatus string

const (
	PurchaseApplied        PurchaseStatus = "applied"
	PurchasePaymentPending PurchaseStatus = "payment_pending"
)

// PurchaseResultDTO is returned by purchase and confirm. ClientSecret is set
// only while the customer still has to complete the payment.
type PurchaseResultDTO struct {
	Status       PurchaseStatus `json:"status"`
	PaymentID    string         `json:"payment_id"`
	Amount       int64          `json:"amount"`
	Currency     string         `json:"currency"`
	ClientSecret string         `json:"client_secret,omitempty"`
	Subscription *StatusDTO     `json:"subscription,omitempty"`
}

type PlanPriceDTO struct {
	Period          string `json:"period"`
	Days            int    `json:"days"`
	DiscountPercent int64  `json:"discount_percent"`
	Amount          int64  `json:"amount"`
}

type PlanDTO struct {
	ID          string         `json:"id"`
	Priority    int            `json:"priority"`
	MaxUsers    int            `json:"max_users"`
	MaxRacks    int            `json:"max_racks"`
	PricePerDay string         `json:"price_per_day"`
	Currency    string         `json:"currency"`
	Prices      []PlanPriceDTO `json:"prices"`
}

// EmptyStatus is the status of a facility with no subscription record.
func EmptyStatus(facilityID string) *StatusDTO {
	return &StatusDTO{
		FacilityID:    facilityID,
		RenewalPeriod: vo.BillingPeriodOneMonth.String(),
		Tiers:         []TierDTO{},
	}
}

// ToStatusDTO builds the status from a subscription and the queue as it
// reads at now.
func ToStatusDTO(sub *subscription.Subscription, queue []subscription.Tier, now time.Time) *StatusDTO {
	if sub == nil {
		return nil
	}

	plan := sub.Plan().String()
	start, end := sub.StartDate(), sub.EndDate()
	limits := sub.Limits(now)

	out := &StatusDTO{
		FacilityID:          sub.FacilityID(),
		IsActive:            sub.IsActive(),
		IsValid:             sub.IsValid(now),
		DaysRemaining:       sub.DaysRemaining(now),
		MaxUsers:            limits.MaxUsers,
		MaxRacks:            limits.MaxRacks,
		AutoRenew:           sub.AutoRenew(),
		RenewalPeriod:       sub.RenewalPeriod().String(),
		PaymentMethodOnFile: sub.PaymentMethodRef() != "",
		Disputed:            sub.IsDisputed(),
		LastPaymentID:       sub.LastPaymentID(),
		OriginalPlan:        sub.OriginalPlan().String(),
		OriginalPlanEndDate: sub.OriginalPlanEnd(),
		Tiers:               ToTierDTOs(queue),
	}
	if plan != "" {
		out.Plan = &plan
		out.StartDate = &start
		out.EndDate = &end
	}
	out.HasMultipleTiers = len(out.Tiers) > 0
	return out
}

func ToTierDTOs(tiers []subscription.Tier) []TierDTO {
	out := make([]TierDTO, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, TierDTO{
			Plan:      t.Plan.String(),
			StartDate: t.StartDate,
			EndDate:   t.EndDate,
			Days:      t.Days(),
		})
	}
	return out
}

// ToPlanDTO prices a catalog entry for every billing period.
func ToPlanDTO(p vo.Plan, currency string) PlanDTO {
	out := PlanDTO{
		ID:          p.ID.String(),
		Priority:    p.Priority,
		MaxUsers:    p.Limits.MaxUsers,
		MaxRacks:    p.Limits.MaxRacks,
		PricePerDay: p.PricePerDay.StringFixed(2),
		Currency:    currency,
	}
	for _, period := range vo.BillingPeriods() {
		out.Prices = append(out.Prices, PlanPriceDTO{
			Period:          period.String(),
			Days:            period.Days(),
			DiscountPercent: period.Discount().Shift(2).IntPart(),
			Amount:          vo.ChargeAmount(p.ID, period),
		})
	}
	return out
}
