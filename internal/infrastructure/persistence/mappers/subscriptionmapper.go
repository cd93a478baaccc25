package mappers

import (
	"fmt"

	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/infrastructure/persistence/models"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) *models.SubscriptionModel
	ToTiers(models []models.SubscriptionTierModel) []subscription.Tier
	ToTierModels(subscriptionID uint, tiers []subscription.Tier) []models.SubscriptionTierModel
}

type SubscriptionMapperImpl struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &SubscriptionMapperImpl{}
}

// ToEntity keeps plan ids it does not recognize; the catalog resolves them
// fail-closed on read.
func (m *SubscriptionMapperImpl) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := subscription.ReconstructSubscription(
		model.ID,
		model.FacilityID,
		valueobjects.PlanID(model.Plan),
		model.StartDate,
		model.EndDate,
		model.IsActive,
		model.AutoRenew,
		valueobjects.BillingPeriod(model.RenewalPeriod),
		deref(model.PaymentMethodRef),
		deref(model.LastPaymentID),
		model.IsDisputed,
		valueobjects.PlanID(deref(model.OriginalPlan)),
		model.OriginalPlanEndDate,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription %d: %w", model.ID, err)
	}
	return entity, nil
}

func (m *SubscriptionMapperImpl) ToModel(entity *subscription.Subscription) *models.SubscriptionModel {
	if entity == nil {
		return nil
	}
	return &models.SubscriptionModel{
		ID:                  entity.ID(),
		FacilityID:          entity.FacilityID(),
		Plan:                entity.Plan().String(),
		StartDate:           entity.StartDate(),
		EndDate:             entity.EndDate(),
		IsActive:            entity.IsActive(),
		AutoRenew:           entity.AutoRenew(),
		RenewalPeriod:       entity.RenewalPeriod().String(),
		PaymentMethodRef:    ref(entity.PaymentMethodRef()),
		LastPaymentID:       ref(entity.LastPaymentID()),
		IsDisputed:          entity.IsDisputed(),
		OriginalPlan:        ref(entity.OriginalPlan().String()),
		OriginalPlanEndDate: entity.OriginalPlanEnd(),
		Version:             entity.Version(),
		CreatedAt:           entity.CreatedAt(),
		UpdatedAt:           entity.UpdatedAt(),
	}
}

func (m *SubscriptionMapperImpl) ToTiers(rows []models.SubscriptionTierModel) []subscription.Tier {
	if len(rows) == 0 {
		return nil
	}
	tiers := make([]subscription.Tier, 0, len(rows))
	for _, row := range rows {
		tiers = append(tiers, subscription.Tier{
			Plan:      valueobjects.PlanID(row.Plan),
			StartDate: biztime.Normalize(row.StartDate),
			EndDate:   biztime.Normalize(row.EndDate),
			Order:     row.TierOrder,
		})
	}
	return tiers
}

func (m *SubscriptionMapperImpl) ToTierModels(subscriptionID uint, tiers []subscription.Tier) []models.SubscriptionTierModel {
	rows := make([]models.SubscriptionTierModel, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, models.SubscriptionTierModel{
			SubscriptionID: subscriptionID,
			Plan:           t.Plan.String(),
			StartDate:      t.StartDate,
			EndDate:        t.EndDate,
			TierOrder:      t.Order,
		})
	}
	return rows
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
