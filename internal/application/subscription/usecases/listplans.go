package usecases

import (
	"strings"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
)

type ListPlansUseCase struct {
	currency string
}

func NewListPlansUseCase(currency string) *ListPlansUseCase {
	return &ListPlansUseCase{currency: strings.ToLower(currency)}
}

// Execute lists the catalog by ascending priority with a price per billing
// period.
func (uc *ListPlansUseCase) Execute() []dto.PlanDTO {
	plans := vo.Plans()
	out := make([]dto.PlanDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, dto.ToPlanDTO(p, uc.currency))
	}
	return out
}
