package handlers

import (
	subdto "github.com/rackgrid/rackgrid/internal/application/subscription/dto"
)

// Use case interfaces for PlanHandler

type listPlansUseCase interface {
	Execute() []subdto.PlanDTO
}
