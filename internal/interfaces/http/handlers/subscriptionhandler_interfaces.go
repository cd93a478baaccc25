package handlers

import (
	"context"

	subdto "github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/application/subscription/usecases"
)

// Use case interfaces for SubscriptionHandler

type getStatusUseCase interface {
	Execute(ctx context.Context, facilityID string) (*subdto.StatusDTO, error)
}

type purchaseUseCase interface {
	Execute(ctx context.Context, cmd usecases.PurchaseCommand) (*subdto.PurchaseResultDTO, error)
}

type confirmPaymentUseCase interface {
	Execute(ctx context.Context, cmd usecases.ConfirmPaymentCommand) (*subdto.PurchaseResultDTO, error)
}

type toggleAutoRenewUseCase interface {
	Execute(ctx context.Context, cmd usecases.ToggleAutoRenewCommand) error
}

type startTrialUseCase interface {
	Execute(ctx context.Context, facilityID string) (*subdto.StatusDTO, error)
}
