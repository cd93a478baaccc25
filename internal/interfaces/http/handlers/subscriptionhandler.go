package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	subdto "github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/application/subscription/usecases"
	"github.com/rackgrid/rackgrid/internal/shared/constants"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
	"github.com/rackgrid/rackgrid/internal/shared/utils"
)

const headerIdempotencyKey = "Idempotency-Key"

// SubscriptionHandler serves the caller's own facility subscription.
type SubscriptionHandler struct {
	getStatusUseCase       getStatusUseCase
	purchaseUseCase        purchaseUseCase
	confirmPaymentUseCase  confirmPaymentUseCase
	toggleAutoRenewUseCase toggleAutoRenewUseCase
	startTrialUseCase      startTrialUseCase
	logger                 logger.Interface
}

func NewSubscriptionHandler(
	getStatusUC getStatusUseCase,
	purchaseUC purchaseUseCase,
	confirmPaymentUC confirmPaymentUseCase,
	toggleAutoRenewUC toggleAutoRenewUseCase,
	startTrialUC startTrialUseCase,
	logger logger.Interface,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		getStatusUseCase:       getStatusUC,
		purchaseUseCase:        purchaseUC,
		confirmPaymentUseCase:  confirmPaymentUC,
		toggleAutoRenewUseCase: toggleAutoRenewUC,
		startTrialUseCase:      startTrialUC,
		logger:                 logger,
	}
}

type PurchaseRequest struct {
	Plan             string `json:"plan" binding:"required,plan"`
	Period           string `json:"period" binding:"required,period"`
	PaymentMethodRef string `json:"payment_method_ref" binding:"required"`
	AutoRenew        *bool  `json:"auto_renew"`
}

type ConfirmPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

type ToggleAutoRenewRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetStatus handles GET /subscription
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	facilityID := c.GetString(constants.ContextKeyFacilityID)

	status, err := h.getStatusUseCase.Execute(c.Request.Context(), facilityID)
	if err != nil {
		h.logger.Errorw("failed to get subscription status", "error", err, "facility_id", facilityID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", status)
}

// Purchase handles POST /subscription/purchase. A charge that still needs
// customer action answers 202 with the client secret.
func (h *SubscriptionHandler) Purchase(c *gin.Context) {
	facilityID := c.GetString(constants.ContextKeyFacilityID)

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for purchase", "error", err, "facility_id", facilityID)
		utils.ErrorResponseWithError(c, utils.BindingError(err))
		return
	}

	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}

	result, err := h.purchaseUseCase.Execute(c.Request.Context(), usecases.PurchaseCommand{
		FacilityID:       facilityID,
		UserID:           c.GetString(constants.ContextKeyUserID),
		Plan:             req.Plan,
		Period:           req.Period,
		PaymentMethodRef: req.PaymentMethodRef,
		AutoRenew:        autoRenew,
		IdempotencyKey:   c.GetHeader(headerIdempotencyKey),
	})
	if err != nil {
		h.logger.Errorw("failed to purchase subscription", "error", err, "facility_id", facilityID, "plan", req.Plan)
		utils.ErrorResponseWithError(c, err)
		return
	}

	respondPurchase(c, result, "Subscription purchased successfully")
}

// ConfirmPayment handles POST /subscription/confirm
func (h *SubscriptionHandler) ConfirmPayment(c *gin.Context) {
	facilityID := c.GetString(constants.ContextKeyFacilityID)

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for confirm payment", "error", err, "facility_id", facilityID)
		utils.ErrorResponseWithError(c, utils.BindingError(err))
		return
	}

	result, err := h.confirmPaymentUseCase.Execute(c.Request.Context(), usecases.ConfirmPaymentCommand{
		FacilityID: facilityID,
		PaymentID:  req.PaymentID,
	})
	if err != nil {
		h.logger.Errorw("failed to confirm payment", "error", err, "facility_id", facilityID, "payment_id", req.PaymentID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	respondPurchase(c, result, "Payment confirmed")
}

// ToggleAutoRenew handles PUT /subscription/auto-renew
func (h *SubscriptionHandler) ToggleAutoRenew(c *gin.Context) {
	facilityID := c.GetString(constants.ContextKeyFacilityID)

	var req ToggleAutoRenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for auto-renew", "error", err, "facility_id", facilityID)
		utils.ErrorResponseWithError(c, utils.BindingError(err))
		return
	}

	if err := h.toggleAutoRenewUseCase.Execute(c.Request.Context(), usecases.ToggleAutoRenewCommand{
		FacilityID: facilityID,
		Enabled:    *req.Enabled,
	}); err != nil {
		h.logger.Errorw("failed to toggle auto-renew", "error", err, "facility_id", facilityID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	message := "Auto-renew disabled"
	if *req.Enabled {
		message = "Auto-renew enabled"
	}
	utils.SuccessResponse(c, http.StatusOK, message, gin.H{"auto_renew": *req.Enabled})
}

// StartTrial handles POST /subscription/trial
func (h *SubscriptionHandler) StartTrial(c *gin.Context) {
	facilityID := c.GetString(constants.ContextKeyFacilityID)

	status, err := h.startTrialUseCase.Execute(c.Request.Context(), facilityID)
	if err != nil {
		h.logger.Errorw("failed to start trial", "error", err, "facility_id", facilityID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", status)
}

func respondPurchase(c *gin.Context, result *subdto.PurchaseResultDTO, appliedMessage string) {
	if result.Status == subdto.PurchasePaymentPending {
		utils.SuccessResponse(c, http.StatusAccepted, "Payment requires customer action", result)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, appliedMessage, result)
}
