package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rackgrid/rackgrid/internal/shared/constants"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
	"github.com/rackgrid/rackgrid/internal/shared/utils"
)

// Stripe caps webhook payloads well below this.
const maxWebhookBodyBytes = 1 << 16

type webhookUseCase interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type WebhookHandler struct {
	reconcileUseCase webhookUseCase
	logger           logger.Interface
}

func NewWebhookHandler(reconcileUC webhookUseCase, logger logger.Interface) *WebhookHandler {
	return &WebhookHandler{reconcileUseCase: reconcileUC, logger: logger}
}

// Stripe handles POST /webhooks/stripe. The raw body is needed for the
// signature check, so it is read before any binding. A non-2xx answer makes
// Stripe redeliver.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil {
		h.logger.Warnw("failed to read webhook body", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(payload) > maxWebhookBodyBytes {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "webhook payload too large")
		return
	}

	signature := c.GetHeader(constants.HeaderStripeSignature)
	if signature == "" {
		utils.ErrorResponse(c, http.StatusUnauthorized, "missing webhook signature")
		return
	}

	if err := h.reconcileUseCase.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		h.logger.Errorw("failed to handle stripe webhook", "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"received": true})
}
