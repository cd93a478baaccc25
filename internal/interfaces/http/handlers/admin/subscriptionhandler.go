// Package admin provides HTTP handlers for administrative operations.
package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	subdto "github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/application/subscription/usecases"
	"github.com/rackgrid/rackgrid/internal/shared/constants"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
	"github.com/rackgrid/rackgrid/internal/shared/utils"
)

type adminOverrideUseCase interface {
	Execute(ctx context.Context, cmd usecases.AdminOverrideCommand) (*subdto.StatusDTO, error)
}

type endSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd usecases.EndSubscriptionCommand) error
}

// SubscriptionHandler handles super-admin operations on any facility's
// subscription.
type SubscriptionHandler struct {
	overrideUseCase adminOverrideUseCase
	endUseCase      endSubscriptionUseCase
	logger          logger.Interface
}

func NewSubscriptionHandler(
	overrideUC adminOverrideUseCase,
	endUC endSubscriptionUseCase,
	logger logger.Interface,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		overrideUseCase: overrideUC,
		endUseCase:      endUC,
		logger:          logger,
	}
}

// OverrideRequest grants Days of Plan without a payment.
type OverrideRequest struct {
	Plan string `json:"plan" binding:"required,plan"`
	Days int    `json:"days" binding:"required,gt=0"`
}

// Override handles POST /admin/facilities/:facility_id/subscription/override
func (h *SubscriptionHandler) Override(c *gin.Context) {
	facilityID := c.Param("facility_id")
	adminID := c.GetString(constants.ContextKeyUserID)

	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for admin override", "error", err, "facility_id", facilityID)
		utils.ErrorResponseWithError(c, utils.BindingError(err))
		return
	}

	status, err := h.overrideUseCase.Execute(c.Request.Context(), usecases.AdminOverrideCommand{
		FacilityID: facilityID,
		Plan:       req.Plan,
		Days:       req.Days,
		AdminID:    adminID,
	})
	if err != nil {
		h.logger.Errorw("failed to apply admin override", "error", err,
			"facility_id", facilityID, "plan", req.Plan, "days", req.Days, "admin_id", adminID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.logger.Infow("admin override applied", "facility_id", facilityID, "plan", req.Plan, "days", req.Days, "admin_id", adminID)
	utils.SuccessResponse(c, http.StatusOK, "Subscription override applied", status)
}

// End handles POST /admin/facilities/:facility_id/subscription/end
func (h *SubscriptionHandler) End(c *gin.Context) {
	facilityID := c.Param("facility_id")
	adminID := c.GetString(constants.ContextKeyUserID)

	if err := h.endUseCase.Execute(c.Request.Context(), usecases.EndSubscriptionCommand{
		FacilityID: facilityID,
		AdminID:    adminID,
	}); err != nil {
		h.logger.Errorw("failed to end subscription", "error", err, "facility_id", facilityID, "admin_id", adminID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.logger.Infow("subscription ended by admin", "facility_id", facilityID, "admin_id", adminID)
	utils.SuccessResponse(c, http.StatusOK, "Subscription ended", nil)
}
