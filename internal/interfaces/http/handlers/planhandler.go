package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rackgrid/rackgrid/internal/shared/utils"
)

type PlanHandler struct {
	listPlansUC listPlansUseCase
}

func NewPlanHandler(listPlansUC listPlansUseCase) *PlanHandler {
	return &PlanHandler{listPlansUC: listPlansUC}
}

// ListPlans handles GET /plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", h.listPlansUC.Execute())
}
