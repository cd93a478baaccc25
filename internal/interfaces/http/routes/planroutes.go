// Package routes provides HTTP route configurations.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rackgrid/rackgrid/internal/interfaces/http/handlers"
)

// PlanRouteConfig holds dependencies for plan routes.
type PlanRouteConfig struct {
	PlanHandler *handlers.PlanHandler
}

// SetupPlanRoutes configures the public catalog.
func SetupPlanRoutes(engine *gin.Engine, cfg *PlanRouteConfig) {
	engine.GET("/plans", cfg.PlanHandler.ListPlans)
}
