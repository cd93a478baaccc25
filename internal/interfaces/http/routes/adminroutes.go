package routes

import (
	"github.com/gin-gonic/gin"

	adminHandlers "github.com/rackgrid/rackgrid/internal/interfaces/http/handlers/admin"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/middleware"
)

// AdminRouteConfig holds dependencies for super-admin routes.
type AdminRouteConfig struct {
	SubscriptionHandler *adminHandlers.SubscriptionHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

// SetupAdminRoutes configures super-admin routes.
// Routes: /admin/facilities/:facility_id/subscription/*
func SetupAdminRoutes(engine *gin.Engine, cfg *AdminRouteConfig) {
	admin := engine.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAuth())
	admin.Use(cfg.AuthMiddleware.RequireSuperAdmin())
	{
		facility := admin.Group("/facilities/:facility_id/subscription")
		facility.POST("/override", cfg.SubscriptionHandler.Override)
		facility.POST("/end", cfg.SubscriptionHandler.End)
	}
}
