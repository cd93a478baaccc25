package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rackgrid/rackgrid/internal/interfaces/http/handlers"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/middleware"
)

// SubscriptionRouteConfig holds dependencies for facility subscription routes.
type SubscriptionRouteConfig struct {
	SubscriptionHandler *handlers.SubscriptionHandler
	AuthMiddleware      *middleware.AuthMiddleware
	// PurchaseLimiter is optional; nil leaves purchases unthrottled.
	PurchaseLimiter *middleware.RateLimiter
}

// SetupSubscriptionRoutes configures routes scoped to the caller's facility.
// Routes: /subscription/*
func SetupSubscriptionRoutes(engine *gin.Engine, cfg *SubscriptionRouteConfig) {
	sub := engine.Group("/subscription")
	sub.Use(cfg.AuthMiddleware.RequireAuth())
	sub.Use(cfg.AuthMiddleware.RequireFacility())
	{
		sub.GET("", cfg.SubscriptionHandler.GetStatus)

		purchase := []gin.HandlerFunc{cfg.SubscriptionHandler.Purchase}
		if cfg.PurchaseLimiter != nil {
			purchase = append([]gin.HandlerFunc{cfg.PurchaseLimiter.Limit()}, purchase...)
		}
		sub.POST("/purchase", purchase...)

		sub.POST("/confirm", cfg.SubscriptionHandler.ConfirmPayment)
		sub.POST("/trial", cfg.SubscriptionHandler.StartTrial)
		sub.PUT("/auto-renew", cfg.SubscriptionHandler.ToggleAutoRenew)
	}
}
