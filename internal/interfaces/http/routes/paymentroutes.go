package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rackgrid/rackgrid/internal/interfaces/http/handlers"
)

// PaymentRouteConfig holds dependencies for gateway callback routes.
type PaymentRouteConfig struct {
	WebhookHandler *handlers.WebhookHandler
}

// SetupPaymentRoutes configures gateway webhooks. They authenticate by
// signature, not by bearer token.
func SetupPaymentRoutes(engine *gin.Engine, cfg *PaymentRouteConfig) {
	webhooks := engine.Group("/webhooks")
	{
		webhooks.POST("/stripe", cfg.WebhookHandler.Stripe)
	}
}
