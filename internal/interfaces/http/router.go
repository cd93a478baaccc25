package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/rackgrid/rackgrid/internal/interfaces/http/middleware"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/routes"
	"github.com/rackgrid/rackgrid/internal/shared/utils"
)

const (
	healthPath         = "/health"
	defaultMetricsPath = "/metrics"
)

// SetupRoutes installs the global middleware and every route.
func (c *Container) SetupRoutes() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterValidators(v); err != nil {
			return fmt.Errorf("failed to register validators: %w", err)
		}
	}

	metricsPath := c.cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = defaultMetricsPath
	}

	log := c.log.Named("http")
	r := c.engine
	r.Use(middleware.RequestID())
	r.Use(middleware.CustomLogger(log, healthPath, metricsPath))
	r.Use(middleware.Recovery(log))

	r.GET(healthPath, c.hdlrs.healthHandler.Health)

	if c.cfg.Metrics.Enabled {
		r.GET(metricsPath, gin.WrapH(c.metrics.Handler()))
	}

	routes.SetupPlanRoutes(r, &routes.PlanRouteConfig{
		PlanHandler: c.hdlrs.planHandler,
	})
	routes.SetupSubscriptionRoutes(r, &routes.SubscriptionRouteConfig{
		SubscriptionHandler: c.hdlrs.subscriptionHandler,
		AuthMiddleware:      c.authMiddleware,
		PurchaseLimiter:     c.purchaseLimiter,
	})
	routes.SetupAdminRoutes(r, &routes.AdminRouteConfig{
		SubscriptionHandler: c.hdlrs.adminSubscriptionHandler,
		AuthMiddleware:      c.authMiddleware,
	})
	routes.SetupPaymentRoutes(r, &routes.PaymentRouteConfig{
		WebhookHandler: c.hdlrs.webhookHandler,
	})

	return nil
}
