package http

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	subscriptionUsecases "github.com/rackgrid/rackgrid/internal/application/subscription/usecases"
	"github.com/rackgrid/rackgrid/internal/infrastructure/auth"
	"github.com/rackgrid/rackgrid/internal/infrastructure/cache"
	"github.com/rackgrid/rackgrid/internal/infrastructure/metrics"
	"github.com/rackgrid/rackgrid/internal/infrastructure/notification"
	"github.com/rackgrid/rackgrid/internal/infrastructure/payment"
	"github.com/rackgrid/rackgrid/internal/infrastructure/repository"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/handlers"
	adminHandlers "github.com/rackgrid/rackgrid/internal/interfaces/http/handlers/admin"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/middleware"
	shareddb "github.com/rackgrid/rackgrid/internal/shared/db"
)

// ============================================================
// Section 1: Infrastructure
// ============================================================

func (c *Container) initInfrastructure(ctx context.Context) error {
	cfg := c.cfg
	log := c.log

	if cfg.Redis.Enabled() {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		c.redis = client
		log.Infow("Redis connection established successfully", "addr", cfg.Redis.GetAddr())
	} else {
		log.Warnw("redis not configured; status cache and event dedup disabled")
	}

	c.repos = &repositories{
		subscriptionRepo: repository.NewSubscriptionRepository(c.db, log),
		paymentEventRepo: repository.NewPaymentEventRepository(c.db, log),
	}

	c.jwtSvc = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	c.authMiddleware = middleware.NewAuthMiddleware(c.jwtSvc, log)
	if c.redis != nil && cfg.Server.PurchaseRateLimit > 0 {
		c.purchaseLimiter = middleware.NewRateLimiter(c.redis, "purchase", cfg.Server.PurchaseRateLimit, time.Minute, log)
	}

	c.registry = prometheus.NewRegistry()
	c.metrics = metrics.NewRecorderWith(c.registry)

	gateway, err := c.newGateway()
	if err != nil {
		return err
	}
	c.gateway = gateway

	var sender notification.Sender
	if cfg.Email.Enabled() {
		sender = notification.NewSMTPSender(cfg.Email)
	} else {
		log.Warnw("smtp not configured; notifications are logged only")
	}
	c.notifier = notification.NewDispatcher(sender, cfg.Email, log.Named("notification"))

	return nil
}

// newGateway builds the Stripe gateway. Debug mode without an API key gets
// the in-memory gateway so the server can run locally.
func (c *Container) newGateway() (paymentgateway.Gateway, error) {
	if c.cfg.Stripe.APIKey == "" && c.cfg.Server.Mode == gin.DebugMode {
		c.log.Warnw("stripe api key not set; using in-memory payment gateway")
		return paymentgateway.NewMockGateway(), nil
	}

	gateway, err := payment.NewStripeGateway(c.cfg.Stripe, c.log.Named("stripe"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe gateway: %w", err)
	}
	return gateway, nil
}

// ============================================================
// Section 2: Subscription
// ============================================================

func (c *Container) initSubscription() {
	cfg := c.cfg
	log := c.log.Named("subscription")
	repos := c.repos

	var (
		statusCache subscriptionUsecases.StatusCache       = cache.NoopStatusCache{}
		dedup       subscriptionUsecases.EventDeduplicator = cache.NoopEventDeduplicator{}
	)
	if c.redis != nil {
		statusCache = cache.NewRedisStatusCache(c.redis, cfg.Redis.StatusTTL, log)
		dedup = cache.NewRedisEventDeduplicator(c.redis, cfg.Redis.EventTTL)
	}

	txManager := shareddb.NewTransactionManager(c.db)
	tiering := subscriptionUsecases.NewTieringService(
		repos.subscriptionRepo, repos.paymentEventRepo, statusCache, c.notifier, c.metrics, log,
	)
	currency := cfg.Stripe.Currency

	c.ucs = &allUseCases{
		tiering:         tiering,
		getStatus:       subscriptionUsecases.NewGetStatusUseCase(repos.subscriptionRepo, statusCache, tiering, log),
		listPlans:       subscriptionUsecases.NewListPlansUseCase(currency),
		purchase:        subscriptionUsecases.NewPurchaseUseCase(txManager, tiering, c.gateway, currency, log),
		confirmPayment:  subscriptionUsecases.NewConfirmPaymentUseCase(txManager, tiering, c.gateway, log),
		toggleAutoRenew: subscriptionUsecases.NewToggleAutoRenewUseCase(txManager, repos.subscriptionRepo, tiering, log),
		startTrial:      subscriptionUsecases.NewStartTrialUseCase(txManager, repos.subscriptionRepo, tiering, log),
		adminOverride:   subscriptionUsecases.NewAdminOverrideUseCase(txManager, tiering, log),
		endSubscription: subscriptionUsecases.NewEndSubscriptionUseCase(txManager, repos.subscriptionRepo, tiering, log),
		renew: subscriptionUsecases.NewRenewSubscriptionsUseCase(
			txManager, repos.subscriptionRepo, tiering, c.gateway, c.metrics, currency, cfg.Renewal.Lookahead, log,
		),
		advanceTiers: subscriptionUsecases.NewAdvanceTiersUseCase(txManager, repos.subscriptionRepo, tiering, log),
		reconcile: subscriptionUsecases.NewReconcilePaymentUseCase(
			txManager, repos.subscriptionRepo, repos.paymentEventRepo, tiering, c.gateway, dedup, c.metrics, log,
		),
	}
}

// ============================================================
// Section 3: Handlers
// ============================================================

func (c *Container) initHandlers() {
	log := c.log.Named("http")
	ucs := c.ucs

	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		}
	}

	c.hdlrs = &allHandlers{
		planHandler: handlers.NewPlanHandler(ucs.listPlans),
		subscriptionHandler: handlers.NewSubscriptionHandler(
			ucs.getStatus, ucs.purchase, ucs.confirmPayment, ucs.toggleAutoRenew, ucs.startTrial, log,
		),
		adminSubscriptionHandler: adminHandlers.NewSubscriptionHandler(ucs.adminOverride, ucs.endSubscription, log),
		webhookHandler:           handlers.NewWebhookHandler(ucs.reconcile, log),
		healthHandler:            handlers.NewHealthHandler(checks, log),
	}
}
