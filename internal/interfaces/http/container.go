package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	subscriptionUsecases "github.com/rackgrid/rackgrid/internal/application/subscription/usecases"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	"github.com/rackgrid/rackgrid/internal/infrastructure/auth"
	"github.com/rackgrid/rackgrid/internal/infrastructure/config"
	"github.com/rackgrid/rackgrid/internal/infrastructure/metrics"
	"github.com/rackgrid/rackgrid/internal/infrastructure/notification"
	"github.com/rackgrid/rackgrid/internal/infrastructure/scheduler"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/handlers"
	adminHandlers "github.com/rackgrid/rackgrid/internal/interfaces/http/handlers/admin"
	"github.com/rackgrid/rackgrid/internal/interfaces/http/middleware"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

type repositories struct {
	subscriptionRepo subscription.Repository
	paymentEventRepo subscription.ProcessedEventRepository
}

type allUseCases struct {
	tiering         *subscriptionUsecases.TieringService
	getStatus       *subscriptionUsecases.GetStatusUseCase
	listPlans       *subscriptionUsecases.ListPlansUseCase
	purchase        *subscriptionUsecases.PurchaseUseCase
	confirmPayment  *subscriptionUsecases.ConfirmPaymentUseCase
	toggleAutoRenew *subscriptionUsecases.ToggleAutoRenewUseCase
	startTrial      *subscriptionUsecases.StartTrialUseCase
	adminOverride   *subscriptionUsecases.AdminOverrideUseCase
	endSubscription *subscriptionUsecases.EndSubscriptionUseCase
	renew           *subscriptionUsecases.RenewSubscriptionsUseCase
	advanceTiers    *subscriptionUsecases.AdvanceTiersUseCase
	reconcile       *subscriptionUsecases.ReconcilePaymentUseCase
}

type allHandlers struct {
	planHandler              *handlers.PlanHandler
	subscriptionHandler      *handlers.SubscriptionHandler
	adminSubscriptionHandler *adminHandlers.SubscriptionHandler
	webhookHandler           *handlers.WebhookHandler
	healthHandler            *handlers.HealthHandler
}

// Container holds the infrastructure, use cases and handlers of one process
// and owns their shutdown. The HTTP server and the one-shot CLI commands
// share it.
type Container struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	repos *repositories
	ucs   *allUseCases
	hdlrs *allHandlers

	authMiddleware  *middleware.AuthMiddleware
	purchaseLimiter *middleware.RateLimiter

	jwtSvc           *auth.JWTService
	gateway          paymentgateway.Gateway
	registry         *prometheus.Registry
	metrics          *metrics.Recorder
	notifier         *notification.Dispatcher
	schedulerManager *scheduler.SchedulerManager
}

// NewContainer wires every component. Redis is optional; without it the
// status cache and event dedup fall back to no-ops and the ledger alone
// guarantees idempotency.
func NewContainer(ctx context.Context, cfg *config.Config, db *gorm.DB, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
	}

	// Section 1: Infrastructure - Redis, repositories, gateway, notifier
	if err := c.initInfrastructure(ctx); err != nil {
		return nil, err
	}

	// Section 2: Subscription - tiering engine and use cases
	c.initSubscription()

	// Section 3: Handlers
	c.initHandlers()

	return c, nil
}

// Engine returns the gin engine with every route registered.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// RenewalJob is the renewal batch, for the scheduler and `rackgrid renew`.
func (c *Container) RenewalJob() scheduler.BatchJob {
	return c.ucs.renew
}

// AdvanceJob is the tier advance batch.
func (c *Container) AdvanceJob() scheduler.BatchJob {
	return c.ucs.advanceTiers
}

// Scheduler returns the renewal scheduler with both jobs registered. It is
// created on first use.
func (c *Container) Scheduler() (*scheduler.SchedulerManager, error) {
	if c.schedulerManager != nil {
		return c.schedulerManager, nil
	}

	m, err := scheduler.NewSchedulerManager(c.log.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := m.RegisterSubscriptionJobs(c.cfg.Renewal, c.RenewalJob(), c.AdvanceJob()); err != nil {
		return nil, fmt.Errorf("failed to register subscription jobs: %w", err)
	}
	c.schedulerManager = m
	return m, nil
}

// Shutdown stops the scheduler and closes Redis. The database handle belongs
// to the caller.
func (c *Container) Shutdown() error {
	var errs []error

	if c.schedulerManager != nil {
		if err := c.schedulerManager.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	return errors.Join(errs...)
}
