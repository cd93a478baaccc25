package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/domain/subscription"
	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/infrastructure/persistence/models"
	"github.com/rackgrid/rackgrid/internal/infrastructure/repository"
	"github.com/rackgrid/rackgrid/internal/shared/db"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	t        *testing.T
	gdb      *gorm.DB
	repo     subscription.Repository
	events   subscription.ProcessedEventRepository
	tx       *db.TransactionManager
	gateway  *funcGateway
	cache    *fakeCache
	dedup    *fakeDedup
	notifier *fakeNotifier
	metrics  *fakeMetrics
	tiering  *TieringService
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(models.All()...))

	log := logger.NewNop()
	h := &harness{
		t:        t,
		gdb:      gdb,
		repo:     repository.NewSubscriptionRepository(gdb, log),
		events:   repository.NewPaymentEventRepository(gdb, log),
		tx:       db.NewTransactionManager(gdb),
		gateway:  &funcGateway{MockGateway: paymentgateway.NewMockGateway()},
		cache:    newFakeCache(),
		dedup:    newFakeDedup(),
		notifier: &fakeNotifier{},
		metrics:  newFakeMetrics(),
		now:      testNow,
	}
	h.tiering = NewTieringService(h.repo, h.events, h.cache, h.notifier, h.metrics, log)
	h.tiering.SetClock(func() time.Time { return h.now })
	return h
}

// seed stores a subscription as if plan had been bought for days at start.
func (h *harness) seed(facilityID string, plan vo.PlanID, days int, start time.Time) *subscription.Subscription {
	h.t.Helper()
	sub, err := subscription.NewSubscription(facilityID, start)
	require.NoError(h.t, err)
	_, err = subscription.ApplyPurchase(sub, nil, plan, days, start)
	require.NoError(h.t, err)
	require.NoError(h.t, h.repo.Create(context.Background(), sub))
	return sub
}

// seedRenewable stores an auto-renewing subscription with a card on file.
func (h *harness) seedRenewable(facilityID string, plan vo.PlanID, days int, start time.Time) *subscription.Subscription {
	h.t.Helper()
	sub := h.seed(facilityID, plan, days, start)
	sub.SetRenewalTerms(vo.BillingPeriodOneMonth, "cus_1/pm_card")
	sub.SetAutoRenew(true)
	require.NoError(h.t, h.repo.Update(context.Background(), sub))
	return sub
}

func (h *harness) load(facilityID string) (*subscription.Subscription, []subscription.Tier) {
	h.t.Helper()
	ctx := context.Background()
	sub, err := h.repo.GetByFacilityID(ctx, facilityID)
	require.NoError(h.t, err)
	if sub == nil {
		return nil, nil
	}
	tiers, err := h.repo.ListTiers(ctx, sub.ID())
	require.NoError(h.t, err)
	return sub, tiers
}

// funcGateway lets a test replace CreateCharge while keeping the mock's
// bookkeeping for everything else.
type funcGateway struct {
	*paymentgateway.MockGateway
	createFn func(ctx context.Context, req paymentgateway.ChargeRequest) (*paymentgateway.Charge, error)
}

func (g *funcGateway) CreateCharge(ctx context.Context, req paymentgateway.ChargeRequest) (*paymentgateway.Charge, error) {
	if g.createFn != nil {
		return g.createFn(ctx, req)
	}
	return g.MockGateway.CreateCharge(ctx, req)
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]*dto.StatusDTO
	versions    map[string]int64
	invalidated []string
	// beforeSet runs once, just before the next Set compares versions.
	beforeSet func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries:  make(map[string]*dto.StatusDTO),
		versions: make(map[string]int64),
	}
}

func (c *fakeCache) Get(ctx context.Context, facilityID string) (*dto.StatusDTO, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[facilityID], c.versions[facilityID], nil
}

func (c *fakeCache) Set(ctx context.Context, facilityID string, version int64, status *dto.StatusDTO) (bool, error) {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[facilityID] != version {
		return false, nil
	}
	c.entries[facilityID] = status
	return true, nil
}

func (c *fakeCache) Invalidate(ctx context.Context, facilityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, facilityID)
	c.versions[facilityID]++
	c.invalidated = append(c.invalidated, facilityID)
	return nil
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]bool)}
}

func (d *fakeDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *fakeDedup) MarkSeen(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}

func (d *fakeDedup) forget() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]bool)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

func (n *fakeNotifier) categories() []NotificationCategory {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationCategory, 0, len(n.sent))
	for _, note := range n.sent {
		out = append(out, note.Category)
	}
	return out
}

type fakeMetrics struct {
	mu       sync.Mutex
	renewals map[string]int
	events   map[string]int
	runs     map[string]int
	repairs  int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		renewals: make(map[string]int),
		events:   make(map[string]int),
		runs:     make(map[string]int),
	}
}

func (m *fakeMetrics) RenewalAttempt(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renewals[outcome]++
}

func (m *fakeMetrics) GatewayEvent(eventType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventType+"/"+outcome]++
}

func (m *fakeMetrics) TieringRun(trigger string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[trigger]++
}

func (m *fakeMetrics) TierQueueRepaired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairs++
}
