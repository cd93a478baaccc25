package subscription

import (
	"context"
	"time"
)

// Repository persists subscriptions and their Tier Queues. Methods that end
// in ForUpdate take a row lock and must run inside a transaction. Lookups
// return (nil, nil) when nothing matches.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	// CreateIfAbsent inserts sub unless the facility already has a record,
	// and reports whether it inserted. It does not fail on the conflict.
	CreateIfAbsent(ctx context.Context, sub *Subscription) (bool, error)
	Update(ctx context.Context, sub *Subscription) error
	GetByFacilityID(ctx context.Context, facilityID string) (*Subscription, error)
	GetByFacilityIDForUpdate(ctx context.Context, facilityID string) (*Subscription, error)
	GetByLastPaymentIDForUpdate(ctx context.Context, paymentID string) (*Subscription, error)

	ListTiers(ctx context.Context, subscriptionID uint) ([]Tier, error)
	ReplaceTiers(ctx context.Context, subscriptionID uint, tiers []Tier) error

	// ListDueForRenewal returns facility ids of active auto-renewing
	// subscriptions with a stored payment method ending at or before horizon.
	ListDueForRenewal(ctx context.Context, horizon time.Time, limit int) ([]string, error)
	// ListLapsed returns facility ids of active subscriptions whose end date
	// is at or before now.
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// ProcessedEvent is a gateway event that has been applied. The ledger makes
// redelivery a no-op.
type ProcessedEvent struct {
	EventID     string
	EventType   string
	PaymentID   string
	FacilityID  string
	Outcome     string
	Payload     []byte
	ProcessedAt time.Time
}

type ProcessedEventRepository interface {
	// Record inserts the event and reports false when its id is already
	// present.
	Record(ctx context.Context, event *ProcessedEvent) (bool, error)
	Exists(ctx context.Context, eventID string) (bool, error)
}
