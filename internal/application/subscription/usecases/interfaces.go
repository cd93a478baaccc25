package usecases

import (
	"context"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
)

// TransactionRunner runs fn in one database transaction carried by ctx.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type NotificationCategory string

const (
	CategoryPurchased       NotificationCategory = "subscription_purchased"
	CategoryRenewed         NotificationCategory = "subscription_renewed"
	CategoryRenewalFailed   NotificationCategory = "renewal_failed"
	CategoryEnded           NotificationCategory = "subscription_ended"
	CategoryRefunded        NotificationCategory = "payment_refunded"
	CategoryDisputed        NotificationCategory = "payment_disputed"
	CategoryPartialRefund   NotificationCategory = "partial_refund"
	CategoryTierQueueRepair NotificationCategory = "tier_queue_repaired"
	// CategoryRenewalOverlap reports a renewal charge captured after the
	// interval it paid for had already been extended. It needs a refund.
	CategoryRenewalOverlap NotificationCategory = "renewal_overlap"
)

// ForOperators reports whether the category is addressed to operators
// rather than to the facility's members.
func (c NotificationCategory) ForOperators() bool {
	switch c {
	case CategoryRefunded, CategoryDisputed, CategoryPartialRefund, CategoryTierQueueRepair, CategoryRenewalOverlap:
		return true
	}
	return false
}

type Notification struct {
	FacilityID  string
	Category    NotificationCategory
	Message     string
	ReferenceID string
}

// Notifier hands a notification off for delivery. It must not block on the
// delivery itself.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// StatusCache holds rendered statuses. Get returns a nil status on a miss
// along with the facility's cache version. Set writes only while that
// version is current, and Invalidate moves it on, so a status loaded before
// a change cannot be cached after it.
type StatusCache interface {
	Get(ctx context.Context, facilityID string) (*dto.StatusDTO, int64, error)
	Set(ctx context.Context, facilityID string, version int64, status *dto.StatusDTO) (bool, error)
	Invalidate(ctx context.Context, facilityID string) error
}

// EventDeduplicator remembers gateway events that were fully handled so
// redeliveries can be acknowledged without opening a transaction.
type EventDeduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

// Tiering triggers.
const (
	TriggerPurchase      = "purchase"
	TriggerConfirm       = "confirm"
	TriggerRenewal       = "renewal"
	TriggerAdminOverride = "admin_override"
	TriggerWebhook       = "webhook"
)

// Renewal and gateway event outcomes.
const (
	OutcomeRenewed   = "renewed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeOverlap   = "overlap"
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

type MetricsRecorder interface {
	RenewalAttempt(outcome string)
	GatewayEvent(eventType, outcome string)
	TieringRun(trigger string)
	TierQueueRepaired()
}
