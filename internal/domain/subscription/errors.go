package subscription

import "errors"

var (
	ErrMissingFacility          = errors.New("facility id is required")
	ErrNonPositiveDays          = errors.New("day count must be positive")
	ErrTierQueueCorrupt         = errors.New("tier queue is corrupt")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrSubscriptionAlreadyEnded = errors.New("subscription already ended")
)
