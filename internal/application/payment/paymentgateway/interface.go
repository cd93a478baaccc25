// Package paymentgateway is the port to the external payment processor.
package paymentgateway

import (
	"context"
	"errors"
	"fmt"
)

// Metadata keys stamped on every charge so asynchronous events can be
// routed back to a facility.
const (
	MetaFacilityID  = "facility_id"
	MetaUserID      = "user_id"
	MetaPlan        = "plan"
	MetaDays        = "days"
	MetaPeriod      = "period"
	MetaAutoRenew   = "auto_renew"
	MetaAutoRenewal = "auto_renewal"
)

type ChargeStatus string

const (
	ChargeSucceeded      ChargeStatus = "succeeded"
	ChargeRequiresAction ChargeStatus = "requires_action"
	ChargeProcessing     ChargeStatus = "processing"
	ChargeFailed         ChargeStatus = "failed"
)

type ChargeRequest struct {
	PaymentMethodRef string
	Amount           int64
	Currency         string
	Metadata         map[string]string
	// OffSession marks a charge made without the customer present.
	OffSession     bool
	IdempotencyKey string
}

type Charge struct {
	ID               string
	Status           ChargeStatus
	Amount           int64
	Currency         string
	PaymentMethodRef string
	ClientSecret     string
	Metadata         map[string]string
}

type EventType string

const (
	EventPaymentSucceeded EventType = "succeeded"
	EventPaymentFailed    EventType = "failed"
	EventRefunded         EventType = "refunded"
	EventDisputed         EventType = "disputed"
)

// Event is a verified asynchronous notification from the gateway.
type Event struct {
	ID               string
	Type             EventType
	GatewayType      string
	PaymentID        string
	PaymentMethodRef string
	Metadata         map[string]string
	Amount           int64
	AmountRefunded   int64
	FullRefund       bool
	DisputeID        string
	DisputeReason    string
	Payload          []byte
}

type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetCharge(ctx context.Context, paymentID string) (*Charge, error)
	// ParseEvent verifies the signature and decodes the payload. Event types
	// the engine does not consume return ErrUnsupportedEvent.
	ParseEvent(payload []byte, signature string) (*Event, error)
}

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnsupportedEvent = errors.New("unsupported event type")
	ErrChargeNotFound   = errors.New("charge not found")
)

type ChargeErrorKind string

const (
	ChargeErrorDeclined    ChargeErrorKind = "declined"
	ChargeErrorNetwork     ChargeErrorKind = "network"
	ChargeErrorAuth        ChargeErrorKind = "auth"
	ChargeErrorRateLimited ChargeErrorKind = "rate_limited"
	ChargeErrorAPI         ChargeErrorKind = "api"
)

// ChargeError is returned when the gateway refused or could not process a
// charge. Nothing was captured.
type ChargeError struct {
	Kind    ChargeErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ChargeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("charge %s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("charge %s: %s", e.Kind, e.Message)
}

func (e *ChargeError) Unwrap() error {
	return e.Err
}

// AsChargeError extracts a *ChargeError from err.
func AsChargeError(err error) (*ChargeError, bool) {
	var ce *ChargeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
