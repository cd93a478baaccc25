package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/rackgrid/rackgrid/internal/application/payment/paymentgateway"
	"github.com/rackgrid/rackgrid/internal/shared/config"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

// StripeGateway charges stored payment methods through PaymentIntents and
// verifies Stripe webhook deliveries.
type StripeGateway struct {
	intents       paymentintent.Client
	webhookSecret string
	logger        logger.Interface
}

func NewStripeGateway(cfg config.StripeConfig, log logger.Interface) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.RequestTimeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	return &StripeGateway{
		intents: paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.APIKey,
		},
		webhookSecret: cfg.WebhookSecret,
		logger:        log,
	}, nil
}

// CreateCharge creates and confirms a PaymentIntent. A payment method ref of
// the form "cus_x/pm_y" also attaches the customer.
func (g *StripeGateway) CreateCharge(ctx context.Context, req paymentgateway.ChargeRequest) (*paymentgateway.Charge, error) {
	customerID, paymentMethodID := splitPaymentMethodRef(req.PaymentMethodRef)

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(paymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	if req.OffSession {
		params.OffSession = stripe.Bool(true)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return toCharge(pi), nil
}

func (g *StripeGateway) GetCharge(ctx context.Context, paymentID string) (*paymentgateway.Charge, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.intents.Get(paymentID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, paymentgateway.ErrChargeNotFound
		}
		return nil, translateStripeError(err)
	}
	return toCharge(pi), nil
}

func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*paymentgateway.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		g.logger.Warnw("stripe webhook signature verification failed", "error", err)
		return nil, fmt.Errorf("%w: %v", paymentgateway.ErrInvalidSignature, err)
	}

	out := &paymentgateway.Event{
		ID:          event.ID,
		GatewayType: string(event.Type),
		Payload:     payload,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to parse payment intent event: %w", err)
		}
		out.Type = paymentgateway.EventPaymentSucceeded
		if event.Type == "payment_intent.payment_failed" {
			out.Type = paymentgateway.EventPaymentFailed
		}
		out.PaymentID = pi.ID
		out.Amount = pi.Amount
		out.Metadata = pi.Metadata
		out.PaymentMethodRef = paymentMethodRefOf(&pi)
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("failed to parse charge event: %w", err)
		}
		out.Type = paymentgateway.EventRefunded
		out.Amount = ch.Amount
		out.AmountRefunded = ch.AmountRefunded
		out.FullRefund = ch.Refunded
		out.Metadata = ch.Metadata
		if ch.PaymentIntent != nil {
			out.PaymentID = ch.PaymentIntent.ID
		}
	case "charge.dispute.created":
		var d stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &d); err != nil {
			return nil, fmt.Errorf("failed to parse dispute event: %w", err)
		}
		out.Type = paymentgateway.EventDisputed
		out.DisputeID = d.ID
		out.DisputeReason = string(d.Reason)
		out.Amount = d.Amount
		if d.PaymentIntent != nil {
			out.PaymentID = d.PaymentIntent.ID
		}
	default:
		return nil, fmt.Errorf("%w: %s", paymentgateway.ErrUnsupportedEvent, event.Type)
	}

	if out.PaymentID == "" {
		return nil, fmt.Errorf("event %s carries no payment intent", event.ID)
	}
	return out, nil
}

func toCharge(pi *stripe.PaymentIntent) *paymentgateway.Charge {
	c := &paymentgateway.Charge{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
		Metadata:     pi.Metadata,
	}
	c.PaymentMethodRef = paymentMethodRefOf(pi)
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		c.Status = paymentgateway.ChargeSucceeded
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		c.Status = paymentgateway.ChargeRequiresAction
	case stripe.PaymentIntentStatusProcessing:
		c.Status = paymentgateway.ChargeProcessing
	default:
		c.Status = paymentgateway.ChargeFailed
	}
	return c
}

func translateStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &paymentgateway.ChargeError{Kind: paymentgateway.ChargeErrorNetwork, Message: err.Error(), Err: err}
	}

	ce := &paymentgateway.ChargeError{Code: string(se.Code), Message: se.Msg, Err: err}
	switch {
	case se.Type == stripe.ErrorTypeCard:
		ce.Kind = paymentgateway.ChargeErrorDeclined
		if se.DeclineCode != "" {
			ce.Code = string(se.DeclineCode)
		}
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		ce.Kind = paymentgateway.ChargeErrorAuth
	case se.HTTPStatusCode == http.StatusTooManyRequests:
		ce.Kind = paymentgateway.ChargeErrorRateLimited
	default:
		ce.Kind = paymentgateway.ChargeErrorAPI
	}
	return ce
}

func splitPaymentMethodRef(ref string) (customerID, paymentMethodID string) {
	if cus, pm, ok := strings.Cut(ref, "/"); ok {
		return cus, pm
	}
	return "", ref
}

// paymentMethodRefOf is the inverse of splitPaymentMethodRef: a payment
// method attached to a customer is stored as "cus_x/pm_y" so off-session
// renewals charge it on behalf of that customer.
func paymentMethodRefOf(pi *stripe.PaymentIntent) string {
	if pi.PaymentMethod == nil || pi.PaymentMethod.ID == "" {
		return ""
	}
	if pi.Customer != nil && pi.Customer.ID != "" {
		return pi.Customer.ID + "/" + pi.PaymentMethod.ID
	}
	return pi.PaymentMethod.ID
}
