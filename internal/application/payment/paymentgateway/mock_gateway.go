package paymentgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// MockGateway is an in-memory gateway for tests and local development.
// Charges succeed unless an error or status is injected.
type MockGateway struct {
	mu      sync.Mutex
	seq     int
	charges map[string]*Charge
	byKey   map[string]string

	// Requests records every CreateCharge call in order.
	Requests []ChargeRequest

	ChargeErr    error
	ChargeStatus ChargeStatus
	Secret       string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		charges: make(map[string]*Charge),
		byKey:   make(map[string]string),
		Secret:  "whsec_mock",
	}
}

func (m *MockGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if err := ctx.Err(); err != nil {
		return nil, &ChargeError{Kind: ChargeErrorNetwork, Message: err.Error(), Err: err}
	}
	if m.ChargeErr != nil {
		return nil, m.ChargeErr
	}
	if id, ok := m.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		c := *m.charges[id]
		return &c, nil
	}

	m.seq++
	status := m.ChargeStatus
	if status == "" {
		status = ChargeSucceeded
	}
	c := &Charge{
		ID:               fmt.Sprintf("pi_mock_%d", m.seq),
		Status:           status,
		Amount:           req.Amount,
		Currency:         req.Currency,
		PaymentMethodRef: req.PaymentMethodRef,
		Metadata:         maps.Clone(req.Metadata),
	}
	if status == ChargeRequiresAction {
		c.ClientSecret = c.ID + "_secret"
	}
	m.charges[c.ID] = c
	if req.IdempotencyKey != "" {
		m.byKey[req.IdempotencyKey] = c.ID
	}
	out := *c
	return &out, nil
}

func (m *MockGateway) GetCharge(ctx context.Context, paymentID string) (*Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.charges[paymentID]
	if !ok {
		return nil, ErrChargeNotFound
	}
	out := *c
	return &out, nil
}

// SetChargeStatus moves a stored charge to status, as the customer
// completing an authentication step would.
func (m *MockGateway) SetChargeStatus(paymentID string, status ChargeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.charges[paymentID]; ok {
		c.Status = status
	}
}

// ParseEvent accepts a JSON-encoded Event signed with the mock secret.
func (m *MockGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if signature != m.Secret {
		return nil, ErrInvalidSignature
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	switch ev.Type {
	case EventPaymentSucceeded, EventPaymentFailed, EventRefunded, EventDisputed:
	default:
		return nil, ErrUnsupportedEvent
	}
	ev.Payload = payload
	return &ev, nil
}

func (m *MockGateway) ChargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
