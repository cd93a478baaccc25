package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/rackgrid/rackgrid/internal/interfaces/http/handlers/testutil"
	"github.com/rackgrid/rackgrid/internal/shared/constants"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
)

type mockWebhookUC struct {
	err       error
	payload   []byte
	signature string
}

func (m *mockWebhookUC) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	m.payload = payload
	m.signature = signature
	return m.err
}

func newWebhookContext(body []byte, signature string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	if signature != "" {
		c.Request.Header.Set(constants.HeaderStripeSignature, signature)
	}
	return c, w
}

func TestWebhookHandler_Stripe_PassesRawBody(t *testing.T) {
	uc := &mockWebhookUC{}
	handler := NewWebhookHandler(uc, testutil.NewMockLogger())

	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	c, w := newWebhookContext(body, "t=1,v1=abc")

	handler.Stripe(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, uc.payload)
	assert.Equal(t, "t=1,v1=abc", uc.signature)
}

func TestWebhookHandler_Stripe_MissingSignature(t *testing.T) {
	uc := &mockWebhookUC{}
	handler := NewWebhookHandler(uc, testutil.NewMockLogger())

	c, w := newWebhookContext([]byte(`{}`), "")

	handler.Stripe(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, uc.payload)
}

func TestWebhookHandler_Stripe_InvalidSignature(t *testing.T) {
	uc := &mockWebhookUC{err: errors.NewUnauthorizedError("invalid webhook signature")}
	handler := NewWebhookHandler(uc, testutil.NewMockLogger())

	c, w := newWebhookContext([]byte(`{}`), "t=1,v1=bad")

	handler.Stripe(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_Stripe_ProcessingFailureAsksForRedelivery(t *testing.T) {
	uc := &mockWebhookUC{err: errors.NewInternalError("failed to apply gateway event")}
	handler := NewWebhookHandler(uc, testutil.NewMockLogger())

	c, w := newWebhookContext([]byte(`{}`), "t=1,v1=abc")

	handler.Stripe(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookHandler_Stripe_TooLarge(t *testing.T) {
	uc := &mockWebhookUC{}
	handler := NewWebhookHandler(uc, testutil.NewMockLogger())

	c, w := newWebhookContext([]byte(strings.Repeat("x", maxWebhookBodyBytes+1)), "t=1,v1=abc")

	handler.Stripe(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Nil(t, uc.payload)
}
