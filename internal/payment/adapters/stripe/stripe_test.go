package stripe

import (
	"testing"
	"time"

	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/payment/adapters/stripe/stripetest"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "whsec_test"

func newTestVerifier(secret string) *Verifier {
	return NewVerifier(config.Config{Stripe: config.StripeConfig{WebhookSecret: secret}}, zap.NewNop())
}

func TestVerifySignature(t *testing.T) {
	payload := stripetest.Event("evt_123", "charge.succeeded", map[string]any{
		"id":             "ch_1",
		"payment_intent": "pi_1",
	})

	event, err := newTestVerifier(testSecret).Verify(payload, stripetest.SignatureHeader(testSecret, payload))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, "charge.succeeded", event.Type)
	assert.JSONEq(t, `{"id":"ch_1","payment_intent":"pi_1"}`, string(event.Object))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := stripetest.Event("evt_123", "charge.succeeded", map[string]any{"id": "ch_1"})

	_, err := newTestVerifier(testSecret).Verify(payload, stripetest.SignatureHeader("whsec_other", payload))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	payload := stripetest.Event("evt_123", "charge.succeeded", map[string]any{"id": "ch_1", "amount": 100})
	header := stripetest.SignatureHeader(testSecret, payload)
	tampered := stripetest.Event("evt_123", "charge.succeeded", map[string]any{"id": "ch_1", "amount": 1})

	_, err := newTestVerifier(testSecret).Verify(tampered, header)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	payload := stripetest.Event("evt_123", "charge.succeeded", map[string]any{"id": "ch_1"})

	_, err := newTestVerifier(testSecret).Verify(payload, "  ")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestVerifyRejectsExpiredTimestamp(t *testing.T) {
	payload := stripetest.Event("evt_123", "charge.succeeded", map[string]any{"id": "ch_1"})
	header := stripetest.SignatureHeaderAt(testSecret, payload, time.Now().Add(-time.Hour))

	_, err := newTestVerifier(testSecret).Verify(payload, header)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestVerifyWithoutConfiguredSecret(t *testing.T) {
	payload := stripetest.Event("evt_123", "charge.succeeded", map[string]any{"id": "ch_1"})

	_, err := newTestVerifier("").Verify(payload, stripetest.SignatureHeader(testSecret, payload))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestEventTypeForIntentStatus(t *testing.T) {
	assert.Equal(t, paymentdomain.EventPaymentIntentSucceeded, EventTypeForIntentStatus("succeeded"))
	assert.Equal(t, paymentdomain.EventPaymentIntentProcessing, EventTypeForIntentStatus("processing"))
	assert.Equal(t, paymentdomain.EventPaymentIntentCreated, EventTypeForIntentStatus("requires_payment_method"))
}

func TestFetchPaymentIntentWithoutKey(t *testing.T) {
	_, err := NewIntentClient(config.Config{}).FetchPaymentIntent(t.Context(), "pi_1")
	assert.ErrorIs(t, err, paymentdomain.ErrProviderUnavailable)
}
