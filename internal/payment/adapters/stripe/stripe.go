package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/rentpay/internal/config"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const SignatureHeader = "Stripe-Signature"

// Verifier checks Stripe webhook signatures using the provider's published scheme.
type Verifier struct {
	secret     string
	tolerance  time.Duration
	apiVersion string
	log        *zap.Logger
}

func NewVerifier(cfg config.Config, log *zap.Logger) *Verifier {
	tolerance := time.Duration(cfg.Stripe.WebhookToleranceSeconds) * time.Second
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		secret:     strings.TrimSpace(cfg.Stripe.WebhookSecret),
		tolerance:  tolerance,
		apiVersion: strings.TrimSpace(cfg.Stripe.APIVersion),
		log:        log.Named("payment.stripe"),
	}
}

func (v *Verifier) Verify(payload []byte, signature string) (*paymentdomain.PaymentEvent, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", paymentdomain.ErrInvalidSignature)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", paymentdomain.ErrInvalidSignature, SignatureHeader)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", paymentdomain.ErrInvalidSignature, err.Error())
	}
	if strings.TrimSpace(event.ID) == "" || event.Data == nil {
		return nil, paymentdomain.ErrInvalidEvent
	}

	expected := v.apiVersion
	if expected == "" {
		expected = stripego.APIVersion
	}
	if event.APIVersion != "" && event.APIVersion != expected {
		v.log.Warn("stripe event api version mismatch",
			zap.String("event_id", event.ID),
			zap.String("event_api_version", event.APIVersion),
			zap.String("expected_api_version", expected),
		)
	}

	return &paymentdomain.PaymentEvent{
		ID:         event.ID,
		Type:       string(event.Type),
		APIVersion: event.APIVersion,
		Created:    timestamp(event.Created),
		Object:     event.Data.Raw,
	}, nil
}

// IntentClient loads payment intents with the configured secret key.
type IntentClient struct {
	client paymentintent.Client
}

func NewIntentClient(cfg config.Config) *IntentClient {
	return &IntentClient{
		client: paymentintent.Client{
			B:   stripego.GetBackend(stripego.APIBackend),
			Key: strings.TrimSpace(cfg.Stripe.SecretKey),
		},
	}
}

// FetchPaymentIntent loads an intent and classifies it as the event that
// would have reported its current status.
func (c *IntentClient) FetchPaymentIntent(ctx context.Context, id string) (paymentdomain.Classification, error) {
	if c == nil || c.client.Key == "" {
		return paymentdomain.Classification{}, paymentdomain.ErrProviderUnavailable
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return paymentdomain.Classification{}, paymentdomain.ErrInvalidEvent
	}

	params := &stripego.PaymentIntentParams{}
	params.Context = ctx
	intent, err := c.client.Get(id, params)
	if err != nil {
		var stripeErr *stripego.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return paymentdomain.Classification{}, paymentdomain.ErrNotFound
		}
		return paymentdomain.Classification{}, fmt.Errorf("%w: %s", paymentdomain.ErrProviderUnavailable, err.Error())
	}

	return paymentdomain.Classification{
		EventType: EventTypeForIntentStatus(string(intent.Status)),
		Payload: paymentdomain.Payload{
			ID:     intent.ID,
			Amount: intent.Amount,
			Status: string(intent.Status),
		},
	}, nil
}

// EventTypeForIntentStatus maps a fetched intent status onto the event that
// would have reported it.
func EventTypeForIntentStatus(status string) paymentdomain.EventType {
	switch stripego.PaymentIntentStatus(strings.TrimSpace(status)) {
	case stripego.PaymentIntentStatusSucceeded:
		return paymentdomain.EventPaymentIntentSucceeded
	case stripego.PaymentIntentStatusProcessing:
		return paymentdomain.EventPaymentIntentProcessing
	default:
		return paymentdomain.EventPaymentIntentCreated
	}
}

func timestamp(value int64) time.Time {
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
