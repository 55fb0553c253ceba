package classifier

import (
	"encoding/json"
	"strings"

	"github.com/smallbiznis/rentpay/internal/payment/domain"
)

// Classifier reconciles the provider's per-family object shapes into one
// payload keyed for the recorder.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

type paymentIntentObject struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type chargeObject struct {
	ID                   string              `json:"id"`
	PaymentIntent        domain.ExpandableID `json:"payment_intent"`
	Amount               int64               `json:"amount"`
	Status               string              `json:"status"`
	PaymentMethod        domain.ExpandableID `json:"payment_method"`
	PaymentMethodDetails map[string]any      `json:"payment_method_details"`
	ReceiptURL           string              `json:"receipt_url"`
}

// Classify returns domain.ErrEventIgnored for event types outside the closed set.
func (c *Classifier) Classify(eventType string, object []byte) (domain.Classification, error) {
	parsed, ok := domain.ParseEventType(eventType)
	if !ok {
		return domain.Classification{}, domain.ErrEventIgnored
	}

	switch parsed.Family() {
	case domain.FamilyPaymentIntent:
		return classifyPaymentIntent(parsed, object)
	case domain.FamilyCheckoutSession:
		return classifyCheckoutSession(parsed, object)
	case domain.FamilyCharge:
		return classifyCharge(parsed, object)
	default:
		return domain.Classification{}, domain.ErrEventIgnored
	}
}

func classifyPaymentIntent(eventType domain.EventType, object []byte) (domain.Classification, error) {
	var intent paymentIntentObject
	if err := json.Unmarshal(object, &intent); err != nil {
		return domain.Classification{}, domain.ErrInvalidPayload
	}
	id := strings.TrimSpace(intent.ID)
	if id == "" {
		return domain.Classification{}, domain.ErrInvalidEvent
	}

	return domain.Classification{
		EventType: eventType,
		Payload: domain.Payload{
			ID:     id,
			Amount: intent.Amount,
			Status: strings.TrimSpace(intent.Status),
		},
	}, nil
}

func classifyCheckoutSession(eventType domain.EventType, object []byte) (domain.Classification, error) {
	var session domain.Payload
	if err := json.Unmarshal(object, &session); err != nil {
		return domain.Classification{}, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return domain.Classification{}, domain.ErrInvalidEvent
	}
	if session.HasMetadata() && session.PaymentIntent == "" {
		return domain.Classification{}, domain.ErrMissingPaymentIntent
	}

	return domain.Classification{
		EventType: eventType,
		Payload:   session,
	}, nil
}

func classifyCharge(eventType domain.EventType, object []byte) (domain.Classification, error) {
	var charge chargeObject
	if err := json.Unmarshal(object, &charge); err != nil {
		return domain.Classification{}, domain.ErrInvalidPayload
	}
	if charge.PaymentIntent == "" {
		return domain.Classification{}, domain.ErrMissingPaymentIntent
	}

	payload := domain.Payload{
		// Charges are keyed by the intent they settle, not by their own id.
		ID:                   charge.PaymentIntent.String(),
		Amount:               charge.Amount,
		Status:               strings.TrimSpace(charge.Status),
		PaymentMethod:        charge.PaymentMethod,
		PaymentMethodDetails: charge.PaymentMethodDetails,
	}
	if eventType == domain.EventChargeSucceeded {
		payload.ReceiptURL = strings.TrimSpace(charge.ReceiptURL)
	}

	return domain.Classification{
		EventType: eventType,
		Payload:   payload,
	}, nil
}
