package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// EventType is the closed set of provider event types the service reconciles.
// Anything outside this set is ignored.
type EventType string

const (
	EventPaymentIntentCreated    EventType = "payment_intent.created"
	EventPaymentIntentProcessing EventType = "payment_intent.processing"
	EventPaymentIntentSucceeded  EventType = "payment_intent.succeeded"

	EventCheckoutSessionCompleted             EventType = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
	EventCheckoutSessionAsyncPaymentFailed    EventType = "checkout.session.async_payment_failed"

	EventChargeFailed    EventType = "charge.failed"
	EventChargePending   EventType = "charge.pending"
	EventChargeSucceeded EventType = "charge.succeeded"
	EventChargeUpdated   EventType = "charge.updated"
)

// EventFamily groups event types that share a payload shape.
type EventFamily int

const (
	FamilyUnknown EventFamily = iota
	FamilyPaymentIntent
	FamilyCheckoutSession
	FamilyCharge
)

func (f EventFamily) String() string {
	switch f {
	case FamilyPaymentIntent:
		return "payment_intent"
	case FamilyCheckoutSession:
		return "checkout_session"
	case FamilyCharge:
		return "charge"
	default:
		return "unknown"
	}
}

// ParseEventType maps a raw provider string onto the closed enumeration.
func ParseEventType(raw string) (EventType, bool) {
	eventType := EventType(strings.TrimSpace(raw))
	if eventType.Family() == FamilyUnknown {
		return "", false
	}
	return eventType, true
}

func (t EventType) Family() EventFamily {
	switch t {
	case EventPaymentIntentCreated,
		EventPaymentIntentProcessing,
		EventPaymentIntentSucceeded:
		return FamilyPaymentIntent
	case EventCheckoutSessionCompleted,
		EventCheckoutSessionAsyncPaymentSucceeded,
		EventCheckoutSessionAsyncPaymentFailed:
		return FamilyCheckoutSession
	case EventChargeFailed,
		EventChargePending,
		EventChargeSucceeded,
		EventChargeUpdated:
		return FamilyCharge
	default:
		return FamilyUnknown
	}
}

func (t EventType) String() string { return string(t) }

// PaymentEvent is a verified provider event before classification.
type PaymentEvent struct {
	ID         string
	Type       string
	APIVersion string
	Created    time.Time
	Object     json.RawMessage
}

// Payload is the normalized object shape handed from the classifier to the recorder.
// Field names follow the provider's wire format.
type Payload struct {
	ID                   string           `json:"id"`
	PaymentIntent        ExpandableID     `json:"payment_intent,omitempty"`
	Amount               int64            `json:"amount,omitempty"`
	AmountTotal          int64            `json:"amount_total,omitempty"`
	Status               string           `json:"status,omitempty"`
	PaymentStatus        string           `json:"payment_status,omitempty"`
	PaymentMethod        ExpandableID     `json:"payment_method,omitempty"`
	PaymentMethodDetails map[string]any   `json:"payment_method_details,omitempty"`
	ReceiptURL           string           `json:"receipt_url,omitempty"`
	CustomerEmail        string           `json:"customer_email,omitempty"`
	CustomerDetails      *CustomerDetails `json:"customer_details,omitempty"`
	Metadata             Metadata         `json:"metadata,omitempty"`
	PaymentMethodOptions map[string]any   `json:"payment_method_options,omitempty"`
}

type CustomerDetails struct {
	Email string `json:"email,omitempty"`
}

// HasMetadata reports whether the payload was initiated by the tenant-facing app.
func (p Payload) HasMetadata() bool {
	for _, value := range p.Metadata {
		if strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

// Metadata is the provider's string-valued metadata map. Non-string scalars
// are accepted and rendered as strings.
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	out := make(Metadata, len(raw))
	for key, value := range raw {
		switch cast := value.(type) {
		case nil:
			continue
		case string:
			out[key] = cast
		case json.Number:
			out[key] = cast.String()
		case bool:
			if cast {
				out[key] = "true"
			} else {
				out[key] = "false"
			}
		default:
			encoded, err := json.Marshal(cast)
			if err != nil {
				return err
			}
			out[key] = string(encoded)
		}
	}
	*m = out
	return nil
}

// Get returns the trimmed value of the first non-empty key.
func (m Metadata) Get(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(m[key]); value != "" {
			return value
		}
	}
	return ""
}

// ExpandableID accepts either a bare identifier or an expanded object carrying an id.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = ExpandableID(strings.TrimSpace(id))
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(strings.TrimSpace(obj.ID))
	return nil
}

func (e ExpandableID) String() string { return string(e) }

// Classification is the classifier's verdict for one event.
type Classification struct {
	EventType EventType
	Payload   Payload
}
