// Package stripetest builds Stripe-signed webhook payloads for tests.
package stripetest

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader returns a valid Stripe-Signature header for payload.
func SignatureHeader(secret string, payload []byte) string {
	return SignatureHeaderAt(secret, payload, time.Now())
}

func SignatureHeaderAt(secret string, payload []byte, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Header
}

// Event renders a provider event envelope around object.
func Event(id, eventType string, object any) []byte {
	body, err := json.Marshal(map[string]any{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": object,
		},
	})
	if err != nil {
		panic(err)
	}
	return body
}
