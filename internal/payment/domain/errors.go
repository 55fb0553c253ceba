package domain

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrEventIgnored         = errors.New("event_ignored")
	ErrMissingPaymentIntent = errors.New("missing_payment_intent")
	ErrInvalidCollection    = errors.New("invalid_collection")
	ErrNotFound             = errors.New("not_found")
	ErrStoreUnavailable     = errors.New("store_unavailable")
	ErrProviderUnavailable  = errors.New("provider_unavailable")
)
