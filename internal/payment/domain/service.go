package domain

import (
	"context"
	"time"
)

// Service is the signature-verified webhook ingress.
type Service interface {
	Receive(ctx context.Context, payload []byte, signature string) error
}

// Verifier authenticates a raw provider payload and decodes it.
type Verifier interface {
	Verify(payload []byte, signature string) (*PaymentEvent, error)
}

// Classifier maps a verified event onto the normalized payload shape.
type Classifier interface {
	Classify(eventType string, object []byte) (Classification, error)
}

// Recorder merges normalized payments into the document store.
type Recorder interface {
	Record(ctx context.Context, eventType EventType, payload Payload) RecordResult
	Save(ctx context.Context, record Record) RecordResult
	// Resync re-records a payment intent from the provider's current state.
	Resync(ctx context.Context, paymentIntentID string) RecordResult
	Find(ctx context.Context, collection, id string) (Document, error)
}

// Notifier sends the tenant-facing email for metadata-bearing records.
type Notifier interface {
	MaybeNotify(ctx context.Context, record Record) bool
}

// DocumentStore persists documents by collection and key with merge semantics.
type DocumentStore interface {
	// Merge creates the document or updates only the given fields, leaving
	// other stored fields untouched. It reports whether the document was created.
	Merge(ctx context.Context, collection, key string, fields map[string]any, now time.Time) (bool, error)
	Get(ctx context.Context, collection, key string) (Document, error)
}

// IntentFetcher loads a payment intent straight from the provider.
type IntentFetcher interface {
	FetchPaymentIntent(ctx context.Context, id string) (Classification, error)
}
