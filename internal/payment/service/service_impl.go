package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/rentpay/internal/clock"
	obsmetrics "github.com/smallbiznis/rentpay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/pkg/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Store      paymentdomain.DocumentStore
	Clock      clock.Clock
	Notifier   paymentdomain.Notifier      `optional:"true"`
	Fetcher    paymentdomain.IntentFetcher `optional:"true"`
	ObsMetrics *obsmetrics.Metrics         `optional:"true"`
}

// Service is the idempotent payment recorder. Every write is a merge keyed by
// payment intent, so replays and out-of-order deliveries converge.
type Service struct {
	log        *zap.Logger
	store      paymentdomain.DocumentStore
	clock      clock.Clock
	notifier   paymentdomain.Notifier
	fetcher    paymentdomain.IntentFetcher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		log:        p.Log.Named("payment.service"),
		store:      p.Store,
		clock:      c,
		notifier:   p.Notifier,
		fetcher:    p.Fetcher,
		obsMetrics: p.ObsMetrics,
	}
}

// Record normalizes a classified payload and merges it into its partition.
// Write failures are reported in the result and never escalated.
func (s *Service) Record(ctx context.Context, eventType paymentdomain.EventType, payload paymentdomain.Payload) paymentdomain.RecordResult {
	record, collection, key := normalize(eventType, payload)
	if key == "" {
		err := paymentdomain.ErrInvalidEvent
		if collection == paymentdomain.CollectionRents {
			err = paymentdomain.ErrMissingPaymentIntent
		}
		log.L(ctx).Warn("payment record skipped, no document key",
			zap.String("event_type", eventType.String()),
			zap.String("collection", collection),
		)
		return paymentdomain.RecordResult{Collection: collection, Err: err}
	}
	return s.persist(ctx, collection, key, record)
}

// Save routes an already normalized record the same way Record does.
func (s *Service) Save(ctx context.Context, record paymentdomain.Record) paymentdomain.RecordResult {
	record.PaymentIntentID = strings.TrimSpace(record.PaymentIntentID)
	if record.PaymentIntentID == "" {
		return paymentdomain.RecordResult{Err: paymentdomain.ErrInvalidEvent}
	}
	if record.Method == "" {
		record.Method = paymentdomain.MethodStripe
	}
	if record.HasMetadata() {
		if record.CreatedBy == "" {
			record.CreatedBy = record.TenantID
		}
		if record.UpdatedBy == "" {
			record.UpdatedBy = record.TenantID
		}
	}
	return s.persist(ctx, record.Collection(), record.PaymentIntentID, record)
}

// Resync fetches the intent's current state from the provider and records it
// as a bare status update.
func (s *Service) Resync(ctx context.Context, paymentIntentID string) paymentdomain.RecordResult {
	if s.fetcher == nil {
		return paymentdomain.RecordResult{Err: paymentdomain.ErrProviderUnavailable}
	}
	classification, err := s.fetcher.FetchPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		log.L(ctx).Warn("payment intent fetch failed",
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err),
		)
		return paymentdomain.RecordResult{DocumentID: paymentIntentID, Err: err}
	}
	return s.Record(ctx, classification.EventType, classification.Payload)
}

func (s *Service) Find(ctx context.Context, collection, id string) (paymentdomain.Document, error) {
	if !paymentdomain.IsPaymentCollection(collection) {
		return nil, paymentdomain.ErrInvalidCollection
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, paymentdomain.ErrNotFound
	}
	return s.store.Get(ctx, collection, id)
}

func (s *Service) persist(ctx context.Context, collection, key string, record paymentdomain.Record) paymentdomain.RecordResult {
	now := s.clock.Now()
	record.UpdatedOn = now
	logger := log.L(ctx).With(
		zap.String("collection", collection),
		zap.String("document_id", key),
		zap.String("event_type", record.StripeEventType),
	)

	created, err := s.store.Merge(ctx, collection, key, record.Fields(), now)
	if err != nil {
		logger.Error("payment record write failed", zap.Error(err))
		s.obsMetrics.RecordPaymentRecord(ctx, collection, record.StripeEventType, "failed")
		return paymentdomain.RecordResult{Collection: collection, DocumentID: key, Err: err}
	}
	logger.Info("payment recorded", zap.Bool("created", created))
	s.obsMetrics.RecordPaymentRecord(ctx, collection, record.StripeEventType, "ok")

	result := paymentdomain.RecordResult{
		Collection: collection,
		DocumentID: key,
		Created:    created,
	}
	if collection == paymentdomain.CollectionRents && s.notifier != nil {
		result.Notified = s.notifier.MaybeNotify(ctx, record)
	}
	return result
}

var _ paymentdomain.Recorder = (*Service)(nil)
