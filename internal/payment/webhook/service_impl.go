package webhook

import (
	"context"
	"errors"

	obsmetrics "github.com/smallbiznis/rentpay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/pkg/log"
	"github.com/smallbiznis/rentpay/pkg/log/ctxlogger"
	"github.com/smallbiznis/rentpay/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeAccepted   = "accepted"
	outcomeIgnored    = "ignored"
	outcomeDuplicate  = "duplicate"
	outcomeInvalid    = "invalid"
	outcomeRecorded   = "recorded"
	outcomeFailed     = "failed"
	outcomeUnverified = "unverified"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Verifier   paymentdomain.Verifier
	Classifier paymentdomain.Classifier
	Recorder   paymentdomain.Recorder
	Dispatcher *Dispatcher
	Deduper    Deduper             `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service is the webhook ingress. Receive returns once the event is verified
// and queued; recording happens on the dispatcher.
type Service struct {
	log        *zap.Logger
	verifier   paymentdomain.Verifier
	classifier paymentdomain.Classifier
	recorder   paymentdomain.Recorder
	dispatcher *Dispatcher
	deduper    Deduper
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		verifier:   p.Verifier,
		classifier: p.Classifier,
		recorder:   p.Recorder,
		dispatcher: p.Dispatcher,
		deduper:    p.Deduper,
		obsMetrics: p.ObsMetrics,
	}
}

// Receive only returns an error for signature failures. Everything past the
// signature gate is acknowledged so the provider does not retry.
func (s *Service) Receive(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			log.L(ctx).Warn("webhook signature rejected", zap.Error(err))
			s.obsMetrics.RecordWebhookEvent(ctx, "unknown", outcomeUnverified)
			return err
		}
		log.L(ctx).Warn("webhook event unreadable", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown", outcomeInvalid)
		return nil
	}

	ctx = ctxlogger.ContextWithEvent(ctx, event.ID, event.Type)
	logger := log.L(ctx)

	if s.seen(ctx, event.ID) {
		logger.Info("webhook event already recorded")
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeDuplicate)
		return nil
	}

	classification, err := s.classifier.Classify(event.Type, event.Object)
	switch {
	case errors.Is(err, paymentdomain.ErrEventIgnored):
		logger.Info("webhook event ignored")
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeIgnored)
		return nil
	case err != nil:
		logger.Warn("webhook event skipped", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeInvalid)
		return nil
	}

	s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeAccepted)
	s.dispatcher.Submit(Task{
		Ctx: correlation.Detach(ctx),
		Run: func(taskCtx context.Context) {
			s.record(taskCtx, event.ID, classification)
		},
	})
	return nil
}

func (s *Service) record(ctx context.Context, eventID string, classification paymentdomain.Classification) {
	eventType := classification.EventType.String()
	result := s.recorder.Record(ctx, classification.EventType, classification.Payload)
	if !result.OK() {
		s.obsMetrics.RecordWebhookEvent(ctx, eventType, outcomeFailed)
		return
	}
	s.obsMetrics.RecordWebhookEvent(ctx, eventType, outcomeRecorded)

	if s.deduper == nil {
		return
	}
	if err := s.deduper.Mark(ctx, eventID); err != nil {
		log.L(ctx).Warn("webhook dedupe mark failed", zap.Error(err))
	}
}

func (s *Service) seen(ctx context.Context, eventID string) bool {
	if s.deduper == nil {
		return false
	}
	seen, err := s.deduper.Seen(ctx, eventID)
	if err != nil {
		log.L(ctx).Warn("webhook dedupe lookup failed", zap.Error(err))
		return false
	}
	return seen
}

var _ paymentdomain.Service = (*Service)(nil)
