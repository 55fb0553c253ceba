package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentpay/internal/clock"
	"github.com/smallbiznis/rentpay/internal/config"
	obsmetrics "github.com/smallbiznis/rentpay/internal/observability/metrics"
	"github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/internal/providers/email"
	"github.com/smallbiznis/rentpay/pkg/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"

	outcomeDuplicate = "duplicate"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Store      domain.DocumentStore
	Email      email.Provider
	Templates  *config.NotificationConfigHolder
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service emails the tenant about payments that came from the tenant-facing app.
type Service struct {
	log        *zap.Logger
	store      domain.DocumentStore
	email      email.Provider
	templates  *config.NotificationConfigHolder
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("notification.service"),
		store:      p.Store,
		email:      p.Email,
		templates:  p.Templates,
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

// NotificationKey identifies the email for one payment status. A redelivered
// event maps onto the same key; a status change gets a new one.
func NotificationKey(record domain.Record) string {
	status := strings.ToLower(strings.TrimSpace(record.Status))
	if status == "" {
		status = "unknown"
	}
	return strings.TrimSpace(record.PaymentIntentID) + ":" + status
}

// MaybeNotify sends the payment email when the record carries tenant metadata
// and no email for the same payment status has gone out yet. Failures are
// logged and never returned. It reports whether an email went out.
func (s *Service) MaybeNotify(ctx context.Context, record domain.Record) bool {
	if !record.HasMetadata() {
		return false
	}
	key := NotificationKey(record)
	logger := log.L(ctx).With(
		zap.String("payment_intent_id", record.PaymentIntentID),
		zap.String("notification_key", key),
	)

	if strings.TrimSpace(record.TenantEmail) == "" {
		logger.Warn("notification skipped, record has no tenant email")
		s.obsMetrics.RecordNotification(ctx, "skipped")
		return false
	}
	if s.alreadySent(ctx, key) {
		logger.Info("notification already sent for this status")
		s.obsMetrics.RecordNotification(ctx, outcomeDuplicate)
		return false
	}

	msg, err := render(s.templates.Get(), record)
	if err != nil {
		logger.Error("notification render failed", zap.Error(err))
		s.obsMetrics.RecordNotification(ctx, StatusFailed)
		return false
	}

	sendErr := s.email.Send(ctx, msg)
	status := StatusSent
	if sendErr != nil {
		status = StatusFailed
		logger.Error("notification send failed", zap.Error(sendErr))
	} else {
		logger.Info("notification sent")
	}
	s.obsMetrics.RecordNotification(ctx, status)
	s.logAttempt(ctx, key, record, msg, sendErr)

	return sendErr == nil
}

// alreadySent fails open: a lookup error risks a second email rather than none.
func (s *Service) alreadySent(ctx context.Context, key string) bool {
	if s.store == nil {
		return false
	}
	doc, err := s.store.Get(ctx, domain.CollectionNotifications, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return false
	case err != nil:
		log.L(ctx).Warn("notification lookup failed", zap.String("notification_key", key), zap.Error(err))
		return false
	}
	return doc["status"] == StatusSent
}

// logAttempt records the latest attempt under the notification key. Each
// attempt gets its own snowflake ID for log correlation.
func (s *Service) logAttempt(ctx context.Context, key string, record domain.Record, msg email.Message, sendErr error) {
	if s.store == nil {
		return
	}
	now := s.clock.Now()
	fields := map[string]any{
		"paymentIntentId": record.PaymentIntentID,
		"paymentStatus":   record.Status,
		"to":              msg.To,
		"subject":         msg.Subject,
		"status":          StatusSent,
		"error":           "",
		"sentOn":          now,
	}
	if sendErr != nil {
		fields["status"] = StatusFailed
		fields["error"] = sendErr.Error()
	}
	if s.genID != nil {
		fields["attemptId"] = s.genID.Generate().String()
	}

	if _, err := s.store.Merge(ctx, domain.CollectionNotifications, key, fields, now); err != nil {
		log.L(ctx).Warn("notification log write failed",
			zap.String("notification_key", key),
			zap.Error(err),
		)
	}
}
