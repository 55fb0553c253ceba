package payment

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentpay/internal/payment/adapters/stripe"
	"github.com/smallbiznis/rentpay/internal/payment/classifier"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/internal/payment/repository"
	paymentservice "github.com/smallbiznis/rentpay/internal/payment/service"
	"github.com/smallbiznis/rentpay/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(classifier.New, fx.As(new(paymentdomain.Classifier))),
		fx.Annotate(stripe.NewVerifier, fx.As(new(paymentdomain.Verifier))),
		fx.Annotate(stripe.NewIntentClient, fx.As(new(paymentdomain.IntentFetcher))),
	),
	fx.Provide(paymentservice.NewService),
	fx.Provide(func(svc *paymentservice.Service) paymentdomain.Recorder { return svc }),
	fx.Provide(provideDeduper),
	fx.Provide(webhook.NewDispatcher),
	fx.Provide(webhook.NewService),
	fx.Provide(func(svc *webhook.Service) paymentdomain.Service { return svc }),
	webhook.Module,
)

func provideDeduper(client *redis.Client) webhook.Deduper {
	if d := webhook.NewRedisDeduper(client); d != nil {
		return d
	}
	return nil
}
