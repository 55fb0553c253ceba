package notification

import (
	"github.com/smallbiznis/rentpay/internal/notification/service"
	"github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	email.Module,
	fx.Provide(service.NewService),
	fx.Provide(func(svc *service.Service) domain.Notifier { return svc }),
)
