package email

import (
	"github.com/smallbiznis/rentpay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	switch cfg.Email.Provider {
	case config.EmailProviderSMTP:
		log.Info("email provider selected", zap.String("provider", "smtp"), zap.String("host", cfg.Email.SMTPHost))
		return NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
	case config.EmailProviderNoop:
		log.Info("email provider selected", zap.String("provider", "noop"))
		return &NoOpProvider{}
	default:
		log.Info("email provider selected", zap.String("provider", "http"), zap.String("url", cfg.EmailFunctionURL()))
		return NewHTTP(cfg.EmailFunctionURL(), nil)
	}
}
