package metricspush

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/rentpay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("metrics.push",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *Reporter {
		return NewReporter(cfg, prometheus.DefaultGatherer, log)
	}),
	fx.Invoke(registerReporter),
)

func registerReporter(lc fx.Lifecycle, r *Reporter) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.log.Info("metrics push started", zap.Duration("interval", r.interval))
			go func() {
				defer close(done)
				r.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			<-done
			// The last interval's counts would otherwise be lost.
			if err := r.Report(stopCtx); err != nil {
				r.log.Warn("final metrics push failed", zap.Error(err))
			}
			return nil
		},
	})
}
