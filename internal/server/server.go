package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rentpay/internal/cache"
	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/notification"
	"github.com/smallbiznis/rentpay/internal/observability"
	obsmiddleware "github.com/smallbiznis/rentpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentpay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rentpay/internal/observability/tracing"
	"github.com/smallbiznis/rentpay/internal/payment"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	notification.Module,
	payment.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Engine     *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	Recorder   paymentdomain.Recorder
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	paymentSvc paymentdomain.Service
	recorder   paymentdomain.Recorder
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Engine,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		paymentSvc: p.PaymentSvc,
		recorder:   p.Recorder,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterRoutes mounts the webhook ingress and the key-guarded internal endpoints.
func (s *Server) RegisterRoutes() {
	s.engine.POST("/webhook", s.HandlePaymentWebhook)
	s.engine.POST("/update-payment", s.AdminKeyIfConfigured(), s.UpdatePayment)
	s.engine.GET("/payments/:collection/:id", s.AdminKeyRequired(), s.GetPayment)

	admin := s.engine.Group("/admin", s.AdminKeyRequired())
	{
		admin.POST("/payments/:id/resync", s.ResyncPayment)
	}
}
