package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(NewHandle),
	fx.Invoke(registerHooks),
)

// Handle opens the database on first use and reuses the connection for the
// life of the process.
type Handle struct {
	open func() (*gorm.DB, error)

	once sync.Once
	db   *gorm.DB
	err  error
}

func NewHandle(cfg config.Config, log *zap.Logger) *Handle {
	return &Handle{
		open: func() (*gorm.DB, error) { return Open(cfg, log) },
	}
}

// NewHandleFromDB wraps an already opened connection.
func NewHandleFromDB(db *gorm.DB) *Handle {
	return &Handle{
		open: func() (*gorm.DB, error) { return db, nil },
	}
}

// DB returns the shared connection. A failed first open is remembered.
func (h *Handle) DB() (*gorm.DB, error) {
	h.once.Do(func() {
		h.db, h.err = h.open()
	})
	return h.db, h.err
}

func (h *Handle) opened() bool {
	return h.db != nil
}

// Open connects using the configured dialect and installs the query logger,
// metrics and tracing plugins.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialect, &gorm.Config{
		Logger:         NewLogger(DefaultLoggerConfig()),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBType, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)

	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, fmt.Errorf("install prometheus plugin: %w", err)
	}
	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBName))); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}

	if log != nil {
		log.Info("database connected",
			zap.String("type", cfg.DBType),
			zap.String("host", cfg.DBHost),
			zap.String("name", cfg.DBName),
		)
	}
	return conn, nil
}

func registerHooks(lc fx.Lifecycle, h *Handle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if !h.opened() {
				return nil
			}
			sqlDB, err := h.db.DB()
			if err != nil {
				return err
			}
			log.Info("closing database connection")
			return sqlDB.Close()
		},
	})
}
