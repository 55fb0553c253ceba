package repository

import (
	"context"

	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    config.Config
	Log    *zap.Logger
	Handle *db.Handle `optional:"true"`
}

// Provide selects the document store backend from configuration.
func Provide(p Params) domain.DocumentStore {
	if p.Cfg.StoreBackend == config.StoreSQL && p.Handle != nil {
		p.Log.Info("document store selected", zap.String("backend", config.StoreSQL))
		return NewSQLStore(p.Handle, p.Log)
	}

	store := NewFirestoreStore(p.Cfg, p.Log)
	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	p.Log.Info("document store selected", zap.String("backend", config.StoreFirestore))
	return store
}
