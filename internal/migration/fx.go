package migration

import (
	"github.com/smallbiznis/rentpay/internal/config"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Handle *db.Handle `optional:"true"`
}

// Run prepares the SQL document store. Firestore needs no schema.
func Run(p Params) error {
	if p.Cfg.StoreBackend != config.StoreSQL || p.Handle == nil {
		return nil
	}
	conn, err := p.Handle.DB()
	if err != nil {
		return err
	}

	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		p.Log.Info("migrations applied", zap.String("dialect", "postgres"))
		return nil
	}

	if err := conn.AutoMigrate(&paymentdomain.DocumentRecord{}); err != nil {
		return err
	}
	p.Log.Info("schema auto-migrated", zap.String("dialect", conn.Dialector.Name()))
	return nil
}
