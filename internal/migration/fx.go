package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/marketfill/internal/config"
	ledgerdomain "github.com/smallbiznis/marketfill/internal/ledger/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL migrations target postgres. Development
		// databases (sqlite, mysql) get their schema from the models
		// directly.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(&ledgerdomain.OperationRecord{})
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
