package migration

import (
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/duesflow/duesflow/internal/config"
)

// Module runs embedded migrations over the shared gorm handle. The SQL is
// postgres-only; other drivers are for tests and must not reach this path.
var Module = fx.Module("migrations",
	fx.Invoke(func(cfg config.Config, conn *gorm.DB) error {
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("migrations require postgres, configured driver is %q", cfg.Database.Driver)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		return RunMigrations(sqlDB)
	}),
)
