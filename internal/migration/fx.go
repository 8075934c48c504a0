package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/config"
)

var Module = fx.Module("migration",
	fx.Invoke(runOnStartup),
)

func runOnStartup(cfg config.Config, gdb *gorm.DB, log *zap.Logger) error {
	// Embedded migrations target postgres; sqlite/mysql deployments are
	// expected to manage schema out of band.
	if cfg.DBType != "postgres" {
		log.Info("skipping embedded migrations", zap.String("db_type", cfg.DBType))
		return nil
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("database migrations applied")
	return nil
}
