// Package db opens the session database and applies migrations.
package db

import (
	"fmt"
	"time"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const connectAttempts = 5

// Open connects to the configured database. Postgres gets a few retries so
// the app can start alongside its database container.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		dialector = sqlite.Open(cfg.Path)
	}

	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= connectAttempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		logger.Warn("database connection failed",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", i),
			zap.Error(err))
		if cfg.Driver != "postgres" || i == connectAttempts {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Migrate creates or updates the tables this app owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&auth.Session{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
