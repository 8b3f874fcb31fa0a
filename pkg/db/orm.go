package db

import (
	"fmt"

	"car_intake/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormConnection создает новое соединение с базой данных через GORM.
// Драйвер выбирается по cfg.Driver: postgres (по умолчанию) или sqlite.
func NewGormConnection(cfg config.DBConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch cfg.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf(
			"user=%s password=%s host=%s dbname=%s port=%s sslmode=%s",
			cfg.User, cfg.Pass, cfg.Host, cfg.DBName, cfg.Port, cfg.SSLMode,
		)
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	}
	return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
}
