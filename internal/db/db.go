package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"equipment-pm-backend/config"
	"equipment-pm-backend/internal/model"
)

// Init opens the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableTimescale {
		log.Info("TimescaleDB enabled, applying time-series DDL")
		if err := applyTimescaleDDL(db); err != nil {
			log.WithError(err).Warn("failed to apply TimescaleDB DDL, continuing without it")
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate runs AutoMigrate for every model. Exposed so tests can migrate
// an in-memory SQLite database with the same schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Equipment{},
		&model.SensorReading{},
		&model.UsageLog{},
		&model.MaintenanceSchedule{},
		&model.MaintenanceRecord{},
		&model.TimelineEntry{},
		&model.Notification{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func applyTimescaleDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS timescaledb;",

		// sensor_readings is the only append-heavy table; make it a
		// hypertable partitioned on recorded_at.
		"SELECT create_hypertable('sensor_readings', 'recorded_at', if_not_exists => TRUE);",

		"CREATE INDEX IF NOT EXISTS idx_sensor_readings_equipment_recorded_at " +
			"ON sensor_readings (equipment_id, recorded_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
