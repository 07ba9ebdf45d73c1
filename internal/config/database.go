package config

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"shiptrace/internal/logger"
	"shiptrace/internal/models"
)

// OpenDB connects to Postgres through lib/pq and migrates the schema.
func OpenDB(cfg DBConfig) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.GormLogger(),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Shipment{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host": cfg.Host,
		"db":   cfg.Name,
	}).Info("database connected")
	return db, nil
}
