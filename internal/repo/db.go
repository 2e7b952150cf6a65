// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// Statement logging goes through zerolog (see gormLogger), at warn level.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(logger.Warn, slowQueryThreshold),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool. Queue consumers and the scheduler share this handle.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(16)
		sqlDB.SetMaxIdleConns(16)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnableTracing registers the GORM OpenTelemetry plugin so every query is
// recorded as a span under the caller's context.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or updates every table the reconciler owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.AccountConfig{},
		&domain.CostSnapshot{},
		&domain.ResourceRecord{},
		&domain.Discrepancy{},
		&domain.Job{},
		&domain.DeadLetter{},
		&domain.Schedule{},
	)
}
