package repo

// This file contains database bootstrapping helpers for the native engine:
// opening SQLite (pure Go driver) and creating the schema.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// tracerProviderFn supplies the provider for SQL spans; tests swap it.
var tracerProviderFn = otel.GetTracerProvider

// schema is applied one statement at a time; multi-statement Exec is flaky
// on this driver.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE,
		password TEXT,
		profile_uri TEXT,
		created_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_id INTEGER,
		to_id INTEGER,
		content TEXT,
		created_at INTEGER
	);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair_created ON messages (from_id, to_id, created_at);`,
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// The parent directory must already exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	gormLog := logger.Default.LogMode(logger.Silent)
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gormLog = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	// Query variables carry plaintext passwords; keep them out of spans.
	if err := db.Use(tracing.NewPlugin(
		tracing.WithTracerProvider(tracerProviderFn()),
		tracing.WithoutQueryVariables(),
	)); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("tracing plugin: %w", err)
	}

	// PRAGMAs
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if err := db.Exec(p).Error; err != nil {
			closeDB(db)
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnsureSchema creates the users and messages tables if they don't exist.
// It is idempotent and safe to run on every startup.
func EnsureSchema(db *gorm.DB) error {
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
