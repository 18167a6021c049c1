// Package database opens the MirrorManager database named by a DB_URL and can
// bootstrap an empty MirrorManager schema for development and tests.
//
// The production schema is owned by MirrorManager itself; this package never
// alters an existing one beyond what goose records in its version table.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// gooseLogger routes goose output to zap.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

// Migrate creates the MirrorManager tables used by this tool when they are
// missing.
func Migrate(ctx context.Context, db *DB, logger *zap.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if logger == nil {
		logger = zap.NewNop()
	}

	// Set the embedded filesystem for goose
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log: logger.Sugar()})

	dialect, dir := "postgres", "migrations/postgres"
	if db.Driver() == DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// NullString creates a sql.NullString, treating the empty string as NULL.
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
