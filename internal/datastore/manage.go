package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. One second accommodates the migration batch queries which
// routinely run 800-900ms on loaded staging tables.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger returns a GORM logger bridged onto the service slog logger.
func createGormLogger() gormlogger.Interface {
	return &slogGormLogger{
		logger:        logging.ForService("datastore"),
		slowThreshold: DefaultSlowQueryThreshold,
	}
}

// slogGormLogger adapts GORM's logger interface to log/slog.
type slogGormLogger struct {
	logger        *slog.Logger
	slowThreshold time.Duration
}

func (l *slogGormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && err != gorm.ErrRecordNotFound:
		sql, rows := fc()
		l.logger.ErrorContext(ctx, "query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > l.slowThreshold:
		sql, rows := fc()
		l.logger.WarnContext(ctx, "slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}

// performAutoMigration creates or updates the staging tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&FolderStaging{}, &DocStaging{}, &PhaseCheckpoint{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		logging.ForService("datastore").Debug("database connection established",
			"type", dbType, "connection", connectionInfo)
	}
	return nil
}
