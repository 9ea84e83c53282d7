package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imagehoster/server/internal/db"
)

// NewGorm wraps an already configured connection pool with gorm.
// The pool stays owned by the caller.
func NewGorm(sqlDB *sql.DB, driver string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case db.DriverPostgres:
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	case db.DriverSQLite:
		dialector = &sqlite.Dialector{DriverName: db.DriverSQLite, Conn: sqlDB}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger{},
		SkipDefaultTransaction: true,
	})
}

// gormLogger forwards gorm's statement log to zerolog at debug level.
type gormLogger struct{}

func (l gormLogger) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (gormLogger) Info(ctx context.Context, msg string, args ...any) {
	log.Info().Msgf(msg, args...)
}

func (gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	log.Warn().Msgf(msg, args...)
}

func (gormLogger) Error(ctx context.Context, msg string, args ...any) {
	log.Error().Msgf(msg, args...)
}

func (gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	event := log.Debug()
	if !event.Enabled() {
		return
	}
	query, rows := fc()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		event = event.Err(err)
	}
	event.Str("sql", query).Int64("rows", rows).Dur("elapsed", time.Since(begin)).Msg("Query")
}
