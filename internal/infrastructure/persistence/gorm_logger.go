package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// maxSQLLength is the maximum length of a SQL string in debug logs.
const maxSQLLength = 200

// zapGormLogger routes GORM's logging into zap. Queries are logged at debug,
// failed queries at error. ErrRecordNotFound is the normal "no rows" result and
// is not treated as a failure.
type zapGormLogger struct {
	logger *zap.Logger
}

// NewGormLogger adapts logger to GORM's logger interface
func NewGormLogger(logger *zap.Logger) gormlogger.Interface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return zapGormLogger{logger: logger.Named("gorm")}
}

// LogMode is a no-op; level filtering is handled by zap.
func (l zapGormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l zapGormLogger) Info(_ context.Context, msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...))
}

func (l zapGormLogger) Warn(_ context.Context, msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

func (l zapGormLogger) Error(_ context.Context, msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

func (l zapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, rows := fc()
		l.logger.Error("gorm query error",
			zap.String("sql", truncateSQL(sql)),
			zap.Int64("rows", rows),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return
	}

	if ce := l.logger.Check(zap.DebugLevel, "gorm query"); ce != nil {
		sql, rows := fc()
		ce.Write(
			zap.String("sql", truncateSQL(sql)),
			zap.Int64("rows", rows),
			zap.Duration("duration", elapsed),
		)
	}
}

// truncateSQL shortens a SQL string, replacing the middle with "..."
func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}
