package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/rentpay/pkg/log"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// LoggerConfig configures the zap-backed query logger.
type LoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
	}
}

// Logger implements gormlogger.Interface on top of the context logger.
type Logger struct {
	cfg LoggerConfig
}

func NewLogger(cfg LoggerConfig) *Logger {
	return &Logger{cfg: cfg}
}

func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *Logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Info {
		log.L(ctx).Info(msg, l.fields(data)...)
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Warn {
		log.L(ctx).Warn(msg, l.fields(data)...)
	}
}

func (l *Logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Error {
		log.L(ctx).Error(msg, l.fields(data)...)
	}
}

// Trace logs failed and slow statements. Bound values are never logged.
func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	notFound := errors.Is(err, gormlogger.ErrRecordNotFound) && l.cfg.IgnoreRecordNotFound
	switch {
	case err != nil && !notFound && l.cfg.Level >= gormlogger.Error:
		sql, rows := fc()
		log.L(ctx).Error("db.query", append(queryFields(sql, rows, elapsed), zap.Error(err))...)
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		sql, rows := fc()
		log.L(ctx).Warn("db.slow_query", queryFields(sql, rows, elapsed)...)
	case l.cfg.Level >= gormlogger.Info:
		sql, rows := fc()
		log.L(ctx).Debug("db.query", queryFields(sql, rows, elapsed)...)
	}
}

func (l *Logger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *Logger) fields(data []interface{}) []zap.Field {
	fields := []zap.Field{zap.String("component", "gorm")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	return fields
}

func queryFields(sql string, rows int64, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", operation(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	return fields
}

func operation(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return token
		case "WITH":
			continue
		}
	}
	return "UNKNOWN"
}

var _ gormlogger.Interface = (*Logger)(nil)
