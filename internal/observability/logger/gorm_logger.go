package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQueryThreshold = 250 * time.Millisecond

// QueryLogger routes gorm's logging through the process zap logger. The
// gorm level is derived from the shared logging Config: a debug-level
// process traces every statement, anything else logs only slow queries
// and errors. Record-not-found is not treated as an error since the
// repositories resolve misses themselves.
type QueryLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewQueryLogger builds a QueryLogger from the shared logging Config.
func NewQueryLogger(cfg Config) *QueryLogger {
	threshold := cfg.SlowQueryThreshold
	if threshold <= 0 {
		threshold = defaultSlowQueryThreshold
	}
	level := gormlogger.Warn
	if strings.EqualFold(strings.TrimSpace(cfg.Level), "debug") {
		level = gormlogger.Info
	}
	return &QueryLogger{
		level:         level,
		slowThreshold: threshold,
	}
}

// LogMode implements gormlogger.Interface.
func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, gormlogger.Info, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, gormlogger.Warn, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, gormlogger.Error, msg, data)
}

func (l *QueryLogger) emit(ctx context.Context, at gormlogger.LogLevel, msg string, data []interface{}) {
	if l.level < at {
		return
	}
	var fields []zap.Field
	if len(data) > 0 {
		fields = append(fields, zap.Any("detail", data))
	}
	log := FromContext(ctx).Named("gorm")
	switch at {
	case gormlogger.Error:
		log.Error(msg, fields...)
	case gormlogger.Warn:
		log.Warn(msg, fields...)
	default:
		log.Info(msg, fields...)
	}
}

// Trace logs one executed statement: errors at error level, statements
// over the slow threshold at warn, the rest at debug when tracing is on.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error:
		l.trace(ctx, fc, elapsed, err, zapcore.ErrorLevel)
	case elapsed >= l.slowThreshold && l.level >= gormlogger.Warn:
		l.trace(ctx, fc, elapsed, nil, zapcore.WarnLevel)
	case l.level >= gormlogger.Info:
		l.trace(ctx, fc, elapsed, nil, zapcore.DebugLevel)
	}
}

// ParamsFilter keeps bound values out of the log; statements are logged
// without their arguments.
func (l *QueryLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	_ = ctx
	_ = params
	return sql, nil
}

func (l *QueryLogger) trace(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, at zapcore.Level) {
	query, rows := fc()
	fields := []zap.Field{
		zap.String("query", strings.TrimSpace(query)),
		zap.String("verb", sqlVerb(query)),
		zap.Duration("elapsed", elapsed),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	log := FromContext(ctx).Named("gorm")
	switch at {
	case zapcore.ErrorLevel:
		log.Error("query failed", fields...)
	case zapcore.WarnLevel:
		log.Warn("slow query", fields...)
	default:
		log.Debug("query", fields...)
	}
}

// sqlVerb extracts the statement verb, scanning past CTE prologues.
func sqlVerb(query string) string {
	for _, token := range strings.Fields(strings.ToUpper(query)) {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return strings.ToLower(token)
		}
	}
	return "other"
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
