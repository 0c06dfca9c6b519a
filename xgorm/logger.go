package xgorm

import (
	"context"
	"errors"
	"time"

	"github.com/xiaoshicae/xinfer/xlog"
	"github.com/xiaoshicae/xinfer/xutil"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger 将 gorm 日志转发到 xlog
type gormLogger struct {
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(c *Config) *gormLogger {
	return &gormLogger{
		level:         resolveLogLevel(xlog.Level()),
		slowThreshold: xutil.ToDuration(c.SlowThreshold),
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(ctx context.Context, s string, args ...any) {
	xlog.Info(ctx, "[xgorm] "+s, args...)
}

func (l *gormLogger) Warn(ctx context.Context, s string, args ...any) {
	xlog.Warn(ctx, "[xgorm] "+s, args...)
}

func (l *gormLogger) Error(ctx context.Context, s string, args ...any) {
	xlog.Error(ctx, "[xgorm] "+s, args...)
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	cost := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		xlog.Error(ctx, "[xgorm] latency=[%dms] rows=[%d] sql=[%s] err=[%v]", cost.Milliseconds(), rows, sql, err)
	case l.slowThreshold > 0 && cost > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		xlog.Warn(ctx, "[xgorm] slow sql >= %v, latency=[%dms] rows=[%d] sql=[%s]", l.slowThreshold, cost.Milliseconds(), rows, sql)
	case l.level >= logger.Info:
		sql, rows := fc()
		xlog.Info(ctx, "[xgorm] latency=[%dms] rows=[%d] sql=[%s]", cost.Milliseconds(), rows, sql)
	}
}

func resolveLogLevel(l string) logger.LogLevel {
	switch l {
	case "debug", "trace", "info":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Info
	}
}
