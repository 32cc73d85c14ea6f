package infra

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// GormZapLogger GORM 日志适配器（输出到 Zap）
type GormZapLogger struct {
	zapLogger     *zap.Logger
	level         gormLogger.LogLevel
	slowThreshold time.Duration
}

// NewGormZapLogger 创建 GORM 日志适配器
// slowThreshold 超过该时长的查询按慢查询告警
func NewGormZapLogger(zapLogger *zap.Logger, level gormLogger.LogLevel, slowThreshold time.Duration) *GormZapLogger {
	return &GormZapLogger{
		zapLogger:     zapLogger,
		level:         level,
		slowThreshold: slowThreshold,
	}
}

// LogMode 设置日志级别
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

// Info 日志
func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

// Warn 日志
func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

// Error 日志
func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace SQL 执行日志
// 记录不存在的错误不算失败，知识库查询经常依赖这一点
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound) {
		fields = append(fields, zap.Error(err))
		l.zapLogger.Error("SQL 执行错误", fields...)
		return
	}

	if l.slowThreshold > 0 && elapsed > l.slowThreshold {
		l.zapLogger.Warn("SQL 慢查询", fields...)
		return
	}

	if l.level >= gormLogger.Info {
		l.zapLogger.Debug("SQL 执行", fields...)
	}
}
