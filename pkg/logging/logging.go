package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger. The orchestrator takes one as an injected
// collaborator; nothing in the core packages logs through a global.
type Logger struct {
	logger *zap.Logger
}

// LogLevel defines the logging level
type LogLevel zapcore.Level

const (
	DEBUG LogLevel = LogLevel(zapcore.DebugLevel)
	INFO  LogLevel = LogLevel(zapcore.InfoLevel)
	WARN  LogLevel = LogLevel(zapcore.WarnLevel)
	ERROR LogLevel = LogLevel(zapcore.ErrorLevel)
)

// NewLogger creates a new Logger instance. Every line carries a run_id
// so interleaved runs can be told apart in aggregated output.
func NewLogger(level LogLevel) *Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.Level(level))
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return &Logger{
		logger: logger.With(zap.String("run_id", uuid.New().String())),
	}
}

// With returns a Logger with the fields attached to every line.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{logger: l.logger.With(fields...)}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.logger.Debug(msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.logger.Info(msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.logger.Warn(msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.logger.Error(msg, fields...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// Zap exposes the underlying logger so main can install it as the
// process-wide default for packages that use zap.S().
func (l *Logger) Zap() *zap.Logger {
	return l.logger
}
