// Package logger is the process-wide structured logger. Every package logs
// through it so the console output shares one format and one level switch.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger *zap.Logger
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput sends further entries to f. The console package calls it after
// swapping the standard handles of a GUI-mode process.
func SetOutput(f *os.File) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(f),
		level,
	)
	logger = zap.New(core)
}

// SetLevel changes the minimum level that reaches the console. Unknown
// names leave the level untouched and return false.
func SetLevel(name string) bool {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return false
	}
	level.SetLevel(l)
	return true
}

// Sync flushes buffered entries. Call before exiting.
func Sync() {
	err := logger.Sync()
	if err != nil && !strings.Contains(err.Error(), "invalid argument") {
		Errorf("failed to flush logger: %s", err)
	}
}

// Debugf logs a debug message.
func Debugf(format string, v ...interface{}) {
	logger.Sugar().Debugf(format, v...)
}

// Infof logs an informational message.
func Infof(format string, v ...interface{}) {
	logger.Sugar().Infof(format, v...)
}

// Warnf logs a warning.
func Warnf(format string, v ...interface{}) {
	logger.Sugar().Warnf(format, v...)
}

// Errorf logs an error message.
func Errorf(format string, v ...interface{}) {
	logger.Sugar().Errorf(format, v...)
}

// Error logs an error value.
func Error(err error) {
	logger.Sugar().Error(err)
}

// FastInfo logs with strongly-typed fields only. Use it on the frame loop
// where the sugared logger's allocations show up.
func FastInfo(msg string, fields ...zapcore.Field) {
	logger.Info(msg, fields...)
}

// FastDebug is the debug-level counterpart of FastInfo.
func FastDebug(msg string, fields ...zapcore.Field) {
	logger.Debug(msg, fields...)
}
